package model

import "math/big"

// EventKind names one of the coordinator event types.
type EventKind string

const (
	KindRequested      EventKind = "RandomnessRequested"
	KindFulfilled      EventKind = "RandomnessFulfilled"
	KindCallbackFailed EventKind = "RandomnessCallbackFailed"
)

// Event is a decoded coordinator event with block provenance. Data holds
// one of RequestedData, FulfilledData, or CallbackFailedData.
type Event struct {
	Kind      EventKind
	RequestID *big.Int
	Block     BlockRef
	TxHash    string
	LogIndex  uint32
	Data      interface{}
}

// RequestedData is the decoded RandomnessRequested payload.
type RequestedData struct {
	Requester          string
	PubKeyHash         string
	Round              *big.Int
	CallbackGasLimit   *big.Int
	FeePaid            *big.Int
	EffectiveFeePerGas *big.Int
}

// FulfilledData is the decoded RandomnessFulfilled payload.
type FulfilledData struct {
	Randomness      *big.Int
	CallbackSuccess bool
	ActualGasUsed   *big.Int
}

// CallbackFailedData is the decoded RandomnessCallbackFailed payload.
type CallbackFailedData struct {
	Retdata       string
	GasLimit      *big.Int
	ActualGasUsed *big.Int
}
