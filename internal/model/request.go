package model

import (
	"fmt"
	"math/big"
	"strings"
)

// RequestStatus is the lifecycle state of a randomness request. The
// transition is one-way: pending moves to fulfilled or failed and never
// back.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusFulfilled RequestStatus = "fulfilled"
	StatusFailed    RequestStatus = "failed"
)

// ParseStatus converts a user-supplied status string.
func ParseStatus(input string) (RequestStatus, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "pending":
		return StatusPending, nil
	case "fulfilled":
		return StatusFulfilled, nil
	case "failed":
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("unknown status: %s", input)
	}
}

// RandomnessRequest is the merged view of one request id built from the
// coordinator event streams. Provenance fields refer to the creating
// RandomnessRequested event.
type RandomnessRequest struct {
	ID                 *big.Int
	Requester          string
	PubKeyHash         string
	Round              *big.Int
	Deadline           uint64
	CallbackGasLimit   *big.Int
	FeePaid            *big.Int
	EffectiveFeePerGas *big.Int
	Status             RequestStatus
	TxHash             string
	BlockNumber        uint64
	Timestamp          uint64
	Fulfillment        *Fulfillment
	Failure            *CallbackFailure
}

// Fulfillment carries the RandomnessFulfilled event data for a request.
type Fulfillment struct {
	RequestID       *big.Int
	Randomness      *big.Int
	CallbackSuccess bool
	ActualGasUsed   *big.Int
	TxHash          string
	BlockNumber     uint64
	Timestamp       uint64
}

// CallbackFailure carries the RandomnessCallbackFailed event data.
type CallbackFailure struct {
	RequestID     *big.Int
	Retdata       string
	GasLimit      *big.Int
	ActualGasUsed *big.Int
	TxHash        string
	BlockNumber   uint64
	Timestamp     uint64
}
