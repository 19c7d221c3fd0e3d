package model

import (
	"math/big"
	"time"
)

// RequestRecord is the JSONL/Postgres representation of a request
// aggregate. Big numerics are encoded as decimal strings.
type RequestRecord struct {
	RequestID          string             `json:"request_id"`
	Requester          string             `json:"requester"`
	PubKeyHash         string             `json:"pub_key_hash"`
	Round              string             `json:"round"`
	Deadline           uint64             `json:"deadline"`
	CallbackGasLimit   string             `json:"callback_gas_limit"`
	FeePaid            string             `json:"fee_paid"`
	EffectiveFeePerGas string             `json:"effective_fee_per_gas"`
	Status             string             `json:"status"`
	TxHash             string             `json:"tx_hash"`
	BlockNumber        uint64             `json:"block_number"`
	Timestamp          uint64             `json:"timestamp"`
	Fulfillment        *FulfillmentRecord `json:"fulfillment,omitempty"`
	Failure            *FailureRecord     `json:"failure,omitempty"`
	ExportedAt         string             `json:"exported_at"`
}

// FulfillmentRecord is the JSON representation of a fulfillment.
type FulfillmentRecord struct {
	Randomness      string `json:"randomness"`
	CallbackSuccess bool   `json:"callback_success"`
	ActualGasUsed   string `json:"actual_gas_used"`
	TxHash          string `json:"tx_hash"`
	BlockNumber     uint64 `json:"block_number"`
	Timestamp       uint64 `json:"timestamp"`
}

// FailureRecord is the JSON representation of a callback failure.
type FailureRecord struct {
	Retdata       string `json:"retdata"`
	GasLimit      string `json:"gas_limit"`
	ActualGasUsed string `json:"actual_gas_used"`
	TxHash        string `json:"tx_hash"`
	BlockNumber   uint64 `json:"block_number"`
	Timestamp     uint64 `json:"timestamp"`
}

// DecodeError records a decode failure for a single log. The log is
// skipped; the batch continues.
type DecodeError struct {
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0"`
	Error       string `json:"error"`
}

// BuildRequestRecord converts an aggregate into its export record.
func BuildRequestRecord(req RandomnessRequest, exportedAt time.Time) RequestRecord {
	record := RequestRecord{
		RequestID:          bigString(req.ID),
		Requester:          req.Requester,
		PubKeyHash:         req.PubKeyHash,
		Round:              bigString(req.Round),
		Deadline:           req.Deadline,
		CallbackGasLimit:   bigString(req.CallbackGasLimit),
		FeePaid:            bigString(req.FeePaid),
		EffectiveFeePerGas: bigString(req.EffectiveFeePerGas),
		Status:             string(req.Status),
		TxHash:             req.TxHash,
		BlockNumber:        req.BlockNumber,
		Timestamp:          req.Timestamp,
		ExportedAt:         exportedAt.UTC().Format(time.RFC3339Nano),
	}

	if req.Fulfillment != nil {
		record.Fulfillment = &FulfillmentRecord{
			Randomness:      bigString(req.Fulfillment.Randomness),
			CallbackSuccess: req.Fulfillment.CallbackSuccess,
			ActualGasUsed:   bigString(req.Fulfillment.ActualGasUsed),
			TxHash:          req.Fulfillment.TxHash,
			BlockNumber:     req.Fulfillment.BlockNumber,
			Timestamp:       req.Fulfillment.Timestamp,
		}
	}

	if req.Failure != nil {
		record.Failure = &FailureRecord{
			Retdata:       req.Failure.Retdata,
			GasLimit:      bigString(req.Failure.GasLimit),
			ActualGasUsed: bigString(req.Failure.ActualGasUsed),
			TxHash:        req.Failure.TxHash,
			BlockNumber:   req.Failure.BlockNumber,
			Timestamp:     req.Failure.Timestamp,
		}
	}

	return record
}

func bigString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}
