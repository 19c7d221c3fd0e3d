package coordinator

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"randomnessScope/internal/model"
)

// Decoder turns raw coordinator logs into typed domain events. Decoding
// is pure; a failed decode returns an error the caller logs and skips.
type Decoder struct {
	coordABI    abi.ABI
	topicToKind map[common.Hash]model.EventKind
	kindToTopic map[model.EventKind]common.Hash
}

// NewDecoder builds a decoder for the three coordinator events.
func NewDecoder() (*Decoder, error) {
	coordABI, err := CoordinatorABI()
	if err != nil {
		return nil, err
	}

	topicToKind := map[common.Hash]model.EventKind{
		coordABI.Events["RandomnessRequested"].ID:      model.KindRequested,
		coordABI.Events["RandomnessFulfilled"].ID:      model.KindFulfilled,
		coordABI.Events["RandomnessCallbackFailed"].ID: model.KindCallbackFailed,
	}
	kindToTopic := make(map[model.EventKind]common.Hash, len(topicToKind))
	for topic, kind := range topicToKind {
		kindToTopic[kind] = topic
	}

	return &Decoder{
		coordABI:    coordABI,
		topicToKind: topicToKind,
		kindToTopic: kindToTopic,
	}, nil
}

// CanDecode checks if the topic0 is one of the known event signatures.
func (d *Decoder) CanDecode(topic0 common.Hash) bool {
	_, ok := d.topicToKind[topic0]
	return ok
}

// Topic returns the topic0 hash for an event kind.
func (d *Decoder) Topic(kind model.EventKind) common.Hash {
	return d.kindToTopic[kind]
}

// Decode converts a log into a domain event, attaching the block
// timestamp as provenance.
func (d *Decoder) Decode(log types.Log, blockTime uint64) (model.Event, error) {
	if len(log.Topics) == 0 {
		return model.Event{}, fmt.Errorf("missing topic0")
	}
	kind, ok := d.topicToKind[log.Topics[0]]
	if !ok {
		return model.Event{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}

	event := model.Event{
		Kind: kind,
		Block: model.BlockRef{
			Number:    log.BlockNumber,
			Timestamp: blockTime,
		},
		TxHash:   log.TxHash.Hex(),
		LogIndex: uint32(log.Index),
	}

	var err error
	switch kind {
	case model.KindRequested:
		event.RequestID, event.Data, err = d.decodeRequested(log)
	case model.KindFulfilled:
		event.RequestID, event.Data, err = d.decodeFulfilled(log)
	case model.KindCallbackFailed:
		event.RequestID, event.Data, err = d.decodeCallbackFailed(log)
	}
	if err != nil {
		return model.Event{}, err
	}

	return event, nil
}

func (d *Decoder) decodeRequested(log types.Log) (*big.Int, model.RequestedData, error) {
	event := d.coordABI.Events["RandomnessRequested"]

	var indexed struct {
		RequestId  *big.Int
		Requester  common.Address
		PubKeyHash [32]byte
	}
	if err := parseIndexed(&indexed, event, log.Topics); err != nil {
		return nil, model.RequestedData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, model.RequestedData{}, err
	}
	if len(values) != 4 {
		return nil, model.RequestedData{}, fmt.Errorf("unexpected requested values: %d", len(values))
	}

	round, err := asBigInt(values[0])
	if err != nil {
		return nil, model.RequestedData{}, err
	}
	callbackGasLimit, err := asBigInt(values[1])
	if err != nil {
		return nil, model.RequestedData{}, err
	}
	feePaid, err := asBigInt(values[2])
	if err != nil {
		return nil, model.RequestedData{}, err
	}
	effectiveFeePerGas, err := asBigInt(values[3])
	if err != nil {
		return nil, model.RequestedData{}, err
	}

	return indexed.RequestId, model.RequestedData{
		Requester:          indexed.Requester.Hex(),
		PubKeyHash:         common.BytesToHash(indexed.PubKeyHash[:]).Hex(),
		Round:              round,
		CallbackGasLimit:   callbackGasLimit,
		FeePaid:            feePaid,
		EffectiveFeePerGas: effectiveFeePerGas,
	}, nil
}

func (d *Decoder) decodeFulfilled(log types.Log) (*big.Int, model.FulfilledData, error) {
	event := d.coordABI.Events["RandomnessFulfilled"]

	var indexed struct {
		RequestId *big.Int
	}
	if err := parseIndexed(&indexed, event, log.Topics); err != nil {
		return nil, model.FulfilledData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, model.FulfilledData{}, err
	}
	if len(values) != 3 {
		return nil, model.FulfilledData{}, fmt.Errorf("unexpected fulfilled values: %d", len(values))
	}

	randomness, err := asBigInt(values[0])
	if err != nil {
		return nil, model.FulfilledData{}, err
	}
	callbackSuccess, err := asBool(values[1])
	if err != nil {
		return nil, model.FulfilledData{}, err
	}
	actualGasUsed, err := asBigInt(values[2])
	if err != nil {
		return nil, model.FulfilledData{}, err
	}

	return indexed.RequestId, model.FulfilledData{
		Randomness:      randomness,
		CallbackSuccess: callbackSuccess,
		ActualGasUsed:   actualGasUsed,
	}, nil
}

func (d *Decoder) decodeCallbackFailed(log types.Log) (*big.Int, model.CallbackFailedData, error) {
	event := d.coordABI.Events["RandomnessCallbackFailed"]

	var indexed struct {
		RequestId *big.Int
	}
	if err := parseIndexed(&indexed, event, log.Topics); err != nil {
		return nil, model.CallbackFailedData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, model.CallbackFailedData{}, err
	}
	if len(values) != 3 {
		return nil, model.CallbackFailedData{}, fmt.Errorf("unexpected callback failed values: %d", len(values))
	}

	retdata, err := asBytes32Hex(values[0])
	if err != nil {
		return nil, model.CallbackFailedData{}, err
	}
	gasLimit, err := asBigInt(values[1])
	if err != nil {
		return nil, model.CallbackFailedData{}, err
	}
	actualGasUsed, err := asBigInt(values[2])
	if err != nil {
		return nil, model.CallbackFailedData{}, err
	}

	return indexed.RequestId, model.CallbackFailedData{
		Retdata:       retdata,
		GasLimit:      gasLimit,
		ActualGasUsed: actualGasUsed,
	}, nil
}

func parseIndexed(out interface{}, event abi.Event, topics []common.Hash) error {
	indexed := indexedArguments(event.Inputs)
	if len(topics) != len(indexed)+1 {
		return fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(topics))
	}
	if err := abi.ParseTopics(out, indexed, topics[1:]); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, data []byte) ([]interface{}, error) {
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	parsed, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected big int, got %T", value)
	}
	return parsed, nil
}

func asBool(value interface{}) (bool, error) {
	parsed, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", value)
	}
	return parsed, nil
}

func asBytes32Hex(value interface{}) (string, error) {
	parsed, ok := value.([32]byte)
	if !ok {
		return "", fmt.Errorf("expected bytes32, got %T", value)
	}
	return common.BytesToHash(parsed[:]).Hex(), nil
}
