package coordinator

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"randomnessScope/internal/model"
)

func TestDecodeRequested(t *testing.T) {
	coordABI, err := CoordinatorABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	requester := common.HexToAddress("0x2222222222222222222222222222222222222222")
	pubKeyHash := common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	data, err := coordABI.Events["RandomnessRequested"].Inputs.NonIndexed().Pack(
		big.NewInt(512),
		big.NewInt(200000),
		big.NewInt(1000),
		big.NewInt(5),
	)
	if err != nil {
		t.Fatalf("pack requested: %v", err)
	}

	log := buildLog(coordABI.Events["RandomnessRequested"].ID, data, []common.Hash{
		common.BigToHash(big.NewInt(1)),
		topicFromAddress(requester),
		pubKeyHash,
	})

	event, err := decoder.Decode(log, 1700000000)
	if err != nil {
		t.Fatalf("decode requested: %v", err)
	}

	if event.Kind != model.KindRequested {
		t.Fatalf("kind mismatch: %s", event.Kind)
	}
	if event.RequestID.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("request id mismatch: %s", event.RequestID)
	}
	if event.Block.Number != 12345 || event.Block.Timestamp != 1700000000 {
		t.Fatalf("block ref mismatch: %+v", event.Block)
	}
	if event.LogIndex != 3 {
		t.Fatalf("log index mismatch: %d", event.LogIndex)
	}

	requested, ok := event.Data.(model.RequestedData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Data)
	}
	if requested.Requester != requester.Hex() {
		t.Fatalf("requester mismatch: %s", requested.Requester)
	}
	if requested.PubKeyHash != pubKeyHash.Hex() {
		t.Fatalf("pub key hash mismatch: %s", requested.PubKeyHash)
	}
	if requested.Round.Cmp(big.NewInt(512)) != 0 || requested.FeePaid.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("payload mismatch: %+v", requested)
	}
	if requested.CallbackGasLimit.Cmp(big.NewInt(200000)) != 0 || requested.EffectiveFeePerGas.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("payload mismatch: %+v", requested)
	}
}

func TestDecodeFulfilled(t *testing.T) {
	coordABI, err := CoordinatorABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	data, err := coordABI.Events["RandomnessFulfilled"].Inputs.NonIndexed().Pack(
		big.NewInt(42),
		true,
		big.NewInt(150000),
	)
	if err != nil {
		t.Fatalf("pack fulfilled: %v", err)
	}

	log := buildLog(coordABI.Events["RandomnessFulfilled"].ID, data, []common.Hash{
		common.BigToHash(big.NewInt(7)),
	})

	event, err := decoder.Decode(log, 1700000012)
	if err != nil {
		t.Fatalf("decode fulfilled: %v", err)
	}

	if event.RequestID.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("request id mismatch: %s", event.RequestID)
	}

	fulfilled, ok := event.Data.(model.FulfilledData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Data)
	}
	if fulfilled.Randomness.Cmp(big.NewInt(42)) != 0 || !fulfilled.CallbackSuccess {
		t.Fatalf("payload mismatch: %+v", fulfilled)
	}
	if fulfilled.ActualGasUsed.Cmp(big.NewInt(150000)) != 0 {
		t.Fatalf("gas mismatch: %+v", fulfilled)
	}
}

func TestDecodeCallbackFailed(t *testing.T) {
	coordABI, err := CoordinatorABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	retdata := common.HexToHash("0x08c379a000000000000000000000000000000000000000000000000000000000")

	data, err := coordABI.Events["RandomnessCallbackFailed"].Inputs.NonIndexed().Pack(
		[32]byte(retdata),
		big.NewInt(200000),
		big.NewInt(199999),
	)
	if err != nil {
		t.Fatalf("pack callback failed: %v", err)
	}

	log := buildLog(coordABI.Events["RandomnessCallbackFailed"].ID, data, []common.Hash{
		common.BigToHash(big.NewInt(9)),
	})

	event, err := decoder.Decode(log, 1700000024)
	if err != nil {
		t.Fatalf("decode callback failed: %v", err)
	}

	failed, ok := event.Data.(model.CallbackFailedData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Data)
	}
	if failed.Retdata != retdata.Hex() {
		t.Fatalf("retdata mismatch: %s", failed.Retdata)
	}
	if failed.GasLimit.Cmp(big.NewInt(200000)) != 0 || failed.ActualGasUsed.Cmp(big.NewInt(199999)) != 0 {
		t.Fatalf("payload mismatch: %+v", failed)
	}
}

func TestDecodeRejectsMalformedLogs(t *testing.T) {
	coordABI, err := CoordinatorABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	unknown := buildLog(common.HexToHash("0x1234"), nil, nil)
	if _, err := decoder.Decode(unknown, 0); err == nil {
		t.Fatalf("expected error for unknown topic0")
	}
	if decoder.CanDecode(unknown.Topics[0]) {
		t.Fatalf("unknown topic0 should not be decodable")
	}

	if _, err := decoder.Decode(types.Log{}, 0); err == nil {
		t.Fatalf("expected error for empty topics")
	}

	// Requested carries three indexed args; a single topic is short.
	short := buildLog(coordABI.Events["RandomnessRequested"].ID, nil, []common.Hash{
		common.BigToHash(big.NewInt(1)),
	})
	if _, err := decoder.Decode(short, 0); err == nil {
		t.Fatalf("expected error for short topics")
	}

	truncated := buildLog(coordABI.Events["RandomnessFulfilled"].ID, []byte{0x01, 0x02}, []common.Hash{
		common.BigToHash(big.NewInt(1)),
	})
	if _, err := decoder.Decode(truncated, 0); err == nil {
		t.Fatalf("expected error for truncated data")
	}
}

func buildLog(topic0 common.Hash, data []byte, indexed []common.Hash) types.Log {
	topics := make([]common.Hash, 0, len(indexed)+1)
	topics = append(topics, topic0)
	topics = append(topics, indexed...)

	return types.Log{
		Address:     common.HexToAddress("0x9999999999999999999999999999999999999999"),
		Topics:      topics,
		Data:        data,
		BlockNumber: 12345,
		TxHash:      common.HexToHash("0xdef"),
		Index:       3,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
