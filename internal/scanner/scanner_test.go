package scanner

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"randomnessScope/internal/coordinator"
	"randomnessScope/internal/model"
)

type fakeReader struct {
	height    uint64
	logs      map[common.Hash][]types.Log
	failTopic common.Hash
	failErr   error
	calls     atomic.Int64
}

func (f *fakeReader) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	return f.height, nil
}

func (f *fakeReader) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, topic0 common.Hash) ([]types.Log, error) {
	f.calls.Add(1)
	if f.failErr != nil && topic0 == f.failTopic {
		return nil, f.failErr
	}
	out := make([]types.Log, 0)
	for _, log := range f.logs[topic0] {
		if log.BlockNumber >= fromBlock && log.BlockNumber <= toBlock {
			out = append(out, log)
		}
	}
	return out, nil
}

func (f *fakeReader) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	return 1700000000 + number, nil
}

func TestScanWindowDecodesAllKinds(t *testing.T) {
	decoder, err := coordinator.NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	reader := &fakeReader{
		height: 200,
		logs: map[common.Hash][]types.Log{
			decoder.Topic(model.KindRequested): {
				requestedLog(t, 1, 100, 0),
				requestedLog(t, 2, 101, 0),
			},
			decoder.Topic(model.KindFulfilled): {
				fulfilledLog(t, 1, 105, 0),
			},
		},
	}

	scanner := New(reader, decoder, Config{}, nil)

	events, err := scanner.ScanWindow(context.Background(), model.WindowCursor{FromBlock: 0, ToBlock: 200})
	if err != nil {
		t.Fatalf("scan window: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for _, event := range events {
		if event.Block.Timestamp != 1700000000+event.Block.Number {
			t.Fatalf("timestamp not resolved: %+v", event.Block)
		}
	}
}

func TestScanWindowAllOrNothing(t *testing.T) {
	decoder, err := coordinator.NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	reader := &fakeReader{
		height: 200,
		logs: map[common.Hash][]types.Log{
			decoder.Topic(model.KindRequested): {requestedLog(t, 1, 100, 0)},
		},
		failTopic: decoder.Topic(model.KindFulfilled),
		failErr:   fmt.Errorf("rpc down"),
	}

	scanner := New(reader, decoder, Config{}, nil)

	if _, err := scanner.ScanWindow(context.Background(), model.WindowCursor{FromBlock: 0, ToBlock: 200}); err == nil {
		t.Fatalf("one failing fetch must fail the whole window")
	}
}

func TestScanWindowSkipsUndecodableLogs(t *testing.T) {
	decoder, err := coordinator.NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	// A truncated Requested log sits next to a valid one.
	broken := requestedLog(t, 1, 100, 0)
	broken.Data = broken.Data[:8]
	broken.TxHash = common.HexToHash("0xbad")

	reader := &fakeReader{
		height: 200,
		logs: map[common.Hash][]types.Log{
			decoder.Topic(model.KindRequested): {broken, requestedLog(t, 2, 101, 0)},
		},
	}

	var skipped []model.DecodeError
	scanner := New(reader, decoder, Config{
		OnDecodeError: func(decodeErr model.DecodeError) { skipped = append(skipped, decodeErr) },
	}, nil)

	events, err := scanner.ScanWindow(context.Background(), model.WindowCursor{FromBlock: 0, ToBlock: 200})
	if err != nil {
		t.Fatalf("decode failure must not abort the batch: %v", err)
	}

	if len(events) != 1 || events[0].RequestID.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("valid log should survive: %+v", events)
	}
	if len(skipped) != 1 || skipped[0].BlockNumber != 100 {
		t.Fatalf("decode error sink mismatch: %+v", skipped)
	}
}

func TestRetryingReaderRecovers(t *testing.T) {
	decoder, err := coordinator.NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	flaky := &flakyReader{failures: 2, log: requestedLog(t, 1, 100, 0)}
	reader := NewRetryingReader(flaky, 3, time.Millisecond, nil)

	logs, err := reader.FilterLogs(context.Background(), 0, 200, decoder.Topic(model.KindRequested))
	if err != nil {
		t.Fatalf("retry should recover: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	if flaky.attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", flaky.attempts)
	}
}

type flakyReader struct {
	failures int
	attempts int
	log      types.Log
}

func (f *flakyReader) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	return 200, nil
}

func (f *flakyReader) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, topic0 common.Hash) ([]types.Log, error) {
	f.attempts++
	if f.attempts <= f.failures {
		return nil, fmt.Errorf("transient rpc error")
	}
	return []types.Log{f.log}, nil
}

func (f *flakyReader) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	return 1700000000 + number, nil
}

func requestedLog(t *testing.T, id int64, block uint64, logIndex uint) types.Log {
	t.Helper()

	coordABI, err := coordinator.CoordinatorABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	data, err := coordABI.Events["RandomnessRequested"].Inputs.NonIndexed().Pack(
		big.NewInt(512),
		big.NewInt(200000),
		big.NewInt(1000),
		big.NewInt(5),
	)
	if err != nil {
		t.Fatalf("pack requested: %v", err)
	}

	return types.Log{
		Address: common.HexToAddress("0x9999999999999999999999999999999999999999"),
		Topics: []common.Hash{
			coordABI.Events["RandomnessRequested"].ID,
			common.BigToHash(big.NewInt(id)),
			common.BytesToHash(common.HexToAddress("0x1111111111111111111111111111111111111111").Bytes()),
			common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(id*1000 + int64(block))),
		Index:       logIndex,
	}
}

func fulfilledLog(t *testing.T, id int64, block uint64, logIndex uint) types.Log {
	t.Helper()

	coordABI, err := coordinator.CoordinatorABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	data, err := coordABI.Events["RandomnessFulfilled"].Inputs.NonIndexed().Pack(
		big.NewInt(42),
		true,
		big.NewInt(150000),
	)
	if err != nil {
		t.Fatalf("pack fulfilled: %v", err)
	}

	return types.Log{
		Address: common.HexToAddress("0x9999999999999999999999999999999999999999"),
		Topics: []common.Hash{
			coordABI.Events["RandomnessFulfilled"].ID,
			common.BigToHash(big.NewInt(id)),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(id*2000 + int64(block))),
		Index:       logIndex,
	}
}
