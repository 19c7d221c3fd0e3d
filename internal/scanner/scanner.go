package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"randomnessScope/internal/coordinator"
	"randomnessScope/internal/model"
)

// LedgerReader is the read-only chain capability the scanner consumes.
type LedgerReader interface {
	CurrentBlockHeight(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, topic0 common.Hash) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// Config holds scan settings.
type Config struct {
	// FetchTimeout bounds one window scan; 0 disables the bound.
	FetchTimeout time.Duration
	// OnDecodeError receives skipped-log records, e.g. for a JSONL
	// sidecar. May be nil.
	OnDecodeError func(model.DecodeError)
}

// Scanner fetches and decodes the three coordinator event streams for
// one block window.
type Scanner struct {
	reader  LedgerReader
	decoder *coordinator.Decoder
	cfg     Config
	logger  *zap.Logger
}

// New builds a Scanner with its dependencies.
func New(reader LedgerReader, decoder *coordinator.Decoder, cfg Config, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		reader:  reader,
		decoder: decoder,
		cfg:     cfg,
		logger:  logger,
	}
}

// ScanWindow fetches the three event kinds concurrently and returns the
// decoded events. Nothing is returned until every fetch resolves, so a
// partial view can never show a fulfilled request as pending. Logs
// that fail to decode are skipped; the batch continues.
func (s *Scanner) ScanWindow(ctx context.Context, cursor model.WindowCursor) ([]model.Event, error) {
	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}

	kinds := []model.EventKind{model.KindRequested, model.KindFulfilled, model.KindCallbackFailed}
	batches := make([][]types.Log, len(kinds))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		i, kind := i, kind
		group.Go(func() error {
			logs, err := s.reader.FilterLogs(groupCtx, cursor.FromBlock, cursor.ToBlock, s.decoder.Topic(kind))
			if err != nil {
				return fmt.Errorf("fetch %s logs: %w", kind, err)
			}
			batches[i] = logs
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	timestamps, err := s.blockTimestamps(ctx, batches)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, logs := range batches {
		total += len(logs)
	}

	events := make([]model.Event, 0, total)
	for _, logs := range batches {
		for _, log := range logs {
			if log.Removed {
				continue
			}
			event, err := s.decoder.Decode(log, timestamps[log.BlockNumber])
			if err != nil {
				s.skipLog(log, err)
				continue
			}
			events = append(events, event)
		}
	}

	s.logger.Debug("window scanned",
		zap.Uint64("from", cursor.FromBlock),
		zap.Uint64("to", cursor.ToBlock),
		zap.Int("logs", total),
		zap.Int("events", len(events)),
	)

	return events, nil
}

// blockTimestamps resolves timestamps for the union of touched blocks.
func (s *Scanner) blockTimestamps(ctx context.Context, batches [][]types.Log) (map[uint64]uint64, error) {
	numbers := make(map[uint64]struct{})
	for _, logs := range batches {
		for _, log := range logs {
			numbers[log.BlockNumber] = struct{}{}
		}
	}

	ordered := make([]uint64, 0, len(numbers))
	for number := range numbers {
		ordered = append(ordered, number)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	timestamps := make(map[uint64]uint64, len(ordered))
	for _, number := range ordered {
		ts, err := s.reader.BlockTimestamp(ctx, number)
		if err != nil {
			return nil, fmt.Errorf("block timestamp %d: %w", number, err)
		}
		timestamps[number] = ts
	}
	return timestamps, nil
}

func (s *Scanner) skipLog(log types.Log, err error) {
	s.logger.Warn("skip undecodable log",
		zap.Uint64("block_number", log.BlockNumber),
		zap.String("tx_hash", log.TxHash.Hex()),
		zap.Uint("log_index", log.Index),
		zap.Error(err),
	)

	if s.cfg.OnDecodeError == nil {
		return
	}
	topic0 := ""
	if len(log.Topics) > 0 {
		topic0 = log.Topics[0].Hex()
	}
	s.cfg.OnDecodeError(model.DecodeError{
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topic0:      topic0,
		Error:       err.Error(),
	})
}
