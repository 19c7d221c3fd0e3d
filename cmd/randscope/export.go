package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"randomnessScope/internal/aggregate"
	"randomnessScope/internal/chain"
	"randomnessScope/internal/config"
	"randomnessScope/internal/coordinator"
	"randomnessScope/internal/model"
	"randomnessScope/internal/scanner"
	"randomnessScope/internal/storage"
	"randomnessScope/internal/storage/postgres"
)

func runExport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadExport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Coordinator) {
		return fmt.Errorf("invalid coordinator address: %s", cfg.Coordinator)
	}
	coordAddr := common.HexToAddress(cfg.Coordinator)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL, coordAddr)
	if err != nil {
		return err
	}
	defer client.Close()

	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
	}

	startBlock := cfg.Genesis
	if store != nil && cfg.Resume {
		lastBlock, found, err := store.LoadScanState(ctx, coordAddr.Hex())
		if err != nil {
			return fmt.Errorf("load scan state: %w", err)
		}
		if found && lastBlock+1 > startBlock {
			startBlock = lastBlock + 1
			logger.Info("resuming export",
				zap.Uint64("last_block", lastBlock),
				zap.Uint64("start_block", startBlock),
			)
		}
	}

	decoder, err := coordinator.NewDecoder()
	if err != nil {
		return err
	}

	errorSink := storage.NewJsonlErrorSink(cfg.Errors)
	reader := scanner.NewRetryingReader(client, cfg.MaxRetries, cfg.RetryBackoff, logger)
	windowScanner := scanner.New(reader, decoder, scanner.Config{
		FetchTimeout: cfg.FetchTimeout,
		OnDecodeError: func(decodeErr model.DecodeError) {
			if err := errorSink.Put(decodeErr); err != nil {
				logger.Warn("write decode error record", zap.Error(err))
			}
		},
	}, logger)

	anchor, err := reader.CurrentBlockHeight(ctx)
	if err != nil {
		return err
	}
	if anchor < startBlock {
		logger.Info("nothing to export",
			zap.Uint64("anchor", anchor),
			zap.Uint64("start_block", startBlock),
		)
		return nil
	}

	cursors, err := collectCursors(anchor, startBlock, cfg.WindowSize, cfg.Pages)
	if err != nil {
		return err
	}

	logger.Info("export start",
		zap.String("coordinator", coordAddr.Hex()),
		zap.Uint64("anchor", anchor),
		zap.Uint64("start_block", startBlock),
		zap.Uint64("window_size", cfg.WindowSize),
		zap.Int("windows", len(cursors)),
		zap.String("out", cfg.Out),
	)

	// Windows are walked oldest to newest so a fulfillment always sees
	// the creation that precedes it instead of being dropped as an
	// orphan at a window boundary.
	aggregates := make(map[string]model.RandomnessRequest)
	var stats aggregate.Stats
	opts := aggregate.Options{DeadlineOffset: cfg.DeadlineOffset}

	for i := len(cursors) - 1; i >= 0; i-- {
		cursor := cursors[i]
		events, err := windowScanner.ScanWindow(ctx, cursor)
		if err != nil {
			return fmt.Errorf("scan window %d-%d: %w", cursor.FromBlock, cursor.ToBlock, err)
		}

		var windowStats aggregate.Stats
		aggregates, windowStats = aggregate.Merge(aggregates, events, opts)
		stats.Add(windowStats)

		logger.Info("window merged",
			zap.Uint64("from", cursor.FromBlock),
			zap.Uint64("to", cursor.ToBlock),
			zap.Int("events", len(events)),
			zap.Int("requests", len(aggregates)),
		)
	}

	records := buildRecords(aggregates, time.Now())

	var sink storage.Storage = storage.NewJsonlStorage(cfg.Out)
	if err := sink.PutRequestBatch(records); err != nil {
		return fmt.Errorf("write jsonl: %w", err)
	}

	if store != nil {
		if err := store.UpsertRequests(ctx, records); err != nil {
			return fmt.Errorf("upsert requests: %w", err)
		}
		if err := store.SaveScanState(ctx, coordAddr.Hex(), anchor); err != nil {
			return fmt.Errorf("save scan state: %w", err)
		}
	}

	logger.Info("export done",
		zap.Int("requests", len(records)),
		zap.Int("applied", stats.Applied),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("orphans", stats.Orphans),
	)

	return nil
}

// collectCursors lists the window pages to export, newest first. A zero
// pages limit walks back to startBlock.
func collectCursors(anchor, startBlock, windowSize uint64, pages uint32) ([]model.WindowCursor, error) {
	var cursors []model.WindowCursor
	for page := uint32(0); ; page++ {
		cursor, hasOlder, err := scanner.SelectWindow(anchor, page, windowSize, startBlock)
		if err != nil {
			return nil, err
		}
		cursors = append(cursors, cursor)
		if pages > 0 && uint32(len(cursors)) >= pages {
			break
		}
		if !hasOlder {
			break
		}
	}
	return cursors, nil
}

// buildRecords flattens the aggregate map into export records ordered
// by creation block, then request id.
func buildRecords(aggregates map[string]model.RandomnessRequest, exportedAt time.Time) []model.RequestRecord {
	requests := make([]model.RandomnessRequest, 0, len(aggregates))
	for _, request := range aggregates {
		requests = append(requests, request)
	}
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].BlockNumber != requests[j].BlockNumber {
			return requests[i].BlockNumber < requests[j].BlockNumber
		}
		return requests[i].ID.Cmp(requests[j].ID) < 0
	})

	records := make([]model.RequestRecord, 0, len(requests))
	for _, request := range requests {
		records = append(records, model.BuildRequestRecord(request, exportedAt))
	}
	return records
}
