package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"randomnessScope/internal/aggregate"
	"randomnessScope/internal/chain"
	"randomnessScope/internal/config"
	"randomnessScope/internal/coordinator"
	"randomnessScope/internal/model"
	"randomnessScope/internal/query"
	"randomnessScope/internal/scanner"
	"randomnessScope/internal/watch"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWatch(cfgFile, cmd.Flags())
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL, common.HexToAddress(cfg.Coordinator))
	if err != nil {
		return err
	}
	defer client.Close()

	decoder, err := coordinator.NewDecoder()
	if err != nil {
		return err
	}

	windowScanner := scanner.New(client, decoder, scanner.Config{
		FetchTimeout: cfg.FetchTimeout,
	}, logger)

	engine := query.NewEngine(client, windowScanner, query.Config{
		WindowSize:   cfg.WindowSize,
		GenesisBlock: cfg.Genesis,
		CacheTTL:     cfg.CacheTTL,
		MergeOptions: aggregate.Options{DeadlineOffset: cfg.DeadlineOffset},
	}, logger)

	subscriber := watch.NewSubscriber(client, decoder, engine, watch.Config{
		PollInterval: cfg.PollInterval,
	}, logger)

	unsubscribe := subscriber.Subscribe(func(event model.Event) {
		data, ok := event.Data.(model.RequestedData)
		if !ok {
			return
		}
		logger.Info("randomness requested",
			zap.String("request_id", event.RequestID.String()),
			zap.String("requester", data.Requester),
			zap.String("fee_paid", data.FeePaid.String()),
			zap.Uint64("block_number", event.Block.Number),
		)
	})
	defer unsubscribe()

	sweeper := watch.NewSweeper(engine, cfg.SweepInterval, logger)

	logger.Info("watch start",
		zap.String("coordinator", cfg.Coordinator),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("status_interval", cfg.StatusInterval),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return subscriber.Run(groupCtx) })
	group.Go(func() error { return sweeper.Run(groupCtx) })
	group.Go(func() error { return reportStatus(groupCtx, engine, cfg.StatusInterval, logger) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// reportStatus periodically queries the newest window and logs the view
// totals, keeping the page-0 cache warm between invalidations.
func reportStatus(ctx context.Context, engine *query.Engine, interval time.Duration, logger *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result, err := engine.Query(ctx, model.QueryParams{}, 0)
			if err != nil {
				logger.Warn("status query failed", zap.Error(err))
				continue
			}
			logger.Info("newest window status",
				zap.Int("total_requests", result.TotalItems),
				zap.Bool("has_next_page", result.HasNextPage),
			)
		}
	}
}
