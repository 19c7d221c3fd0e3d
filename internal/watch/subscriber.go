package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"randomnessScope/internal/coordinator"
	"randomnessScope/internal/model"
)

// DefaultPollInterval is the tip polling cadence used when the
// transport has no subscription support.
const DefaultPollInterval = 12 * time.Second

// LiveReader is the chain capability the subscriber needs.
type LiveReader interface {
	CurrentBlockHeight(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, topic0 common.Hash) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	SubscribeLogs(ctx context.Context, topic0 common.Hash, ch chan<- types.Log) (ethereum.Subscription, error)
}

// Invalidator receives cache invalidation triggers.
type Invalidator interface {
	Invalidate(windowPage uint32)
}

// Config holds subscriber settings.
type Config struct {
	PollInterval time.Duration
	Buffer       int
}

// Subscriber follows new RandomnessRequested logs at the chain tip. A
// new request invalidates the newest window so queries re-run the full
// pipeline; events are never merged ad hoc into cached state.
type Subscriber struct {
	reader      LiveReader
	decoder     *coordinator.Decoder
	invalidator Invalidator
	cfg         Config
	logger      *zap.Logger

	mu        sync.Mutex
	nextID    uint64
	callbacks map[uint64]func(model.Event)
}

// NewSubscriber builds a Subscriber with its dependencies.
func NewSubscriber(reader LiveReader, decoder *coordinator.Decoder, invalidator Invalidator, cfg Config, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	return &Subscriber{
		reader:      reader,
		decoder:     decoder,
		invalidator: invalidator,
		cfg:         cfg,
		logger:      logger,
		callbacks:   make(map[uint64]func(model.Event)),
	}
}

// Subscribe registers a callback for new requests. The returned
// function removes it; once it returns, no further calls are made.
func (s *Subscriber) Subscribe(fn func(model.Event)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.callbacks[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.callbacks, id)
		s.mu.Unlock()
	}
}

// Run follows the tip until ctx is cancelled. When the transport lacks
// log subscriptions, it falls back to height polling.
func (s *Subscriber) Run(ctx context.Context) error {
	topic := s.decoder.Topic(model.KindRequested)
	logs := make(chan types.Log, s.cfg.Buffer)

	sub, err := s.reader.SubscribeLogs(ctx, topic, logs)
	if err != nil {
		s.logger.Info("log subscription unavailable, polling the tip",
			zap.Duration("interval", s.cfg.PollInterval),
			zap.Error(err),
		)
		return s.poll(ctx, topic)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("request log subscription: %w", err)
		case log := <-logs:
			s.handleLog(ctx, log)
		}
	}
}

func (s *Subscriber) poll(ctx context.Context, topic common.Hash) error {
	last, err := s.reader.CurrentBlockHeight(ctx)
	if err != nil {
		return fmt.Errorf("initial height: %w", err)
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			height, err := s.reader.CurrentBlockHeight(ctx)
			if err != nil {
				s.logger.Warn("tip height poll failed", zap.Error(err))
				continue
			}
			if height <= last {
				continue
			}

			logs, err := s.reader.FilterLogs(ctx, last+1, height, topic)
			if err != nil {
				s.logger.Warn("tip log fetch failed",
					zap.Uint64("from", last+1),
					zap.Uint64("to", height),
					zap.Error(err),
				)
				continue
			}
			last = height

			for _, log := range logs {
				s.handleLog(ctx, log)
			}
		}
	}
}

func (s *Subscriber) handleLog(ctx context.Context, log types.Log) {
	if log.Removed {
		return
	}

	ts, err := s.reader.BlockTimestamp(ctx, log.BlockNumber)
	if err != nil {
		// The page-0 re-fetch rebuilds the timestamp anyway.
		s.logger.Warn("block timestamp fetch failed",
			zap.Uint64("block_number", log.BlockNumber),
			zap.Error(err),
		)
	}

	event, err := s.decoder.Decode(log, ts)
	if err != nil {
		s.logger.Warn("skip undecodable tip log",
			zap.Uint64("block_number", log.BlockNumber),
			zap.String("tx_hash", log.TxHash.Hex()),
			zap.Error(err),
		)
		return
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(0)
	}

	s.logger.Debug("new randomness request",
		zap.String("request_id", event.RequestID.String()),
		zap.Uint64("block_number", event.Block.Number),
	)

	// Callbacks run under the registry lock so an unsubscribe that has
	// returned can never race a late delivery.
	s.mu.Lock()
	for _, fn := range s.callbacks {
		fn(event)
	}
	s.mu.Unlock()
}
