package watch

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is the cache sweep cadence.
const DefaultSweepInterval = time.Minute

// Cache is the eviction surface the sweeper drives.
type Cache interface {
	EvictExpired() int
}

// Sweeper periodically evicts expired cache entries so idle windows
// honor their TTL without a query touching them.
type Sweeper struct {
	cache    Cache
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper builds a Sweeper.
func NewSweeper(cache Cache, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{cache: cache, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if evicted := s.cache.EvictExpired(); evicted > 0 {
				s.logger.Debug("evicted cache entries", zap.Int("count", evicted))
			}
		}
	}
}
