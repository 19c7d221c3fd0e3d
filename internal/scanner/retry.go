package scanner

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// RetryingReader decorates a LedgerReader with capped exponential
// backoff. The interactive query path never retries inline; the export
// walk wraps its reader with this to survive flaky RPC endpoints.
type RetryingReader struct {
	inner       LedgerReader
	maxRetries  uint64
	initialWait time.Duration
	logger      *zap.Logger
}

// NewRetryingReader builds the decorator.
func NewRetryingReader(inner LedgerReader, maxRetries uint64, initialWait time.Duration, logger *zap.Logger) *RetryingReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingReader{
		inner:       inner,
		maxRetries:  maxRetries,
		initialWait: initialWait,
		logger:      logger,
	}
}

func (r *RetryingReader) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := backoff.RetryNotify(func() error {
		var err error
		height, err = r.inner.CurrentBlockHeight(ctx)
		return err
	}, r.newBackOff(ctx), r.notify("current block height"))
	return height, err
}

func (r *RetryingReader) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, topic0 common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := backoff.RetryNotify(func() error {
		var err error
		logs, err = r.inner.FilterLogs(ctx, fromBlock, toBlock, topic0)
		return err
	}, r.newBackOff(ctx), r.notify("filter logs"))
	return logs, err
}

func (r *RetryingReader) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	var ts uint64
	err := backoff.RetryNotify(func() error {
		var err error
		ts, err = r.inner.BlockTimestamp(ctx, number)
		return err
	}, r.newBackOff(ctx), r.notify("block timestamp"))
	return ts, err
}

func (r *RetryingReader) newBackOff(ctx context.Context) backoff.BackOff {
	exponential := backoff.NewExponentialBackOff()
	if r.initialWait > 0 {
		exponential.InitialInterval = r.initialWait
	}
	return backoff.WithContext(backoff.WithMaxRetries(exponential, r.maxRetries), ctx)
}

func (r *RetryingReader) notify(op string) backoff.Notify {
	return func(err error, wait time.Duration) {
		r.logger.Warn("retrying ledger call",
			zap.String("op", op),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
}
