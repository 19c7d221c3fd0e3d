package query

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"randomnessScope/internal/aggregate"
	"randomnessScope/internal/model"
	"randomnessScope/internal/scanner"
)

// DefaultCacheTTL applies when Config leaves CacheTTL unset.
const DefaultCacheTTL = 30 * time.Second

// WindowScanner runs the fetch+decode pipeline for one block window.
type WindowScanner interface {
	ScanWindow(ctx context.Context, cursor model.WindowCursor) ([]model.Event, error)
}

// HeightReader reports the chain tip.
type HeightReader interface {
	CurrentBlockHeight(ctx context.Context) (uint64, error)
}

// Config holds orchestration settings.
type Config struct {
	WindowSize   uint64
	GenesisBlock uint64
	CacheTTL     time.Duration
	MergeOptions aggregate.Options
}

type entry struct {
	result    model.PageResult
	fetchedAt time.Time
	hasResult bool
	// pending tags the in-flight fetch generation; 0 means none. A
	// completion whose tag no longer matches is discarded wholesale.
	pending uint64
}

// Engine coordinates window scans, caching, and staleness for the
// query surface. The cache is keyed by (window page, params key) and
// entries are replaced wholesale per generation, never patched in
// place.
type Engine struct {
	reader  HeightReader
	scanner WindowScanner
	cfg     Config
	logger  *zap.Logger

	mu         sync.Mutex
	anchor     uint64
	generation uint64
	entries    map[string]*entry
	now        func() time.Time
}

// NewEngine builds an Engine with its dependencies.
func NewEngine(reader HeightReader, windowScanner WindowScanner, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WindowSize == 0 {
		cfg.WindowSize = scanner.DefaultWindowSize
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return &Engine{
		reader:  reader,
		scanner: windowScanner,
		cfg:     cfg,
		logger:  logger,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Query returns one page of the aggregate view for a history window.
// Fresh cache entries are served directly; otherwise the full
// fetch-decode-merge-view pipeline runs for the window. On a fetch
// failure with a cached result available, the stale page is returned
// together with the error.
func (e *Engine) Query(ctx context.Context, params model.QueryParams, windowPage uint32) (model.PageResult, error) {
	params = params.Normalize()
	key := cacheKey(windowPage, params)

	e.mu.Lock()
	ent, ok := e.entries[key]
	if !ok {
		ent = &entry{}
		e.entries[key] = ent
	}
	if ent.hasResult && e.now().Sub(ent.fetchedAt) < e.cfg.CacheTTL {
		result := ent.result
		e.mu.Unlock()
		return result, nil
	}
	e.generation++
	gen := e.generation
	ent.pending = gen
	e.mu.Unlock()

	anchor, err := e.anchorHeight(ctx)
	if err != nil {
		return e.fallback(key, fmt.Errorf("anchor height: %w", err))
	}

	cursor, _, err := scanner.SelectWindow(anchor, windowPage, e.cfg.WindowSize, e.cfg.GenesisBlock)
	if err != nil {
		return e.fallback(key, err)
	}

	events, err := e.scanner.ScanWindow(ctx, cursor)
	if err != nil {
		return e.fallback(key, fmt.Errorf("scan window %d-%d: %w", cursor.FromBlock, cursor.ToBlock, err))
	}

	aggregates, stats := aggregate.Merge(nil, events, e.cfg.MergeOptions)
	result := aggregate.View(aggregates, params)

	e.mu.Lock()
	defer e.mu.Unlock()

	current, ok := e.entries[key]
	if !ok || current.pending != gen {
		// The key was invalidated or superseded while fetching; the
		// late result must not reach the cache.
		e.logger.Debug("discard stale generation",
			zap.String("key", key),
			zap.Uint64("generation", gen),
		)
		return result, nil
	}

	current.result = result
	current.fetchedAt = e.now()
	current.hasResult = true
	current.pending = 0

	if stats.Orphans > 0 {
		e.logger.Debug("dropped orphan events",
			zap.Int("orphans", stats.Orphans),
			zap.Uint64("from", cursor.FromBlock),
			zap.Uint64("to", cursor.ToBlock),
		)
	}

	return result, nil
}

// Refresh drops the session anchor and the entry's freshness, then
// re-runs the pipeline for the page.
func (e *Engine) Refresh(ctx context.Context, params model.QueryParams, windowPage uint32) (model.PageResult, error) {
	params = params.Normalize()
	key := cacheKey(windowPage, params)

	e.mu.Lock()
	e.anchor = 0
	if ent, ok := e.entries[key]; ok {
		ent.fetchedAt = time.Time{}
		ent.pending = 0
	}
	e.mu.Unlock()

	return e.Query(ctx, params, windowPage)
}

// Invalidate marks every cache entry for the window page stale so the
// next query re-runs the full pipeline. The live subscriber calls this
// with page 0 when new requests land at the tip; in-flight fetches for
// the page are discarded on arrival.
func (e *Engine) Invalidate(windowPage uint32) {
	prefix := fmt.Sprintf("%d|", windowPage)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.anchor = 0
	for key, ent := range e.entries {
		if strings.HasPrefix(key, prefix) {
			ent.fetchedAt = time.Time{}
			ent.pending = 0
		}
	}
}

// InvalidateAll stales every cache entry and the session anchor.
func (e *Engine) InvalidateAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.anchor = 0
	for _, ent := range e.entries {
		ent.fetchedAt = time.Time{}
		ent.pending = 0
	}
}

// EvictExpired drops entries whose TTL lapsed and that have no fetch in
// flight. Returns the number of evicted entries.
func (e *Engine) EvictExpired() int {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	evicted := 0
	for key, ent := range e.entries {
		if ent.pending != 0 {
			continue
		}
		if !ent.hasResult || now.Sub(ent.fetchedAt) >= e.cfg.CacheTTL {
			delete(e.entries, key)
			evicted++
		}
	}
	return evicted
}

// WindowInfo reports the block range a window page covers, for display.
func (e *Engine) WindowInfo(ctx context.Context, windowPage uint32) (model.WindowInfo, error) {
	anchor, err := e.anchorHeight(ctx)
	if err != nil {
		return model.WindowInfo{}, err
	}

	cursor, _, err := scanner.SelectWindow(anchor, windowPage, e.cfg.WindowSize, e.cfg.GenesisBlock)
	if err != nil {
		return model.WindowInfo{}, err
	}

	return model.WindowInfo{
		CurrentBlock: anchor,
		FromBlock:    cursor.FromBlock,
		ToBlock:      cursor.ToBlock,
		BlockRange:   e.cfg.WindowSize,
	}, nil
}

// anchorHeight captures the chain tip once per session so page ranges
// stay stable while blocks keep arriving. Invalidate and Refresh drop
// the anchor.
func (e *Engine) anchorHeight(ctx context.Context) (uint64, error) {
	e.mu.Lock()
	anchor := e.anchor
	e.mu.Unlock()
	if anchor != 0 {
		return anchor, nil
	}

	height, err := e.reader.CurrentBlockHeight(ctx)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	if e.anchor == 0 {
		e.anchor = height
	}
	anchor = e.anchor
	e.mu.Unlock()

	return anchor, nil
}

func (e *Engine) fallback(key string, err error) (model.PageResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ent, ok := e.entries[key]; ok {
		ent.pending = 0
		if ent.hasResult {
			// Stale-while-error: keep the last good page visible.
			return ent.result, err
		}
	}
	return model.PageResult{}, err
}

func cacheKey(windowPage uint32, params model.QueryParams) string {
	return fmt.Sprintf("%d|%s", windowPage, params.Key())
}
