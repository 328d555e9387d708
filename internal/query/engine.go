package query

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"PatternFlow/internal/domain/models"
	"PatternFlow/internal/domain/repository"
	"PatternFlow/pkg/cache"
	applogger "PatternFlow/pkg/logger"
)

// Snapshotter yields the current working set without deep copies; the
// returned slice is the caller's to reorder.
type Snapshotter interface {
	Snapshot() []*models.PatternEvent
}

// EngineOption configures Engine.
type EngineOption func(*Engine)

// WithMaxPageSize bounds page_size accepted by Scan.
func WithMaxPageSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxPageSize = n
		}
	}
}

// WithCache caches scan results keyed by the criteria hash. TTL should stay
// short; the working set churns continuously.
func WithCache(c cache.Service, ttl time.Duration) EngineOption {
	return func(e *Engine) {
		e.cache = c
		if ttl > 0 {
			e.cacheTTL = ttl
		}
	}
}

// Engine evaluates FilterCriteria against the working set and returns a
// sorted, paginated result plus the full matching count.
type Engine struct {
	store       Snapshotter
	cache       cache.Service
	cacheTTL    time.Duration
	metrics     repository.Metrics
	logger      *applogger.Logger
	maxPageSize int
}

func NewEngine(store Snapshotter, metrics repository.Metrics, logger *applogger.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:       store,
		cacheTTL:    2 * time.Second,
		metrics:     metrics,
		logger:      logger.With("query"),
		maxPageSize: 100,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type scanResult struct {
	Events []*models.PatternEvent `json:"events"`
	Total  int                    `json:"total"`
}

// Scan validates the criteria, evaluates the predicate tree against the
// snapshot and returns one page. Total reflects the full matching set before
// pagination so callers can compute page counts.
func (e *Engine) Scan(ctx context.Context, c Criteria) ([]*models.PatternEvent, int, error) {
	if err := c.Validate(e.maxPageSize); err != nil {
		e.metrics.RecordError("query_validation")
		return nil, 0, err
	}

	key := criteriaKey(c)
	if e.cache != nil {
		var cached scanResult
		var raw string
		if err := e.cache.Get(ctx, key, &raw); err == nil {
			if json.Unmarshal([]byte(raw), &cached) == nil {
				e.metrics.RecordLatency("scan_cache_hit", 0)
				return cached.Events, cached.Total, nil
			}
		}
	}

	start := time.Now()
	matched := make([]*models.PatternEvent, 0, 64)
	for _, ev := range e.store.Snapshot() {
		if c.Root.Eval(ev) {
			matched = append(matched, ev)
		}
	}

	sortEvents(matched, c.SortKey, c.SortDesc)

	total := len(matched)
	offset := (c.Page - 1) * c.PageSize
	var page []*models.PatternEvent
	if offset < total {
		end := offset + c.PageSize
		if end > total {
			end = total
		}
		page = matched[offset:end]
	} else {
		page = []*models.PatternEvent{}
	}

	e.metrics.RecordLatency("scan", time.Since(start).Seconds())

	if e.cache != nil {
		if b, err := json.Marshal(scanResult{Events: page, Total: total}); err == nil {
			if err := e.cache.Set(ctx, key, string(b), e.cacheTTL); err != nil {
				e.logger.Debug("scan cache set failed", applogger.Error(err))
			}
		}
	}

	return page, total, nil
}

// sortEvents orders stably by the sort key; ties always break by
// detected_at descending then symbol ascending, so identical queries over an
// unchanged working set return a deterministic order.
func sortEvents(events []*models.PatternEvent, key string, desc bool) {
	if key == "" {
		key = "detected_at"
		desc = true
	}
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if c := compareBy(a, b, key); c != 0 {
			if desc {
				return c > 0
			}
			return c < 0
		}
		if !a.DetectedAt.Equal(b.DetectedAt) {
			return a.DetectedAt.After(b.DetectedAt)
		}
		return a.Symbol < b.Symbol
	})
}

// compareBy returns -1/0/1 for a vs b on the given field. Events missing an
// optional numeric field order after those that have it.
func compareBy(a, b *models.PatternEvent, key string) int {
	switch key {
	case "detected_at":
		switch {
		case a.DetectedAt.Before(b.DetectedAt):
			return -1
		case a.DetectedAt.After(b.DetectedAt):
			return 1
		}
		return 0
	case "confidence":
		return comparePtr(a.Confidence, b.Confidence)
	case "price":
		return comparePtr(a.Price, b.Price)
	case "symbol":
		return compareStrings(a.Symbol, b.Symbol)
	case "topic":
		return compareStrings(a.Topic, b.Topic)
	case "kind":
		return compareStrings(string(a.Kind), string(b.Kind))
	}
	return 0
}

func comparePtr(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func criteriaKey(c Criteria) string {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("scan:%d:%d", c.Page, c.PageSize)
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("scan:%x", sum[:16])
}
