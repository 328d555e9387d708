package store

import (
	"sync"
	"time"

	"PatternFlow/internal/domain/models"
)

// WorkingSetOption configures WorkingSet.
type WorkingSetOption func(*workingSetConfig)

type workingSetConfig struct {
	Retention     time.Duration
	MaxSize       int
	SweepInterval time.Duration
}

// WithRetention bounds how long an event without expires_at stays resident.
func WithRetention(d time.Duration) WorkingSetOption {
	return func(c *workingSetConfig) {
		if d > 0 {
			c.Retention = d
		}
	}
}

// WithMaxSize caps the resident event count; oldest events go first.
func WithMaxSize(n int) WorkingSetOption {
	return func(c *workingSetConfig) {
		if n > 0 {
			c.MaxSize = n
		}
	}
}

// WithSweepInterval sets how often expired events are evicted.
func WithSweepInterval(d time.Duration) WorkingSetOption {
	return func(c *workingSetConfig) {
		if d > 0 {
			c.SweepInterval = d
		}
	}
}

// WorkingSet holds the normalized events the query engine scans. Events are
// kept in arrival order, shared by pointer and never mutated; eviction
// happens on a sweep ticker once an event passes expires_at or falls out of
// the retention window.
type WorkingSet struct {
	mu     sync.RWMutex
	events []*models.PatternEvent
	cfg    workingSetConfig
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func NewWorkingSet(opts ...WorkingSetOption) *WorkingSet {
	cfg := workingSetConfig{
		Retention:     time.Hour,
		MaxSize:       50000,
		SweepInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ws := &WorkingSet{
		cfg:    cfg,
		ticker: time.NewTicker(cfg.SweepInterval),
		done:   make(chan struct{}),
	}
	go ws.sweepLoop()
	return ws
}

// Add appends one event. Implements repository.EventSink.
func (ws *WorkingSet) Add(e *models.PatternEvent) {
	if e == nil {
		return
	}
	ws.mu.Lock()
	ws.events = append(ws.events, e)
	if len(ws.events) > ws.cfg.MaxSize {
		over := len(ws.events) - ws.cfg.MaxSize
		ws.events = append(ws.events[:0:0], ws.events[over:]...)
	}
	ws.mu.Unlock()
}

// Snapshot returns the live events as a new slice sharing the underlying
// immutable values. Callers may sort or filter the slice freely.
func (ws *WorkingSet) Snapshot() []*models.PatternEvent {
	now := time.Now()
	ws.mu.RLock()
	out := make([]*models.PatternEvent, 0, len(ws.events))
	for _, e := range ws.events {
		if !e.Expired(now) {
			out = append(out, e)
		}
	}
	ws.mu.RUnlock()
	return out
}

// Len returns the resident event count, including not-yet-swept expired ones.
func (ws *WorkingSet) Len() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.events)
}

func (ws *WorkingSet) sweepLoop() {
	for {
		select {
		case <-ws.done:
			return
		case <-ws.ticker.C:
			ws.evict(time.Now())
		}
	}
}

func (ws *WorkingSet) evict(now time.Time) {
	cutoff := now.Add(-ws.cfg.Retention)
	ws.mu.Lock()
	kept := ws.events[:0]
	for _, e := range ws.events {
		if e.Expired(now) || e.DetectedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(ws.events); i++ {
		ws.events[i] = nil
	}
	ws.events = kept
	ws.mu.Unlock()
}

// Close stops the sweep ticker.
func (ws *WorkingSet) Close() {
	ws.once.Do(func() {
		ws.ticker.Stop()
		close(ws.done)
	})
}
