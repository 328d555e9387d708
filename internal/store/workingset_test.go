package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PatternFlow/internal/domain/models"
)

func newEvent(symbol string, detected time.Time) *models.PatternEvent {
	return &models.PatternEvent{
		Topic:      "patterns.breakout",
		Kind:       models.KindPattern,
		Symbol:     symbol,
		DetectedAt: detected,
	}
}

func TestWorkingSetAddAndSnapshot(t *testing.T) {
	ws := NewWorkingSet()
	defer ws.Close()

	now := time.Now()
	ws.Add(newEvent("AAPL", now))
	ws.Add(newEvent("MSFT", now))
	ws.Add(nil)

	snap := ws.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "AAPL", snap[0].Symbol)
	assert.Equal(t, "MSFT", snap[1].Symbol)
	assert.Equal(t, 2, ws.Len())
}

func TestWorkingSetSnapshotExcludesExpired(t *testing.T) {
	ws := NewWorkingSet()
	defer ws.Close()

	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	expired := newEvent("OLD", now.Add(-2*time.Minute))
	expired.ExpiresAt = &past
	live := newEvent("NEW", now)
	live.ExpiresAt = &future

	ws.Add(expired)
	ws.Add(live)

	snap := ws.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "NEW", snap[0].Symbol)
	// Expired events stay resident until the sweeper runs.
	assert.Equal(t, 2, ws.Len())
}

func TestWorkingSetSnapshotIsIndependent(t *testing.T) {
	ws := NewWorkingSet()
	defer ws.Close()

	ws.Add(newEvent("A", time.Now()))
	snap := ws.Snapshot()
	snap[0] = nil

	again := ws.Snapshot()
	require.Len(t, again, 1)
	assert.Equal(t, "A", again[0].Symbol)
}

func TestWorkingSetEvictRetentionCutoff(t *testing.T) {
	ws := NewWorkingSet(WithRetention(10 * time.Minute))
	defer ws.Close()

	now := time.Now()
	ws.Add(newEvent("STALE", now.Add(-11*time.Minute)))
	ws.Add(newEvent("FRESH", now.Add(-time.Minute)))

	ws.evict(now)

	snap := ws.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "FRESH", snap[0].Symbol)
	assert.Equal(t, 1, ws.Len())
}

func TestWorkingSetEvictDropsExpired(t *testing.T) {
	ws := NewWorkingSet()
	defer ws.Close()

	now := time.Now()
	past := now.Add(-time.Second)
	gone := newEvent("GONE", now)
	gone.ExpiresAt = &past
	ws.Add(gone)
	ws.Add(newEvent("KEPT", now))

	ws.evict(now)

	assert.Equal(t, 1, ws.Len())
	snap := ws.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "KEPT", snap[0].Symbol)
}

func TestWorkingSetMaxSizeDropsOldest(t *testing.T) {
	ws := NewWorkingSet(WithMaxSize(3))
	defer ws.Close()

	now := time.Now()
	for i := 0; i < 5; i++ {
		ws.Add(newEvent(fmt.Sprintf("S%d", i), now.Add(time.Duration(i)*time.Second)))
	}

	assert.Equal(t, 3, ws.Len())
	snap := ws.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "S2", snap[0].Symbol)
	assert.Equal(t, "S4", snap[2].Symbol)
}

func TestWorkingSetCloseIsIdempotent(t *testing.T) {
	ws := NewWorkingSet()
	ws.Close()
	ws.Close()
}
