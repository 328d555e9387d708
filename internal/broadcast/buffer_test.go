package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PatternFlow/internal/domain/models"
)

func event(topic, symbol string) *models.PatternEvent {
	return &models.PatternEvent{
		Topic:      topic,
		Kind:       models.KindPattern,
		Symbol:     symbol,
		DetectedAt: time.Now(),
	}
}

func TestBufferDrainSwapsWindow(t *testing.T) {
	b := NewBuffer()

	b.Add(event("a", "S1"))
	b.Add(event("b", "S2"))
	b.Add(event("a", "S3"))
	assert.Equal(t, 3, b.Len())

	batches := b.Drain()
	require.Len(t, batches, 2)
	require.Len(t, batches["a"], 2)
	require.Len(t, batches["b"], 1)
	assert.Equal(t, 0, b.Len())

	// Events after the drain belong to the next window only.
	b.Add(event("a", "S4"))
	next := b.Drain()
	require.Len(t, next["a"], 1)
	assert.Equal(t, "S4", next["a"][0].Symbol)
}

func TestBufferPreservesPerTopicOrder(t *testing.T) {
	b := NewBuffer()
	symbols := []string{"S1", "S2", "S3", "S4", "S5"}
	for _, s := range symbols {
		b.Add(event("a", s))
	}

	got := b.Drain()["a"]
	require.Len(t, got, len(symbols))
	for i, s := range symbols {
		assert.Equal(t, s, got[i].Symbol)
	}
}

func TestBufferIgnoresNil(t *testing.T) {
	b := NewBuffer()
	b.Add(nil)
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Drain())
}
