package broadcast

import (
	"sync"

	"PatternFlow/internal/domain/models"
)

// Buffer accumulates normalized events per topic between two flush ticks.
// Drain swaps the whole map so accumulation for the next window never blocks
// on delivery of the previous one. A topic absent from the drained map means
// no pending events.
type Buffer struct {
	mu      sync.Mutex
	pending map[string][]*models.PatternEvent
	count   int
}

func NewBuffer() *Buffer {
	return &Buffer{pending: make(map[string][]*models.PatternEvent)}
}

// Add appends one event under its routing topic. Implements
// repository.EventSink. Order of appends per topic is the delivery order.
func (b *Buffer) Add(e *models.PatternEvent) {
	if e == nil {
		return
	}
	b.mu.Lock()
	b.pending[e.Topic] = append(b.pending[e.Topic], e)
	b.count++
	b.mu.Unlock()
}

// Drain atomically swaps in a fresh map and returns everything accumulated
// since the previous drain. Events added after the swap belong to the next
// window.
func (b *Buffer) Drain() map[string][]*models.PatternEvent {
	b.mu.Lock()
	out := b.pending
	b.pending = make(map[string][]*models.PatternEvent)
	b.count = 0
	b.mu.Unlock()
	return out
}

// Len returns the number of pending events across all topics.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
