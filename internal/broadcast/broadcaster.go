package broadcast

import (
	"context"
	"sync"
	"time"

	"PatternFlow/internal/domain/repository"
	applogger "PatternFlow/pkg/logger"
)

// BroadcasterOption configures Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithFlushInterval sets the fixed flush tick. Smaller values approach
// per-event delivery at higher fan-out overhead.
func WithFlushInterval(d time.Duration) BroadcasterOption {
	return func(b *Broadcaster) {
		if d > 0 {
			b.interval = d
		}
	}
}

// Broadcaster drains the buffer on a fixed timer and delivers one batched
// message per topic to every connection currently in that room. Delivery is
// best-effort, at-most-once: a failed or overflowing connection is purged and
// the rest of the room still gets the batch.
type Broadcaster struct {
	buf      *Buffer
	reg      *Registry
	interval time.Duration
	metrics  repository.Metrics
	logger   *applogger.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	stopped sync.Once
}

func NewBroadcaster(buf *Buffer, reg *Registry, metrics repository.Metrics, logger *applogger.Logger, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		buf:      buf,
		reg:      reg,
		interval: 250 * time.Millisecond,
		metrics:  metrics,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start launches the flush loop.
func (b *Broadcaster) Start(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			case <-ticker.C:
				b.Flush()
			}
		}
	}()
}

// Stop halts the timer and flushes whatever is pending once.
func (b *Broadcaster) Stop() {
	b.stopped.Do(func() {
		close(b.stopCh)
		b.wg.Wait()
		b.Flush()
	})
}

// Flush drains the buffer and fans each topic's batch out to the room's
// current membership. Topics with no pending events produce no delivery.
func (b *Broadcaster) Flush() {
	batches := b.buf.Drain()
	if len(batches) == 0 {
		return
	}
	start := time.Now()

	for topic, events := range batches {
		if len(events) == 0 {
			continue
		}
		members := b.reg.MembersOf(topic)
		if len(members) == 0 {
			continue
		}
		for _, conn := range members {
			if err := conn.Deliver(topic, events); err != nil {
				b.logger.Warn("delivery failed, purging connection",
					applogger.String("conn", conn.ID()),
					applogger.String("topic", topic),
					applogger.Error(err),
				)
				b.metrics.RecordConnectionDropped("delivery_error")
				b.reg.Purge(conn.ID())
				_ = conn.Close()
				continue
			}
			b.metrics.RecordBatchDelivered(topic, len(events))
		}
	}

	b.metrics.RecordLatency("flush", time.Since(start).Seconds())
	b.metrics.SetRooms(b.reg.Rooms())
	b.metrics.SetConnections(b.reg.Connections())
}
