package repository

import (
	"context"

	"PatternFlow/internal/domain/models"
)

// EventStream is a live subscription to one or more broker topics. Read
// yields raw encoded payloads until the connection fails, at which point the
// error channel fires and the reconnection supervisor takes over.
type EventStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error)
	Close() error
	IsConnected() bool
}

// EventSink receives normalized events from the ingest path. The batching
// buffer and the working set both implement it.
type EventSink interface {
	Add(e *models.PatternEvent)
}

// Publisher sends encoded events to a broker topic. Used by the synthetic
// event emitter and the consumer's dead-letter path.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value any) error
	Close() error
}

type Metrics interface {
	RecordEventIngested(topic string)
	RecordRejected(reason string)
	RecordBatchDelivered(topic string, size int)
	RecordConnectionDropped(reason string)
	RecordReconnect(outcome string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	SetRooms(n int)
	SetConnections(n int)
}
