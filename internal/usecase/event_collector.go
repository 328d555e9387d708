package usecase

import (
	"context"

	"PatternFlow/internal/ingest"
)

// EventCollector drains the supervised broker stream into the intake. It is
// the redis-broker ingest path; the kafka path goes through the consumer's
// worker pool instead.
type EventCollector struct {
	sup    *ingest.Supervisor
	intake *Intake
}

func NewEventCollector(sup *ingest.Supervisor, intake *Intake) *EventCollector {
	return &EventCollector{sup: sup, intake: intake}
}

// Connected reports whether the broker link is currently up.
func (c *EventCollector) Connected() bool {
	return c.sup.Connected()
}

// Start launches the supervisor and the consuming goroutine.
func (c *EventCollector) Start(ctx context.Context) {
	c.sup.Start(ctx)
	go c.consume(ctx)
}

func (c *EventCollector) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-c.sup.Messages():
			if !ok {
				return
			}
			// Rejections are already counted and logged inside Accept.
			_ = c.intake.Accept(raw)
		}
	}
}

// Shutdown stops the supervisor; the consume goroutine exits when the
// message channel closes.
func (c *EventCollector) Shutdown(ctx context.Context) error {
	c.sup.Stop()
	return nil
}
