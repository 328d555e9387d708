package usecase

import (
	"context"
	"errors"
	"time"

	"PatternFlow/internal/domain/models"
	pkgkafka "PatternFlow/pkg/kafka"
)

// KafkaEventsHandler adapts the intake to the kafka consumer's MessageHandler
// contract for one detection topic.
type KafkaEventsHandler struct {
	topic  string
	intake *Intake
}

func NewKafkaEventsHandler(topic string, intake *Intake) *KafkaEventsHandler {
	return &KafkaEventsHandler{topic: topic, intake: intake}
}

func (h *KafkaEventsHandler) Topic() string { return h.topic }

// Handle normalizes one kafka message. A NormalizationError is terminal for
// the message since retrying a malformed payload cannot succeed, so it is
// swallowed here after the intake has counted it, keeping it out of the
// consumer's retry/DLQ path.
func (h *KafkaEventsHandler) Handle(ctx context.Context, b []byte) error {
	raw := &models.RawMessage{
		Topic:      h.topic,
		Data:       b,
		ReceivedAt: time.Now(),
	}
	if err := h.intake.Accept(raw); err != nil {
		var nerr *models.NormalizationError
		if errors.As(err, &nerr) {
			return nil
		}
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaEventsHandler)(nil)
