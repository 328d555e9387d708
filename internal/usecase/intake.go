package usecase

import (
	"errors"
	"time"

	"PatternFlow/internal/domain/models"
	drepo "PatternFlow/internal/domain/repository"
	"PatternFlow/internal/normalize"
	applogger "PatternFlow/pkg/logger"
)

// Intake is the single normalize-and-distribute step both ingest paths
// share. Every raw message either becomes a PatternEvent handed to all
// sinks, or is counted and logged as a rejection; nothing is dropped
// silently.
type Intake struct {
	norm       *normalize.Normalizer
	sinks      []drepo.EventSink
	metrics    drepo.Metrics
	rejections *applogger.RejectionCollector
}

func NewIntake(norm *normalize.Normalizer, metrics drepo.Metrics, rejections *applogger.RejectionCollector, sinks ...drepo.EventSink) *Intake {
	return &Intake{
		norm:       norm,
		sinks:      sinks,
		metrics:    metrics,
		rejections: rejections,
	}
}

// Accept normalizes one raw message and fans it into the sinks. The
// returned error is the normalization failure, already counted and logged;
// callers only need it to decide retry/DLQ behavior.
func (in *Intake) Accept(raw *models.RawMessage) error {
	start := time.Now()
	ev, err := in.norm.Normalize(raw)
	if err != nil {
		var nerr *models.NormalizationError
		reason := "unknown"
		if errors.As(err, &nerr) {
			reason = nerr.Reason
		}
		in.metrics.RecordRejected(reason)
		if in.rejections != nil && raw != nil {
			in.rejections.Reject(reason, raw.Topic, raw.Data)
		}
		return err
	}

	for _, sink := range in.sinks {
		sink.Add(ev)
	}
	in.metrics.RecordEventIngested(ev.Topic)
	in.metrics.RecordLatency("normalize", time.Since(start).Seconds())
	return nil
}
