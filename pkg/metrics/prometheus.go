package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	eventsIngested *prometheus.CounterVec
	eventsRejected *prometheus.CounterVec
	batchesSent    *prometheus.CounterVec
	batchSize      *prometheus.HistogramVec
	connsDropped   *prometheus.CounterVec
	reconnects     *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	rooms          prometheus.Gauge
	connections    prometheus.Gauge
}

// New creates a Prometheus metrics recorder registered on the default
// registerer. Create at most one per process.
func New() *Recorder {
	return &Recorder{
		eventsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternflow_events_ingested_total",
				Help: "Total normalized events accepted into the pipeline",
			},
			[]string{"topic"},
		),
		eventsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternflow_events_rejected_total",
				Help: "Raw payloads rejected by the normalizer, by reason",
			},
			[]string{"reason"},
		),
		batchesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternflow_batches_delivered_total",
				Help: "Batches delivered to room members",
			},
			[]string{"topic"},
		),
		batchSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "patternflow_batch_size_events",
				Help:    "Events per delivered batch",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
			},
			[]string{"topic"},
		),
		connsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternflow_connections_dropped_total",
				Help: "Connections purged from the registry, by reason",
			},
			[]string{"reason"},
		),
		reconnects: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternflow_broker_reconnects_total",
				Help: "Broker reconnect attempts, by outcome",
			},
			[]string{"outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "patternflow_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		rooms: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "patternflow_rooms",
			Help: "Rooms with at least one member",
		}),
		connections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "patternflow_connections",
			Help: "Connections joined to at least one room",
		}),
	}
}

func (r *Recorder) RecordEventIngested(topic string) {
	r.eventsIngested.WithLabelValues(topic).Inc()
}

func (r *Recorder) RecordRejected(reason string) {
	r.eventsRejected.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordBatchDelivered(topic string, size int) {
	r.batchesSent.WithLabelValues(topic).Inc()
	r.batchSize.WithLabelValues(topic).Observe(float64(size))
}

func (r *Recorder) RecordConnectionDropped(reason string) {
	r.connsDropped.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordReconnect(outcome string) {
	r.reconnects.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) SetRooms(n int) { r.rooms.Set(float64(n)) }

func (r *Recorder) SetConnections(n int) { r.connections.Set(float64(n)) }
