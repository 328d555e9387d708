package di

import (
	"fmt"

	"PatternFlow/internal/broadcast"
	"PatternFlow/internal/domain/repository"
	"PatternFlow/internal/handler/api"
	"PatternFlow/internal/ingest"
	"PatternFlow/internal/normalize"
	"PatternFlow/internal/query"
	"PatternFlow/internal/store"
	"PatternFlow/internal/usecase"
	"PatternFlow/internal/ws"
	"PatternFlow/pkg/cache"
	"PatternFlow/pkg/config"
	xhttp "PatternFlow/pkg/http"
	pkgkafka "PatternFlow/pkg/kafka"
	"PatternFlow/pkg/logger"
	"PatternFlow/pkg/metrics"
	"PatternFlow/pkg/server"
)

// ProvideLogger creates the root application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: format,
		Output: "stdout",
	})
}

// ProvideRejectionCollector creates the rejected-payload aggregator.
func ProvideRejectionCollector(l *logger.Logger) *logger.RejectionCollector {
	return logger.NewRejectionCollector(l, logger.RejectionConfig{})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideWorkingSet creates the queryable event store.
func ProvideWorkingSet(cfg *config.Config) *store.WorkingSet {
	return store.NewWorkingSet(
		store.WithRetention(cfg.WorkingSet.Retention),
		store.WithMaxSize(cfg.WorkingSet.MaxSize),
		store.WithSweepInterval(cfg.WorkingSet.SweepInterval),
	)
}

// ProvideBuffer creates the per-window broadcast buffer.
func ProvideBuffer() *broadcast.Buffer {
	return broadcast.NewBuffer()
}

// ProvideRegistry creates the topic room registry.
func ProvideRegistry(cfg *config.Config) *broadcast.Registry {
	return broadcast.NewRegistry(cfg.Rooms.Max)
}

// ProvideBroadcaster creates the batch fan-out loop.
func ProvideBroadcaster(
	buf *broadcast.Buffer,
	reg *broadcast.Registry,
	m repository.Metrics,
	l *logger.Logger,
	cfg *config.Config,
) *broadcast.Broadcaster {
	return broadcast.NewBroadcaster(buf, reg, m, l,
		broadcast.WithFlushInterval(cfg.Stream.FlushInterval),
	)
}

// ProvideHub creates the WebSocket hub.
func ProvideHub(reg *broadcast.Registry, m repository.Metrics, l *logger.Logger, cfg *config.Config) *ws.Hub {
	return ws.NewHub(reg, m, l,
		ws.WithQueueSize(cfg.Rooms.QueueSize),
		ws.WithMaxConnections(cfg.Rooms.MaxConnections),
	)
}

// ProvideCache creates the scan-result cache per config. Returns nil when
// caching is off.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	switch cfg.Query.Cache {
	case "off":
		return nil, nil
	case "memory":
		return cache.NewMemoryCache(), nil
	case "redis":
		return cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Redis.Addr),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
		)
	case "layered":
		rc, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Redis.Addr),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
		)
		if err != nil {
			return nil, err
		}
		return cache.NewLayeredCache(rc), nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Query.Cache)
	}
}

// ProvideEngine creates the filter/query engine over the working set.
func ProvideEngine(
	set *store.WorkingSet,
	m repository.Metrics,
	l *logger.Logger,
	cacheSvc cache.Service,
	cfg *config.Config,
) *query.Engine {
	opts := []query.EngineOption{
		query.WithMaxPageSize(cfg.Query.MaxPageSize),
	}
	if cacheSvc != nil {
		opts = append(opts, query.WithCache(cacheSvc, cfg.Query.CacheTTL))
	}
	return query.NewEngine(set, m, l, opts...)
}

// ProvideIntake creates the normalize-and-fan-out stage. Normalized events go
// to the working set and the broadcast buffer.
func ProvideIntake(
	m repository.Metrics,
	rejections *logger.RejectionCollector,
	set *store.WorkingSet,
	buf *broadcast.Buffer,
) *usecase.Intake {
	return usecase.NewIntake(normalize.New(), m, rejections, set, buf)
}

// ProvideEventCollector creates the redis-broker ingest path. Returns nil for
// the kafka broker.
func ProvideEventCollector(
	cfg *config.Config,
	intake *usecase.Intake,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.EventCollector {
	if cfg.Broker.Type != "redis" {
		return nil
	}
	stream := ingest.NewRedisStream(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Broker.Topics)
	sup := ingest.NewSupervisor(stream, m, l,
		ingest.WithBackoff(cfg.Stream.BackoffInitial, cfg.Stream.BackoffCap),
	)
	return usecase.NewEventCollector(sup, intake)
}

// ProvideKafkaConsumer creates the kafka-broker ingest path. Returns nil for
// the redis broker.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if cfg.Broker.Type != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NoopHook{})
	return consumer, nil
}

// ProvideKafkaHandlers creates one events handler per configured topic.
func ProvideKafkaHandlers(cfg *config.Config, intake *usecase.Intake) []pkgkafka.MessageHandler {
	if cfg.Broker.Type != "kafka" {
		return nil
	}
	handlers := make([]pkgkafka.MessageHandler, 0, len(cfg.Broker.Topics))
	for _, topic := range cfg.Broker.Topics {
		handlers = append(handlers, usecase.NewKafkaEventsHandler(topic, intake))
	}
	return handlers
}

// pipelineHealth aggregates live state for the health endpoint.
type pipelineHealth struct {
	collector *usecase.EventCollector
	consumer  *pkgkafka.Consumer
	reg       *broadcast.Registry
	set       *store.WorkingSet
}

func (h *pipelineHealth) BrokerConnected() bool {
	if h.collector != nil {
		return h.collector.Connected()
	}
	if h.consumer != nil {
		return h.consumer.Running()
	}
	return false
}

func (h *pipelineHealth) Rooms() int          { return h.reg.Rooms() }
func (h *pipelineHealth) Connections() int    { return h.reg.Connections() }
func (h *pipelineHealth) ResidentEvents() int { return h.set.Len() }

// ProvideHealth exposes pipeline state to the API layer.
func ProvideHealth(
	collector *usecase.EventCollector,
	consumer *pkgkafka.Consumer,
	reg *broadcast.Registry,
	set *store.WorkingSet,
) api.HealthReporter {
	return &pipelineHealth{collector: collector, consumer: consumer, reg: reg, set: set}
}

// ProvideHTTPServer creates the Echo server with all routes registered.
func ProvideHTTPServer(
	cfg *config.Config,
	l *logger.Logger,
	engine *query.Engine,
	hub *ws.Hub,
	health api.HealthReporter,
) *xhttp.Server {
	handler := api.NewScanEchoHandler(l, engine, hub, health)
	return xhttp.NewServer(handler, l,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	collector *usecase.EventCollector,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	caster *broadcast.Broadcaster,
	hub *ws.Hub,
	set *store.WorkingSet,
	httpServer *xhttp.Server,
	cacheSvc cache.Service,
	rejections *logger.RejectionCollector,
) *server.App {
	return server.New(cfg, l, collector, consumer, handlers, caster, hub, set, httpServer, cacheSvc, rejections)
}
