package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"PatternFlow/internal/broadcast"
	"PatternFlow/internal/store"
	"PatternFlow/internal/usecase"
	"PatternFlow/internal/ws"
	"PatternFlow/pkg/cache"
	"PatternFlow/pkg/config"
	xhttp "PatternFlow/pkg/http"
	pkgkafka "PatternFlow/pkg/kafka"
	applogger "PatternFlow/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	collector  *usecase.EventCollector
	consumer   *pkgkafka.Consumer
	handlers   []pkgkafka.MessageHandler
	caster     *broadcast.Broadcaster
	hub        *ws.Hub
	workingSet *store.WorkingSet
	httpServer *xhttp.Server
	cacheSvc   cache.Service
	rejections *applogger.RejectionCollector
}

// New creates a new App instance with all dependencies. Exactly one of
// collector (redis broker) or consumer (kafka broker) is non-nil.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	collector *usecase.EventCollector,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	caster *broadcast.Broadcaster,
	hub *ws.Hub,
	workingSet *store.WorkingSet,
	httpServer *xhttp.Server,
	cacheSvc cache.Service,
	rejections *applogger.RejectionCollector,
) *App {
	return &App{
		cfg:        cfg,
		logger:     logger.With("app"),
		collector:  collector,
		consumer:   consumer,
		handlers:   handlers,
		caster:     caster,
		hub:        hub,
		workingSet: workingSet,
		httpServer: httpServer,
		cacheSvc:   cacheSvc,
		rejections: rejections,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.caster.Start(ctx)

	if a.collector != nil {
		a.collector.Start(ctx)
		a.logger.Info("event collector started",
			applogger.Strings("topics", a.cfg.Broker.Topics))
	}

	if a.consumer != nil {
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
		}
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("kafka consumer started",
			applogger.Strings("topics", a.cfg.Broker.Topics))
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops ingest first so no new events enter the pipeline, flushes
// what is buffered, then tears down connections and the HTTP surface.
func (a *App) shutdown(ctx context.Context) error {
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.logger.Warn("collector stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Final flush happens inside Stop so buffered events still go out.
	a.caster.Stop()

	a.hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	a.workingSet.Close()

	if a.cacheSvc != nil {
		if err := a.cacheSvc.Close(); err != nil {
			a.logger.Warn("cache close error", applogger.Error(err))
		}
	}

	if a.rejections != nil {
		a.rejections.Close()
	}

	a.logger.Info("shutdown complete")
	return nil
}
