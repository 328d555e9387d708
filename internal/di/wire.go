//go:build wireinject
// +build wireinject

package di

import (
	"PatternFlow/pkg/config"
	"PatternFlow/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation in wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient services
		ProvideLogger,
		ProvideRejectionCollector,
		ProvideMetrics,

		// Pipeline state
		ProvideWorkingSet,
		ProvideBuffer,
		ProvideRegistry,

		// Fan-out
		ProvideBroadcaster,
		ProvideHub,

		// Query surface
		ProvideCache,
		ProvideEngine,

		// Ingest
		ProvideIntake,
		ProvideEventCollector,
		ProvideKafkaConsumer,
		ProvideKafkaHandlers,

		// HTTP surface
		ProvideHealth,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
