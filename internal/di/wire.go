//go:build wireinject
// +build wireinject

package di

import (
	"GridCast/pkg/config"
	"GridCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Storage and messaging
		ProvideRunStore,
		ProvideRunPublisher,
		ProvideCache,

		// Generation pipeline
		ProvideSources,
		ProvideBuilder,
		ProvideRegistry,
		ProvideEngine,
		ProvideValidator,
		ProvidePipeline,

		// Read side
		ProvideReader,
		ProvideForecastsHandler,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}
