//go:build wireinject
// +build wireinject

package di

import (
	"RiskPulse/pkg/config"
	"RiskPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories and outbound adapters
		ProvideTradeHistory,
		ProvideMetricsStore,
		ProvideReportDispatcher,
		ProvideMarketData,
		ProvideLLM,
		ProvideCouncil,
		ProvideEconomicCalendar,

		// Domain services
		ProvideSymbolCache,
		ProvideSymbolValidator,
		ProvideIndexCache,
		ProvideMetricsEngine,
		ProvideAgentSet,
		ProvideExecutor,

		// Use cases and intake
		ProvideAnalysisUseCase,
		ProvideMarketMetricsUseCase,
		ProvideKafkaConsumer,
		ProvideJobQueue,

		// Transport
		ProvideRateLimiter,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
