package repository

import (
	"context"

	"RiskPulse/internal/domain/models"
)

// MarketData is the external quote/metadata provider.
// History windows use the provider's range notation ("5d", "1mo", "30d").
type MarketData interface {
	Info(ctx context.Context, symbol string) (models.SymbolInfo, error)
	History(ctx context.Context, symbol, window string) (models.PriceHistory, error)
}

// TradeHistory reads a user's past trades.
type TradeHistory interface {
	TradesFor(ctx context.Context, userID, symbol string, limit int) ([]models.Trade, error)
}

// MetricsStore keeps computed metrics snapshots.
type MetricsStore interface {
	Save(ctx context.Context, s models.MetricsSnapshot) error
	History(ctx context.Context, symbol string, limit int) ([]models.MetricsSnapshot, error)
}

// ReportPublisher ships finished reports downstream.
type ReportPublisher interface {
	Publish(ctx context.Context, r *models.AnalysisReport) error
	Close() error
}

// Metrics records operational counters.
type Metrics interface {
	RecordStep(step string, ok bool, seconds float64)
	RecordFallback(chain, stage string, ok bool)
	RecordCache(name string, hit bool)
	RecordProviderCall(op, result string, seconds float64)
	RecordValidation(code string)
	RecordMetrics(symbol string, vix float64, riskIndex int)
	RecordError(kind string)
}
