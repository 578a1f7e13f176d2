package service

import (
	"context"

	"RiskPulse/internal/domain/models"
)

// SymbolValidator authenticates tickers against market data.
type SymbolValidator interface {
	Validate(ctx context.Context, symbol string) models.ValidationResult
	// ValidateOrError returns the normalized symbol or a *errs.ValidationError.
	ValidateOrError(ctx context.Context, symbol string) (string, error)
}

// MetricsEngine derives volatility and risk metrics. It never fails.
type MetricsEngine interface {
	Compute(ctx context.Context, symbol string, agentData *models.AgentData) models.MetricsResult
	// AllMetrics is Compute rounded for display.
	AllMetrics(ctx context.Context, symbol string, agentData *models.AgentData) models.MetricsResult
	Snapshot(r models.MetricsResult) models.MetricsSnapshot
	RiskLevelDescription(riskIndex int) string
	RegimeColor(regime models.MarketRegime) string
}

// Council runs the multi-perspective debate for a symbol.
type Council interface {
	Debate(ctx context.Context, symbol, economicContext string) (*models.DebateResult, error)
}

// LLM completes a single prompt.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// EconomicCalendar fetches scheduled events and news for a symbol.
type EconomicCalendar interface {
	Calendar(ctx context.Context, symbol string) (models.EconomicCalendar, error)
}
