package usecase

import (
	"context"
	"fmt"

	"RiskPulse/internal/domain/errs"
	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	domsvc "RiskPulse/internal/domain/service"
	applogger "RiskPulse/pkg/logger"
	xutil "RiskPulse/pkg/util"
)

const maxHistoryLimit = 1000

// MarketMetricsUseCase serves standalone metric lookups and the stored
// snapshot history.
type MarketMetricsUseCase struct {
	engine    domsvc.MetricsEngine
	validator domsvc.SymbolValidator
	store     domrepo.MetricsStore
	l         *applogger.Logger
}

func NewMarketMetricsUseCase(engine domsvc.MetricsEngine, validator domsvc.SymbolValidator, store domrepo.MetricsStore, l *applogger.Logger) *MarketMetricsUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &MarketMetricsUseCase{engine: engine, validator: validator, store: store, l: l}
}

// Current computes metrics for symbol without any debate input, so the risk
// index uses the neutral divergence.
func (uc *MarketMetricsUseCase) Current(ctx context.Context, symbol string) (models.MetricsSnapshot, error) {
	symbol = xutil.NormalizeSymbol(symbol)
	if symbol == "" {
		return models.MetricsSnapshot{}, errs.E(errs.KindValidation, "market_metrics", "symbol required", nil)
	}
	snap := uc.engine.Snapshot(uc.engine.AllMetrics(ctx, symbol, nil))
	if uc.store != nil {
		if err := uc.store.Save(ctx, snap); err != nil {
			uc.l.Warn("metrics snapshot not saved", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}
	return snap, nil
}

// Validate wraps the symbol validator for the lookup endpoint.
func (uc *MarketMetricsUseCase) Validate(ctx context.Context, symbol string) models.ValidationResult {
	return uc.validator.Validate(ctx, symbol)
}

type MetricsHistoryResult struct {
	Symbol    string                   `json:"symbol"`
	Count     int                      `json:"count"`
	Snapshots []models.MetricsSnapshot `json:"snapshots"`
}

func (uc *MarketMetricsUseCase) History(ctx context.Context, symbol string, limit int) (*MetricsHistoryResult, error) {
	symbol = xutil.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, errs.E(errs.KindValidation, "metrics_history", "symbol required", nil)
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if uc.store == nil {
		return nil, errs.E(errs.KindUnavailable, "metrics_history", "metrics store not configured", nil)
	}

	snaps, err := uc.store.History(ctx, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("metrics history: %w", err)
	}
	if snaps == nil {
		snaps = []models.MetricsSnapshot{}
	}
	return &MetricsHistoryResult{Symbol: symbol, Count: len(snaps), Snapshots: snaps}, nil
}
