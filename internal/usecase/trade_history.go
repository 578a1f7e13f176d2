package usecase

import (
	"context"
	"fmt"
	"math"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	"RiskPulse/internal/services/agents"
)

// TradeHistoryUseCase loads a user's trades for one asset and summarizes them.
type TradeHistoryUseCase struct {
	repo  domrepo.TradeHistory
	limit int
}

func NewTradeHistoryUseCase(repo domrepo.TradeHistory, limit int) *TradeHistoryUseCase {
	if limit <= 0 {
		limit = 50
	}
	return &TradeHistoryUseCase{repo: repo, limit: limit}
}

func (uc *TradeHistoryUseCase) Summary(ctx context.Context, userID, symbol string) (*models.TradeSummary, error) {
	trades, err := uc.repo.TradesFor(ctx, userID, symbol, uc.limit)
	if err != nil {
		return nil, fmt.Errorf("trades for %s: %w", symbol, err)
	}
	s := SummarizeTrades(trades)
	return &s, nil
}

// SummarizeTrades computes totals over trades ordered oldest first. Win rate
// is a percentage rounded to one decimal.
func SummarizeTrades(trades []models.Trade) models.TradeSummary {
	s := models.TradeSummary{Trades: trades, TotalTrades: len(trades)}
	if s.Trades == nil {
		s.Trades = []models.Trade{}
	}
	if len(trades) == 0 {
		return s
	}
	wins := 0
	for _, t := range trades {
		s.TotalPnL += t.PnL
		if t.PnL > 0 {
			wins++
		}
	}
	s.TotalPnL = math.Round(s.TotalPnL*100) / 100
	s.WinRate = math.Round(float64(wins)/float64(len(trades))*1000) / 10
	last := trades[len(trades)-1]
	s.LastTrade = &last
	return s
}

// SelectPersona picks a narration style from trading performance.
func SelectPersona(s *models.TradeSummary) string {
	if s == nil || s.TotalTrades == 0 {
		return agents.StyleProfessional
	}
	switch {
	case s.WinRate >= 60 && s.TotalPnL > 0:
		return agents.StyleMeme
	case s.TotalPnL < 0 && s.WinRate < 40:
		return agents.StyleSupportiveCoach
	default:
		return agents.StyleProfessional
	}
}
