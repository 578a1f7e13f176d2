package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
)

// CHTradeHistory reads user trades from ClickHouse.
type CHTradeHistory struct {
	db *sql.DB
}

func NewCHTradeHistory(db *sql.DB) *CHTradeHistory {
	return &CHTradeHistory{db: db}
}

// TradesFor returns up to limit of the user's most recent trades in symbol,
// oldest first.
func (s *CHTradeHistory) TradesFor(ctx context.Context, userID, symbol string, limit int) ([]models.Trade, error) {
	const q = `SELECT ts, symbol, action, price, pnl, status
		FROM ` + TradesTable + `
		WHERE user_id = ? AND symbol = ?
		ORDER BY ts DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, userID, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var (
			t  models.Trade
			ts time.Time
		)
		if err := rows.Scan(&ts, &t.Symbol, &t.Action, &t.Price, &t.PnL, &t.Status); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Timestamp = ts.UTC().Format(time.RFC3339)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	slices.Reverse(trades)
	return trades, nil
}

// NoTradeHistory is used when no trade store is configured.
type NoTradeHistory struct{}

func (NoTradeHistory) TradesFor(context.Context, string, string, int) ([]models.Trade, error) {
	return []models.Trade{}, nil
}

var (
	_ domrepo.TradeHistory = (*CHTradeHistory)(nil)
	_ domrepo.TradeHistory = NoTradeHistory{}
)
