package models

// Trade is one entry of a user's trade history.
type Trade struct {
	Timestamp string  `json:"timestamp" validate:"required"`
	Symbol    string  `json:"symbol" validate:"required"`
	Action    string  `json:"action" validate:"required"`
	Price     float64 `json:"price" validate:"gte=0"`
	PnL       float64 `json:"pnl"`
	Status    string  `json:"status"`
}

// IsLoss reports a closed trade with negative pnl.
func (t Trade) IsLoss() bool { return t.PnL < 0 }

// TradeSummary aggregates a user's trades for one asset.
type TradeSummary struct {
	Trades      []Trade `json:"trades"`
	TotalTrades int     `json:"total_trades"`
	TotalPnL    float64 `json:"total_pnl"`
	WinRate     float64 `json:"win_rate"`
	LastTrade   *Trade  `json:"last_trade,omitempty"`
}
