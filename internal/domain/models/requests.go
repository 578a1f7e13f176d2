package models

// Requests for the HTTP and Kafka entry points.

type AnalyzeAssetRequest struct {
	Asset  string `query:"asset" json:"asset" validate:"required"`
	UserID string `query:"user_id" json:"user_id" default:"default_user" validate:"max=64"`
}

type RunAgentsRequest struct {
	MarketEvent  string  `json:"market_event" validate:"required"`
	UserTrades   []Trade `json:"user_trades" validate:"dive"`
	PersonaStyle string  `json:"persona_style" default:"professional"`
	Asset        string  `json:"asset"`
}

type ValidateSymbolRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
}

type MarketMetricsRequest struct {
	Symbol string `query:"symbol" json:"symbol" default:"SPY" validate:"max=15"`
}

type MetricsHistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,max=15"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}
