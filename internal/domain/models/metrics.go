package models

import "time"

// MarketRegime labels the volatility environment.
type MarketRegime string

const (
	RegimeUltraLow MarketRegime = "ULTRA LOW VOLATILITY"
	RegimeLow      MarketRegime = "LOW VOLATILITY"
	RegimeNormal   MarketRegime = "NORMAL VOLATILITY"
	RegimeHigh     MarketRegime = "HIGH VOLATILITY"
	RegimeExtreme  MarketRegime = "EXTREME VOLATILITY"
)

// IndexSource names the fallback stage that produced a volatility index.
type IndexSource string

const (
	SourceCache   IndexSource = "cache"
	SourceLive    IndexSource = "live"
	SourceProxy   IndexSource = "proxy"
	SourceDefault IndexSource = "default"
)

// AgentData is the slice of debate output used by the risk index.
type AgentData struct {
	ConsensusPoints    []string `json:"consensus_points"`
	DisagreementTopics []string `json:"disagreement_topics"`
	CouncilOpinions    []string `json:"council_opinions"`
}

// MetricsResult is the engine's composite output.
type MetricsResult struct {
	Symbol          string       `json:"symbol"`
	VolatilityIndex float64      `json:"vix"`
	IndexSource     IndexSource  `json:"vix_source"`
	MarketRegime    MarketRegime `json:"market_regime"`
	RiskIndex       int          `json:"risk_index"`
	AssetVolatility float64      `json:"asset_volatility"`
	ComputedAt      time.Time    `json:"timestamp"`
}

// MetricsSnapshot is a stored MetricsResult plus its display labels.
type MetricsSnapshot struct {
	MetricsResult
	RiskLevel   string `json:"risk_level"`
	RegimeColor string `json:"regime_color"`
}
