package models

import "time"

// StepRecord is the per-step outcome of one pipeline run.
type StepRecord struct {
	Name       string        `json:"name"`
	Capability string        `json:"capability"`
	OK         bool          `json:"ok"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
}

type MarketMetricsView struct {
	Vix             float64      `json:"vix"`
	VixSource       IndexSource  `json:"vix_source"`
	MarketRegime    MarketRegime `json:"market_regime"`
	RiskIndex       int          `json:"risk_index"`
	AssetVolatility float64      `json:"asset_volatility"`
	RiskLevel       string       `json:"risk_level"`
	RegimeColor     string       `json:"regime_color"`
}

type TradeHistoryView struct {
	TotalTrades int     `json:"total_trades"`
	TotalPnL    float64 `json:"total_pnl"`
	WinRate     float64 `json:"win_rate"`
	LastTrade   *Trade  `json:"last_trade"`
}

type EconomicCalendarView struct {
	Earnings       any    `json:"earnings"`
	RecentNews     []any  `json:"recent_news"`
	EconomicEvents []any  `json:"economic_events"`
	Summary        string `json:"summary"`
}

type BehavioralAnalysis struct {
	Flags    []string `json:"flags"`
	Insights []string `json:"insights"`
}

type MarketContextView struct {
	Price         *float64 `json:"price"`
	MoveDirection string   `json:"move_direction"`
	ChangePct     string   `json:"change_pct"`
	Volume        *float64 `json:"volume"`
}

type MarketAnalysis struct {
	CouncilOpinions []string          `json:"council_opinions"`
	Consensus       []string          `json:"consensus"`
	Disagreements   []string          `json:"disagreements"`
	JudgeSummary    string            `json:"judge_summary"`
	MarketContext   MarketContextView `json:"market_context"`
}

type NarrativeView struct {
	Summary         string `json:"summary"`
	StyledMessage   string `json:"styled_message"`
	ModeratedOutput string `json:"moderated_output"`
}

// AnalysisReport is the full response for one analyzed asset.
type AnalysisReport struct {
	Asset            string               `json:"asset"`
	UserID           string               `json:"user_id"`
	AnalysisType     string               `json:"analysis_type"`
	PersonaSelected  string               `json:"persona_selected"`
	MarketMetrics    MarketMetricsView    `json:"market_metrics"`
	TradeHistory     TradeHistoryView     `json:"trade_history"`
	EconomicCalendar EconomicCalendarView `json:"economic_calendar"`
	Behavioral       BehavioralAnalysis   `json:"behavioral_analysis"`
	MarketAnalysis   MarketAnalysis       `json:"market_analysis"`
	Narrative        NarrativeView        `json:"narrative"`
	PersonaPost      PersonaPost          `json:"persona_post"`
	Steps            []StepRecord         `json:"steps"`
	Timestamp        time.Time            `json:"timestamp"`
	Errors           map[string]string    `json:"errors"`
}

// PipelineRun is the legacy custom-input result: the flat context plus bookkeeping.
type PipelineRun struct {
	Message   string         `json:"message"`
	Result    map[string]any `json:"result"`
	AgentsRun int            `json:"agents_run"`
	Steps     []StepRecord   `json:"steps"`
}
