package models

// Confidence is the debate agents' self-reported certainty.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

type AgentArgument struct {
	AgentName  string     `json:"agent_name"`
	Confidence Confidence `json:"confidence"`
	Thesis     string     `json:"thesis"`
}

type ConsensusPoint struct {
	Statement string `json:"statement"`
}

type DisagreementPoint struct {
	Topic string `json:"topic"`
}

type MarketContext struct {
	Price         float64 `json:"price"`
	MovePct       float64 `json:"move_pct"`
	MoveDirection string  `json:"move_direction"`
	Volume        float64 `json:"volume"`
}

// DebateResult is the multi-perspective council output. Its shape is owned by the council.
type DebateResult struct {
	AgentArguments     []AgentArgument     `json:"agent_arguments"`
	ConsensusPoints    []ConsensusPoint    `json:"consensus_points"`
	DisagreementPoints []DisagreementPoint `json:"disagreement_points"`
	JudgeSummary       string              `json:"judge_summary"`
	MarketContext      MarketContext       `json:"market_context"`
}
