package models

import (
	"encoding/json"
	"sort"
	"strings"
)

// ErrorKeySuffix is appended to a step name to form its error key.
const ErrorKeySuffix = "_error"

// ErrorKey returns the key under which a failed step is reported.
func ErrorKey(step string) string { return step + ErrorKeySuffix }

// PersonaPost holds the styled social posts.
type PersonaPost struct {
	X        string `json:"x"`
	LinkedIn string `json:"linkedin"`
}

// AnalysisContext is the record threaded through the pipeline. Request inputs
// are set by the caller; each step fills in its own section. Keys the core
// does not know about live in Extras.
type AnalysisContext struct {
	// request inputs
	Asset            string         `json:"asset"`
	UserID           string         `json:"user_id,omitempty"`
	MarketEvent      string         `json:"market_event"`
	UserTrades       []Trade        `json:"user_trades"`
	PersonaStyle     string         `json:"persona_style"`
	TradeSummary     *TradeSummary  `json:"trade_summary,omitempty"`
	EconomicCalendar map[string]any `json:"economic_calendar,omitempty"`
	EconomicSummary  string         `json:"economic_summary,omitempty"`
	AutoGenerated    bool           `json:"auto_generated,omitempty"`

	// behavior monitor
	BehaviorFlags []string `json:"behavior_flags,omitempty"`
	Insights      []string `json:"insights,omitempty"`

	// market watcher
	MarketOpinions     []string      `json:"market_opinions,omitempty"`
	Debate             *DebateResult `json:"council_debate,omitempty"`
	ConsensusPoints    []string      `json:"consensus_points,omitempty"`
	DisagreementTopics []string      `json:"disagreement_topics,omitempty"`
	JudgeSummary       string        `json:"judge_summary,omitempty"`
	PriceChangePct     string        `json:"price_change_pct,omitempty"`
	MoveDirection      string        `json:"move_direction,omitempty"`
	CurrentPrice       *float64      `json:"current_price,omitempty"`
	Volume             *float64      `json:"volume,omitempty"`

	// narrator, persona, moderator
	Summary         string       `json:"summary,omitempty"`
	FinalMessage    string       `json:"final_message,omitempty"`
	ModeratedOutput string       `json:"moderated_output,omitempty"`
	PersonaPost     *PersonaPost `json:"persona_post,omitempty"`

	Extras map[string]any `json:"extras,omitempty"`

	stepErrors map[string]string
}

// RecordStepError stores err under <step>_error. A later failure of the same step overwrites it.
func (c *AnalysisContext) RecordStepError(step string, err error) {
	if c.stepErrors == nil {
		c.stepErrors = make(map[string]string)
	}
	c.stepErrors[ErrorKey(step)] = err.Error()
}

// StepError returns the recorded failure for step.
func (c *AnalysisContext) StepError(step string) (string, bool) {
	msg, ok := c.stepErrors[ErrorKey(step)]
	return msg, ok
}

// Errors returns a copy of the step-error table keyed by <step>_error.
func (c *AnalysisContext) Errors() map[string]string {
	out := make(map[string]string, len(c.stepErrors))
	for k, v := range c.stepErrors {
		out[k] = v
	}
	return out
}

// CarryStepErrors copies failures recorded on prev that c does not already hold.
func (c *AnalysisContext) CarryStepErrors(prev *AnalysisContext) {
	if prev == nil || len(prev.stepErrors) == 0 {
		return
	}
	if c.stepErrors == nil {
		c.stepErrors = make(map[string]string, len(prev.stepErrors))
	}
	for k, v := range prev.stepErrors {
		if _, ok := c.stepErrors[k]; !ok {
			c.stepErrors[k] = v
		}
	}
}

// SetExtra stores an opaque value.
func (c *AnalysisContext) SetExtra(key string, v any) {
	if c.Extras == nil {
		c.Extras = make(map[string]any)
	}
	c.Extras[key] = v
}

// AgentData extracts the debate output the metrics engine consumes.
// It returns nil when the debate produced nothing, so the risk index uses its neutral default.
func (c *AnalysisContext) AgentData() *AgentData {
	if len(c.ConsensusPoints) == 0 && len(c.DisagreementTopics) == 0 && len(c.MarketOpinions) == 0 {
		return nil
	}
	return &AgentData{
		ConsensusPoints:    append([]string(nil), c.ConsensusPoints...),
		DisagreementTopics: append([]string(nil), c.DisagreementTopics...),
		CouncilOpinions:    append([]string(nil), c.MarketOpinions...),
	}
}

// Clone returns a copy that a step may mutate freely without affecting c.
// Opaque values (economic calendar, extras, debate) are copied one level deep.
func (c *AnalysisContext) Clone() *AnalysisContext {
	if c == nil {
		return nil
	}
	out := *c
	out.UserTrades = append([]Trade(nil), c.UserTrades...)
	out.BehaviorFlags = cloneStrings(c.BehaviorFlags)
	out.Insights = cloneStrings(c.Insights)
	out.MarketOpinions = cloneStrings(c.MarketOpinions)
	out.ConsensusPoints = cloneStrings(c.ConsensusPoints)
	out.DisagreementTopics = cloneStrings(c.DisagreementTopics)
	out.EconomicCalendar = cloneMap(c.EconomicCalendar)
	out.Extras = cloneMap(c.Extras)
	if c.TradeSummary != nil {
		ts := *c.TradeSummary
		out.TradeSummary = &ts
	}
	if c.Debate != nil {
		d := *c.Debate
		out.Debate = &d
	}
	if c.PersonaPost != nil {
		p := *c.PersonaPost
		out.PersonaPost = &p
	}
	if c.CurrentPrice != nil {
		v := *c.CurrentPrice
		out.CurrentPrice = &v
	}
	if c.Volume != nil {
		v := *c.Volume
		out.Volume = &v
	}
	out.stepErrors = nil
	for k, v := range c.stepErrors {
		if out.stepErrors == nil {
			out.stepErrors = make(map[string]string, len(c.stepErrors))
		}
		out.stepErrors[k] = v
	}
	return &out
}

// Flatten renders the context as one flat object: known fields, extras and
// <step>_error keys side by side.
func (c *AnalysisContext) Flatten() (map[string]any, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	delete(out, "extras")
	for k, v := range c.Extras {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	for k, v := range c.stepErrors {
		out[k] = v
	}
	return out, nil
}

// ErrorKeys lists recorded error keys in sorted order.
func (c *AnalysisContext) ErrorKeys() []string {
	keys := make([]string, 0, len(c.stepErrors))
	for k := range c.stepErrors {
		if strings.HasSuffix(k, ErrorKeySuffix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
