package analytics

import (
	"context"
	"time"

	"RiskPulse/internal/domain/errs"
	"RiskPulse/internal/domain/models"
	domsvc "RiskPulse/internal/domain/service"
)

// HTTPCouncil asks the remote debate council for a multi-perspective view of a symbol.
type HTTPCouncil struct{ base *HTTPServiceBase }

func NewHTTPCouncil(baseURL string, timeout time.Duration) *HTTPCouncil {
	return &HTTPCouncil{base: NewHTTPServiceBase(baseURL, timeout, nil)}
}

type debateRequest struct {
	Symbol          string `json:"symbol"`
	EconomicContext string `json:"economic_context,omitempty"`
}

func (c *HTTPCouncil) Debate(ctx context.Context, symbol, economicContext string) (*models.DebateResult, error) {
	if !c.base.Configured() {
		return nil, errs.E(errs.KindUnavailable, "council", "council url not configured", nil)
	}
	var dr models.DebateResult
	if err := c.base.PostJSON(ctx, "/debate", debateRequest{Symbol: symbol, EconomicContext: economicContext}, &dr); err != nil {
		return nil, errs.E(errs.KindExternalService, "council", "", err)
	}
	return &dr, nil
}

var _ domsvc.Council = (*HTTPCouncil)(nil)
