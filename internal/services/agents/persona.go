package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"RiskPulse/internal/domain/errs"
	"RiskPulse/internal/domain/models"
	domsvc "RiskPulse/internal/domain/service"
	"RiskPulse/internal/services/analytics"
	applogger "RiskPulse/pkg/logger"
)

// Persona turns the council opinions into an X post and a LinkedIn post.
// LLM failures are replaced by fallback text and never fail the step.
type Persona struct {
	llm domsvc.LLM
	l   *applogger.Logger
}

func NewPersona(llm domsvc.LLM, l *applogger.Logger) *Persona {
	if l == nil {
		l = applogger.Nop()
	}
	return &Persona{llm: llm, l: l}
}

type postKind int

const (
	postX postKind = iota
	postLinkedIn
)

func (p *Persona) Run(ctx context.Context, ac *models.AnalysisContext) (*models.AnalysisContext, error) {
	if ac.PersonaStyle == "" {
		ac.PersonaStyle = StyleMeme
	}
	merged := strings.Join(ac.MarketOpinions, " ")
	asset, pct := ac.Asset, ac.PriceChangePct

	ac.PersonaPost = &models.PersonaPost{
		X:        p.compose(ctx, postX, asset, pct, fmt.Sprintf("Format this as a viral, emoji-heavy tweet about %s moving %s%%: %s", asset, pct, merged)),
		LinkedIn: p.compose(ctx, postLinkedIn, asset, pct, fmt.Sprintf("Format this as a professional LinkedIn post about %s moving %s%%: %s", asset, pct, merged)),
	}
	return ac, nil
}

func (p *Persona) compose(ctx context.Context, kind postKind, asset, pct, prompt string) string {
	if p.llm == nil {
		return noKeyFallback(kind, asset, pct)
	}
	out, err := p.llm.Complete(ctx, prompt)
	switch {
	case err == nil:
		return out
	case errors.Is(err, analytics.ErrNoAPIKey):
		return noKeyFallback(kind, asset, pct)
	case errs.Is(err, errs.KindRateLimit):
		p.l.Warn("persona post rate limited", applogger.String("asset", asset))
		if kind == postX {
			return fmt.Sprintf("🚀 %s just moved %s%%! Market signals detected. Analysis complete. #Trading", asset, pct)
		}
		return fmt.Sprintf("Professional Market Analysis: %s moved %s%%. Our multi-agent system has completed comprehensive analysis. Key insights available in the full report.", asset, pct)
	default:
		p.l.Error("persona post failed", applogger.String("asset", asset), applogger.Error(err))
		return fmt.Sprintf("[Error: %v]", err)
	}
}

func noKeyFallback(kind postKind, asset, pct string) string {
	if kind == postX {
		return fmt.Sprintf("🚀 %s just moved %s%%! Market analysis shows interesting signals. #Trading #Markets", asset, pct)
	}
	return fmt.Sprintf("Market Analysis Update: %s moved %s%%. Our 5-agent LLM council has completed analysis.", asset, pct)
}
