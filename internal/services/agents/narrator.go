package agents

import (
	"context"
	"fmt"
	"strings"

	"RiskPulse/internal/domain/models"
	applogger "RiskPulse/pkg/logger"
)

// Persona styles understood by the narrator.
const (
	StyleProfessional    = "professional"
	StyleMeme            = "Meme Style"
	StyleSupportiveCoach = "Supportive Coach"
)

// Narrator condenses the debate and behavior findings into a summary and a
// message in the requested persona style.
type Narrator struct {
	l *applogger.Logger
}

func NewNarrator(l *applogger.Logger) *Narrator {
	if l == nil {
		l = applogger.Nop()
	}
	return &Narrator{l: l}
}

func (n *Narrator) Run(_ context.Context, ac *models.AnalysisContext) (*models.AnalysisContext, error) {
	ac.Summary = n.summarize(ac)
	ac.FinalMessage = StyleMessage(ac.PersonaStyle, ac.Summary)
	n.l.Debug("narrative built", applogger.String("asset", ac.Asset), applogger.String("style", ac.PersonaStyle))
	return ac, nil
}

func (n *Narrator) summarize(ac *models.AnalysisContext) string {
	var b strings.Builder
	asset := ac.Asset
	if asset == "" {
		asset = DefaultAsset
	}
	if ac.PriceChangePct != "" && ac.MoveDirection != "" {
		fmt.Fprintf(&b, "%s moved %s%% %s.", asset, ac.PriceChangePct, ac.MoveDirection)
	} else {
		fmt.Fprintf(&b, "%s update.", asset)
	}
	if ac.MarketEvent != "" {
		fmt.Fprintf(&b, " Event: %s.", strings.TrimSuffix(ac.MarketEvent, "."))
	}
	if len(ac.MarketOpinions) > 0 {
		fmt.Fprintf(&b, " %d council opinions, %d consensus points, %d disagreements.",
			len(ac.MarketOpinions), len(ac.ConsensusPoints), len(ac.DisagreementTopics))
	}
	if ac.JudgeSummary != "" {
		fmt.Fprintf(&b, " Judge: %s", ac.JudgeSummary)
		if !strings.HasSuffix(ac.JudgeSummary, ".") {
			b.WriteString(".")
		}
	}
	if len(ac.BehaviorFlags) > 0 {
		fmt.Fprintf(&b, " Watch for: %s.", strings.ReplaceAll(strings.Join(ac.BehaviorFlags, ", "), "_", " "))
	}
	if ac.EconomicSummary != "" {
		fmt.Fprintf(&b, " Calendar: %s.", strings.TrimSuffix(ac.EconomicSummary, "."))
	}
	return b.String()
}

// StyleMessage wraps a summary in the voice of a persona. Unknown styles
// use the professional voice.
func StyleMessage(style, summary string) string {
	switch style {
	case StyleMeme:
		return "🚀 " + summary + " 📈"
	case StyleSupportiveCoach:
		return "Take a breath. " + summary + " Stick to your plan."
	default:
		return "Market update: " + summary
	}
}
