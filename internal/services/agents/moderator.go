package agents

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"RiskPulse/internal/domain/models"
	applogger "RiskPulse/pkg/logger"
	xutil "RiskPulse/pkg/util"
)

// Disclaimer is appended to every moderated message.
const Disclaimer = "This is not financial advice."

var errNothingToModerate = errors.New("no narrative to moderate")

var bannedPhrases = regexp.MustCompile(`(?i)\b(guaranteed|can't lose|cannot lose|risk-free|100% sure)`)

// Moderator removes promissory language from the final message and appends the disclaimer.
type Moderator struct {
	maxLen int
	l      *applogger.Logger
}

func NewModerator(maxLen int, l *applogger.Logger) *Moderator {
	if l == nil {
		l = applogger.Nop()
	}
	return &Moderator{maxLen: maxLen, l: l}
}

func (m *Moderator) Run(_ context.Context, ac *models.AnalysisContext) (*models.AnalysisContext, error) {
	text := ac.FinalMessage
	if text == "" {
		text = ac.Summary
	}
	if strings.TrimSpace(text) == "" {
		return ac, errNothingToModerate
	}

	clean := bannedPhrases.ReplaceAllString(text, "[removed]")
	if clean != text {
		m.l.Info("moderator removed banned phrases", applogger.String("asset", ac.Asset))
	}
	if m.maxLen > 0 {
		clean = xutil.Truncate(clean, m.maxLen)
	}
	ac.ModeratedOutput = strings.TrimSpace(clean) + " " + Disclaimer
	return ac, nil
}
