package agents

import (
	"context"
	"fmt"
	"math"
	"strings"

	"RiskPulse/internal/domain/models"
	domsvc "RiskPulse/internal/domain/service"
	applogger "RiskPulse/pkg/logger"
)

// DefaultAsset is analysed when the context names none.
const DefaultAsset = "AAPL"

// syntheticProxies maps synthetic index names to a listed proxy.
var syntheticProxies = map[string]string{
	"BOOM 500":      "SPY",
	"BOOM 1000":     "SPY",
	"CRASH 500":     "VIXY",
	"VOLATILITY 75": "VXX",
	"STEP INDEX":    "DIA",
}

// ProxySymbol resolves a synthetic index name to its listed proxy. Other
// inputs are returned unchanged.
func ProxySymbol(asset string) string {
	key := strings.Join(strings.Fields(strings.ToUpper(asset)), " ")
	if p, ok := syntheticProxies[key]; ok {
		return p
	}
	return asset
}

// MarketWatcher validates the asset and collects the council debate for it.
// Validation and council failures are written into the context as opinions;
// the step itself only fails when the context is unusable.
type MarketWatcher struct {
	validator domsvc.SymbolValidator
	council   domsvc.Council
	calendar  domsvc.EconomicCalendar
	l         *applogger.Logger
}

func NewMarketWatcher(v domsvc.SymbolValidator, c domsvc.Council, cal domsvc.EconomicCalendar, l *applogger.Logger) *MarketWatcher {
	if l == nil {
		l = applogger.Nop()
	}
	return &MarketWatcher{validator: v, council: c, calendar: cal, l: l}
}

func (m *MarketWatcher) Run(ctx context.Context, ac *models.AnalysisContext) (*models.AnalysisContext, error) {
	asset := strings.TrimSpace(ac.Asset)
	if asset == "" {
		asset = DefaultAsset
	}
	asset = ProxySymbol(asset)

	symbol, err := m.validator.ValidateOrError(ctx, asset)
	if err != nil {
		m.l.Warn("market watcher rejected asset", applogger.String("asset", asset), applogger.Error(err))
		ac.Asset = asset
		ac.MarketOpinions = []string{fmt.Sprintf("Invalid asset symbol '%s': %v", asset, err)}
		ac.PriceChangePct = "0.0"
		return ac, nil
	}
	ac.Asset = symbol

	if ac.EconomicSummary == "" && m.calendar != nil {
		if cal, err := m.calendar.Calendar(ctx, symbol); err != nil {
			m.l.Warn("economic calendar unavailable", applogger.String("symbol", symbol), applogger.Error(err))
		} else {
			ac.EconomicCalendar = cal.Data
			ac.EconomicSummary = cal.Summary
		}
	}

	dr, err := m.council.Debate(ctx, symbol, ac.EconomicSummary)
	if err != nil {
		m.l.Error("council analysis failed", applogger.String("symbol", symbol), applogger.Error(err))
		ac.MarketOpinions = []string{fmt.Sprintf("Error getting council analysis: %v", err)}
		ac.PriceChangePct = "0.0"
		return ac, nil
	}

	applyDebate(ac, dr)
	m.l.Info("council analysis complete",
		applogger.String("symbol", symbol),
		applogger.Int("opinions", len(ac.MarketOpinions)),
	)
	return ac, nil
}

func applyDebate(ac *models.AnalysisContext, dr *models.DebateResult) {
	opinions := make([]string, 0, len(dr.AgentArguments))
	for _, a := range dr.AgentArguments {
		opinions = append(opinions, fmt.Sprintf("%s (%s): %s", a.AgentName, a.Confidence, a.Thesis))
	}
	consensus := make([]string, 0, len(dr.ConsensusPoints))
	for _, c := range dr.ConsensusPoints {
		consensus = append(consensus, c.Statement)
	}
	topics := make([]string, 0, len(dr.DisagreementPoints))
	for _, d := range dr.DisagreementPoints {
		topics = append(topics, d.Topic)
	}

	mc := dr.MarketContext
	price, volume := mc.Price, mc.Volume
	ac.MarketOpinions = opinions
	ac.Debate = dr
	ac.ConsensusPoints = consensus
	ac.DisagreementTopics = topics
	ac.JudgeSummary = dr.JudgeSummary
	ac.PriceChangePct = fmt.Sprintf("%.2f", math.Abs(mc.MovePct))
	ac.MoveDirection = mc.MoveDirection
	ac.CurrentPrice = &price
	ac.Volume = &volume
}
