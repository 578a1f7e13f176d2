package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	domsvc "RiskPulse/internal/domain/service"
	"RiskPulse/internal/services/agents"
	applogger "RiskPulse/pkg/logger"
)

const (
	DefaultUserID     = "default_user"
	pipelineCompleted = "Multi-agent pipeline completed"
	recentNewsLimit   = 3
)

// AnalysisUseCase runs the full commentary flow for one asset: prefetch,
// pipeline, metrics and report assembly.
type AnalysisUseCase struct {
	validator domsvc.SymbolValidator
	trades    *TradeHistoryUseCase
	calendar  domsvc.EconomicCalendar
	engine    domsvc.MetricsEngine
	exec      *Executor
	steps     []Step

	reports         domrepo.ReportPublisher
	store           domrepo.MetricsStore
	timeout         time.Duration
	prefetchTimeout time.Duration
	now             func() time.Time
	l               *applogger.Logger
}

type AnalysisOption func(*AnalysisUseCase)

func WithReportPublisher(p domrepo.ReportPublisher) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.reports = p }
}

func WithMetricsStore(s domrepo.MetricsStore) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.store = s }
}

// WithTimeouts bounds the whole run and the trade/calendar prefetch.
func WithTimeouts(pipeline, prefetch time.Duration) AnalysisOption {
	return func(uc *AnalysisUseCase) {
		if pipeline > 0 {
			uc.timeout = pipeline
		}
		if prefetch > 0 {
			uc.prefetchTimeout = prefetch
		}
	}
}

func WithAnalysisClock(now func() time.Time) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.now = now }
}

func WithAnalysisLogger(l *applogger.Logger) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.l = l }
}

func NewAnalysisUseCase(
	validator domsvc.SymbolValidator,
	trades *TradeHistoryUseCase,
	calendar domsvc.EconomicCalendar,
	engine domsvc.MetricsEngine,
	exec *Executor,
	steps []Step,
	opts ...AnalysisOption,
) *AnalysisUseCase {
	uc := &AnalysisUseCase{
		validator:       validator,
		trades:          trades,
		calendar:        calendar,
		engine:          engine,
		exec:            exec,
		steps:           steps,
		timeout:         90 * time.Second,
		prefetchTimeout: 10 * time.Second,
		now:             time.Now,
		l:               applogger.Nop(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Steps exposes the configured pipeline, e.g. for the API index.
func (uc *AnalysisUseCase) Steps() []Step { return uc.steps }

type prefetched struct {
	summary  *models.TradeSummary
	calendar models.EconomicCalendar
	errors   map[string]string
}

// prefetch loads trade history and the economic calendar concurrently.
// Both are best effort; failures end up in errors keyed like step errors.
func (uc *AnalysisUseCase) prefetch(ctx context.Context, userID, symbol string) prefetched {
	ctx, cancel := context.WithTimeout(ctx, uc.prefetchTimeout)
	defer cancel()

	res := prefetched{errors: map[string]string{}}

	type item struct {
		name string
		val  interface{}
		err  error
	}
	ch := make(chan item, 2)
	var wg sync.WaitGroup

	if uc.trades != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := uc.trades.Summary(ctx, userID, symbol)
			ch <- item{"trade_history", v, err}
		}()
	}
	if uc.calendar != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := uc.calendar.Calendar(ctx, symbol)
			ch <- item{"economic_calendar", v, err}
		}()
	}

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			res.errors[models.ErrorKey(it.name)] = it.err.Error()
			uc.l.Warn("prefetch failed", applogger.String("source", it.name), applogger.String("symbol", symbol), applogger.Error(it.err))
			continue
		}
		switch it.name {
		case "trade_history":
			res.summary = it.val.(*models.TradeSummary)
		case "economic_calendar":
			res.calendar = it.val.(models.EconomicCalendar)
		}
	}
	if res.summary == nil {
		s := SummarizeTrades(nil)
		res.summary = &s
	}
	return res
}

// AnalyzeAsset validates the asset, gathers context, runs the pipeline and
// assembles the report. Only validation failures and cancellation are
// returned as errors; everything else degrades into report.Errors.
func (uc *AnalysisUseCase) AnalyzeAsset(ctx context.Context, req models.AnalyzeAssetRequest, observers ...StepObserver) (*models.AnalysisReport, error) {
	symbol, err := uc.validator.ValidateOrError(ctx, agents.ProxySymbol(strings.TrimSpace(req.Asset)))
	if err != nil {
		uc.l.Warn("asset rejected", applogger.String("asset", req.Asset), applogger.Error(err))
		return nil, err
	}
	userID := req.UserID
	if userID == "" {
		userID = DefaultUserID
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	uc.l.Info("analysis started", applogger.String("symbol", symbol), applogger.String("user_id", userID))
	pre := uc.prefetch(ctx, userID, symbol)
	persona := SelectPersona(pre.summary)

	ac := &models.AnalysisContext{
		Asset:            symbol,
		UserID:           userID,
		MarketEvent:      fmt.Sprintf("%s analysis requested with economic calendar integration", symbol),
		UserTrades:       pre.summary.Trades,
		PersonaStyle:     persona,
		TradeSummary:     pre.summary,
		EconomicCalendar: pre.calendar.Data,
		EconomicSummary:  pre.calendar.Summary,
		AutoGenerated:    true,
	}

	out, records, err := uc.exec.Run(ctx, uc.steps, ac, observers...)
	if err != nil {
		return nil, fmt.Errorf("analysis for %s: %w", symbol, err)
	}

	metrics := uc.engine.AllMetrics(ctx, symbol, out.AgentData())
	snap := uc.engine.Snapshot(metrics)

	report := uc.buildReport(out, persona, snap, pre, records)
	uc.l.Info("analysis complete",
		applogger.String("symbol", symbol),
		applogger.Float64("vix", snap.VolatilityIndex),
		applogger.String("regime", string(snap.MarketRegime)),
		applogger.Int("risk_index", snap.RiskIndex),
		applogger.Int("errors", len(report.Errors)),
	)

	uc.persist(ctx, snap, report)
	return report, nil
}

func (uc *AnalysisUseCase) persist(ctx context.Context, snap models.MetricsSnapshot, report *models.AnalysisReport) {
	if uc.store != nil {
		if err := uc.store.Save(ctx, snap); err != nil {
			uc.l.Warn("metrics snapshot not saved", applogger.String("symbol", snap.Symbol), applogger.Error(err))
		}
	}
	if uc.reports != nil {
		if err := uc.reports.Publish(ctx, report); err != nil {
			uc.l.Warn("report not published", applogger.String("symbol", report.Asset), applogger.Error(err))
		}
	}
}

func (uc *AnalysisUseCase) buildReport(out *models.AnalysisContext, persona string, snap models.MetricsSnapshot, pre prefetched, records []models.StepRecord) *models.AnalysisReport {
	errors := out.Errors()
	for k, v := range pre.errors {
		errors[k] = v
	}

	ts := pre.summary
	report := &models.AnalysisReport{
		Asset:           out.Asset,
		UserID:          out.UserID,
		AnalysisType:    "automated",
		PersonaSelected: persona,
		MarketMetrics: models.MarketMetricsView{
			Vix:             snap.VolatilityIndex,
			VixSource:       snap.IndexSource,
			MarketRegime:    snap.MarketRegime,
			RiskIndex:       snap.RiskIndex,
			AssetVolatility: snap.AssetVolatility,
			RiskLevel:       snap.RiskLevel,
			RegimeColor:     snap.RegimeColor,
		},
		TradeHistory: models.TradeHistoryView{
			TotalTrades: ts.TotalTrades,
			TotalPnL:    ts.TotalPnL,
			WinRate:     ts.WinRate,
			LastTrade:   ts.LastTrade,
		},
		EconomicCalendar: calendarView(out.EconomicCalendar, out.EconomicSummary),
		Behavioral: models.BehavioralAnalysis{
			Flags:    nonNil(out.BehaviorFlags),
			Insights: nonNil(out.Insights),
		},
		MarketAnalysis: models.MarketAnalysis{
			CouncilOpinions: nonNil(out.MarketOpinions),
			Consensus:       nonNil(out.ConsensusPoints),
			Disagreements:   nonNil(out.DisagreementTopics),
			JudgeSummary:    out.JudgeSummary,
			MarketContext: models.MarketContextView{
				Price:         out.CurrentPrice,
				MoveDirection: out.MoveDirection,
				ChangePct:     out.PriceChangePct,
				Volume:        out.Volume,
			},
		},
		Narrative: models.NarrativeView{
			Summary:         out.Summary,
			StyledMessage:   out.FinalMessage,
			ModeratedOutput: out.ModeratedOutput,
		},
		Steps:     records,
		Timestamp: uc.now().UTC(),
		Errors:    errors,
	}
	if out.PersonaPost != nil {
		report.PersonaPost = *out.PersonaPost
	}
	return report
}

func calendarView(data map[string]any, summary string) models.EconomicCalendarView {
	v := models.EconomicCalendarView{
		Earnings:       map[string]any{},
		RecentNews:     []any{},
		EconomicEvents: []any{},
		Summary:        summary,
	}
	if e, ok := data["earnings_calendar"]; ok && e != nil {
		v.Earnings = e
	}
	if news, ok := data["recent_news"].([]any); ok {
		v.RecentNews = news[:min(len(news), recentNewsLimit)]
	}
	if ev, ok := data["economic_events"].([]any); ok {
		v.EconomicEvents = ev
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// RunAgents runs the pipeline over caller-supplied inputs and returns the
// flattened context.
func (uc *AnalysisUseCase) RunAgents(ctx context.Context, req models.RunAgentsRequest, observers ...StepObserver) (*models.PipelineRun, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	style := req.PersonaStyle
	if style == "" {
		style = agents.StyleProfessional
	}
	ac := &models.AnalysisContext{
		Asset:        strings.TrimSpace(req.Asset),
		MarketEvent:  req.MarketEvent,
		UserTrades:   req.UserTrades,
		PersonaStyle: style,
	}
	uc.l.Info("agent pipeline started", applogger.String("market_event", req.MarketEvent))

	out, records, err := uc.exec.Run(ctx, uc.steps, ac, observers...)
	if err != nil {
		return nil, fmt.Errorf("run agents: %w", err)
	}
	flat, err := out.Flatten()
	if err != nil {
		return nil, fmt.Errorf("flatten context: %w", err)
	}
	return &models.PipelineRun{
		Message:   pipelineCompleted,
		Result:    flat,
		AgentsRun: len(uc.steps),
		Steps:     records,
	}, nil
}
