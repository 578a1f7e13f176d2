// Package marketmetrics derives the volatility index, market regime, realized
// volatility and the composite risk index for a symbol.
package marketmetrics

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	domsvc "RiskPulse/internal/domain/service"
	"RiskPulse/internal/services/features"
	"RiskPulse/pkg/cache"
	"RiskPulse/pkg/fallback"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/metrics"
)

const indexKey = "index"

// lowConfidenceMarkers are matched case-sensitively inside opinion strings.
var lowConfidenceMarkers = []string{"MEDIUM", "LOW", "uncertain", "unclear"}

var errEmptyHistory = errors.New("empty history")

type Config struct {
	IndexSymbol       string
	IndexWindow       string
	ProxySymbol       string
	IndexTTL          time.Duration
	ProxyMultiplier   float64
	DefaultIndex      float64
	DefaultVolatility float64
	VolatilityWindow  string
	MinObservations   int
}

func DefaultConfig() Config {
	return Config{
		IndexSymbol:       "^VIX",
		IndexWindow:       "5d",
		ProxySymbol:       "SPY",
		IndexTTL:          300 * time.Second,
		ProxyMultiplier:   1.5,
		DefaultIndex:      20.0,
		DefaultVolatility: 25.0,
		VolatilityWindow:  "30d",
		MinObservations:   6,
	}
}

// Engine is safe for concurrent use. Its public accessors never fail; each one
// falls through to a configured default.
type Engine struct {
	data    domrepo.MarketData
	cfg     Config
	now     cache.Clock
	index   *cache.TTL[float64]
	metrics domrepo.Metrics
	l       *applogger.Logger
}

type Option func(*Engine)

func WithConfig(c Config) Option { return func(e *Engine) { e.cfg = c } }

func WithClock(now cache.Clock) Option { return func(e *Engine) { e.now = now } }

func WithMetrics(m domrepo.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithIndexCache shares a volatility-index cache built at startup. Without it
// New builds one from the configured TTL and clock.
func WithIndexCache(c *cache.TTL[float64]) Option { return func(e *Engine) { e.index = c } }

func WithLogger(l *applogger.Logger) Option { return func(e *Engine) { e.l = l } }

func New(data domrepo.MarketData, opts ...Option) *Engine {
	e := &Engine{
		data:    data,
		cfg:     DefaultConfig(),
		now:     time.Now,
		metrics: metrics.Noop{},
		l:       applogger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.index == nil {
		e.index = cache.NewTTL[float64](e.cfg.IndexTTL, cache.WithClock(e.now))
	}
	return e
}

// VolatilityIndex returns the market fear gauge and where it came from:
// a fresh cached value, the live index, an estimate from the proxy's realized
// volatility, or the default.
func (e *Engine) VolatilityIndex(ctx context.Context) (float64, models.IndexSource) {
	if v, ok := e.index.Get(indexKey); ok {
		e.metrics.RecordCache("volatility_index", true)
		return v, models.SourceCache
	}
	e.metrics.RecordCache("volatility_index", false)

	chain := fallback.New("volatility_index",
		fallback.Stage[float64]{Name: string(models.SourceLive), Run: e.liveIndex},
		fallback.Stage[float64]{Name: string(models.SourceProxy), Run: e.proxyIndex},
	).Observe(e.observe)

	v, stage, err := chain.Resolve(ctx)
	if err != nil {
		e.metrics.RecordFallback("volatility_index", string(models.SourceDefault), true)
		return e.cfg.DefaultIndex, models.SourceDefault
	}
	return v, models.IndexSource(stage)
}

func (e *Engine) liveIndex(ctx context.Context) (float64, error) {
	h, err := e.data.History(ctx, e.cfg.IndexSymbol, e.cfg.IndexWindow)
	if err != nil {
		return 0, err
	}
	v, ok := h.Last()
	if !ok {
		return 0, errEmptyHistory
	}
	e.index.Set(indexKey, v)
	e.l.Info("volatility index fetched", applogger.Float64("value", v))
	return v, nil
}

// proxyIndex is not cached so the live index is retried on the next call.
func (e *Engine) proxyIndex(ctx context.Context) (float64, error) {
	h, err := e.data.History(ctx, e.cfg.ProxySymbol, e.cfg.VolatilityWindow)
	if err != nil {
		return 0, err
	}
	if len(h) == 0 {
		return 0, errEmptyHistory
	}
	vol, ok := features.AnnualizedVolatility(features.PctReturns(h))
	if !ok {
		return 0, errEmptyHistory
	}
	est := vol * e.cfg.ProxyMultiplier
	e.l.Info("volatility index estimated from proxy",
		applogger.String("proxy", e.cfg.ProxySymbol),
		applogger.Float64("value", est),
	)
	return est, nil
}

// RealizedVolatility is the symbol's annualized volatility in percent over the
// configured window, or DefaultVolatility when history is missing or short.
func (e *Engine) RealizedVolatility(ctx context.Context, symbol string) float64 {
	chain := fallback.New("realized_volatility",
		fallback.Stage[float64]{Name: "realized", Run: func(ctx context.Context) (float64, error) {
			h, err := e.data.History(ctx, symbol, e.cfg.VolatilityWindow)
			if err != nil {
				return 0, err
			}
			vol, ok := features.RealizedVolatility(h, e.cfg.MinObservations)
			if !ok {
				return 0, errEmptyHistory
			}
			return vol, nil
		}},
		fallback.Const("default", e.cfg.DefaultVolatility),
	).Observe(e.observe)

	v, _, err := chain.Resolve(ctx)
	if err != nil {
		return e.cfg.DefaultVolatility
	}
	return v
}

func (e *Engine) observe(chain, stage string, err error) {
	e.metrics.RecordFallback(chain, stage, err == nil)
	if err != nil {
		e.l.Warn("fallback stage failed",
			applogger.String("chain", chain),
			applogger.String("stage", stage),
			applogger.Error(err),
		)
	}
}

// Regime buckets the index into half-open intervals, lower bound inclusive.
func Regime(index float64) models.MarketRegime {
	switch {
	case index < 12:
		return models.RegimeUltraLow
	case index < 16:
		return models.RegimeLow
	case index < 20:
		return models.RegimeNormal
	case index < 30:
		return models.RegimeHigh
	default:
		return models.RegimeExtreme
	}
}

// RiskIndex blends three components into a 0-100 score:
// the volatility index (up to 40), debate divergence (up to 30, 15 when agent
// is nil) and realized volatility (up to 30, estimated from the index when vol <= 0).
func RiskIndex(index float64, agent *models.AgentData, vol float64) int {
	score := math.Min(40, index/50*40)
	score += divergence(agent)
	if vol > 0 {
		score += math.Min(30, vol/100*30)
	} else {
		score += math.Min(30, index/50*30)
	}

	// NaN and negative inputs collapse to the bounds
	if !(score > 0) {
		return 0
	}
	if score >= 100 {
		return 100
	}
	return int(score)
}

func divergence(agent *models.AgentData) float64 {
	if agent == nil {
		return 15
	}
	dis := len(agent.DisagreementTopics)
	con := len(agent.ConsensusPoints)
	d := float64(dis) / float64(max(dis+con, 1)) * 30

	if n := len(agent.CouncilOpinions); n > 0 {
		flagged := 0
		for _, op := range agent.CouncilOpinions {
			if containsAny(op, lowConfidenceMarkers) {
				flagged++
			}
		}
		d += float64(flagged) / float64(n) * 10
	}
	return math.Min(30, d)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Compute aggregates the four accessors. It never fails.
func (e *Engine) Compute(ctx context.Context, symbol string, agent *models.AgentData) models.MetricsResult {
	index, src := e.VolatilityIndex(ctx)
	vol := e.RealizedVolatility(ctx, symbol)
	risk := RiskIndex(index, agent, vol)
	e.metrics.RecordMetrics(symbol, index, risk)

	return models.MetricsResult{
		Symbol:          symbol,
		VolatilityIndex: index,
		IndexSource:     src,
		MarketRegime:    Regime(index),
		RiskIndex:       risk,
		AssetVolatility: vol,
		ComputedAt:      e.now().UTC(),
	}
}

// AllMetrics is Compute with the index and volatility rounded to two places.
// The risk index is computed from the unrounded values.
func (e *Engine) AllMetrics(ctx context.Context, symbol string, agent *models.AgentData) models.MetricsResult {
	r := e.Compute(ctx, symbol, agent)
	r.VolatilityIndex = round2(r.VolatilityIndex)
	r.AssetVolatility = round2(r.AssetVolatility)
	return r
}

// Snapshot decorates a result with its display labels.
func (e *Engine) Snapshot(r models.MetricsResult) models.MetricsSnapshot {
	return models.MetricsSnapshot{
		MetricsResult: r,
		RiskLevel:     e.RiskLevelDescription(r.RiskIndex),
		RegimeColor:   e.RegimeColor(r.MarketRegime),
	}
}

func (e *Engine) RiskLevelDescription(riskIndex int) string {
	switch {
	case riskIndex < 20:
		return "VERY LOW"
	case riskIndex < 40:
		return "LOW"
	case riskIndex < 60:
		return "MODERATE"
	case riskIndex < 80:
		return "HIGH"
	default:
		return "VERY HIGH"
	}
}

var regimeColors = map[models.MarketRegime]string{
	models.RegimeUltraLow: "#44ff88",
	models.RegimeLow:      "#88ff44",
	models.RegimeNormal:   "#ffd700",
	models.RegimeHigh:     "#ff4444",
	models.RegimeExtreme:  "#cc0000",
}

func (e *Engine) RegimeColor(regime models.MarketRegime) string {
	if c, ok := regimeColors[regime]; ok {
		return c
	}
	return "#8899aa"
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

var _ domsvc.MetricsEngine = (*Engine)(nil)
