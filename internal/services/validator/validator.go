// Package validator checks that a ticker names a real, traded asset before any
// analysis is spent on it.
package validator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"RiskPulse/internal/domain/errs"
	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	domsvc "RiskPulse/internal/domain/service"
	"RiskPulse/pkg/cache"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/metrics"
	xutil "RiskPulse/pkg/util"
)

// Config holds the thresholds used by Validate.
type Config struct {
	MaxSymbolLength int
	MinSignals      int
	ShortWindow     string
	LongWindow      string
}

func DefaultConfig() Config {
	return Config{MaxSymbolLength: 15, MinSignals: 2, ShortWindow: "5d", LongWindow: "1mo"}
}

// indicatorSignals are the metadata groups a genuine asset tends to carry.
// A group counts once when any of its keys is present.
var indicatorSignals = [][]string{
	{"symbol", "ticker"},
	{"quoteType"},
	{"longName", "shortName"},
	{"currentPrice", "regularMarketPrice", "previousClose"},
	{"market", "exchange"},
}

// Validator is safe for concurrent use. Only positive results are cached.
type Validator struct {
	data    domrepo.MarketData
	known   *cache.Layered[bool]
	cfg     Config
	metrics domrepo.Metrics
	l       *applogger.Logger
}

type Option func(*Validator)

func WithConfig(c Config) Option { return func(v *Validator) { v.cfg = c } }

// WithCache replaces the default process-local cache, e.g. with one backed by Redis.
func WithCache(c *cache.Layered[bool]) Option { return func(v *Validator) { v.known = c } }

func WithMetrics(m domrepo.Metrics) Option { return func(v *Validator) { v.metrics = m } }

func WithLogger(l *applogger.Logger) Option { return func(v *Validator) { v.l = l } }

func New(data domrepo.MarketData, opts ...Option) *Validator {
	v := &Validator{
		data:    data,
		known:   cache.NewLayered[bool](cache.NewTTL[bool](0), nil, 0),
		cfg:     DefaultConfig(),
		metrics: metrics.Noop{},
		l:       applogger.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func cacheKey(symbol string) string { return "symbol:" + symbol }

// Validate never returns an error; every failure is folded into the result.
func (v *Validator) Validate(ctx context.Context, symbol string) (res models.ValidationResult) {
	symbol = xutil.NormalizeSymbol(symbol)
	defer func() {
		if r := recover(); r != nil {
			v.l.Error("symbol validation panicked",
				applogger.String("symbol", symbol),
				applogger.Any("panic", r),
			)
			res = reject(symbol, models.CodeUnavailable, fmt.Sprintf("Unable to validate symbol '%s'", symbol))
		}
		v.metrics.RecordValidation(codeLabel(res))
	}()

	if symbol == "" {
		return reject(symbol, models.CodeEmpty, "Symbol cannot be empty")
	}
	if utf8.RuneCountInString(symbol) > v.cfg.MaxSymbolLength {
		return reject(symbol, models.CodeTooLong,
			fmt.Sprintf("Symbol '%s' is too long (max %d characters)", symbol, v.cfg.MaxSymbolLength))
	}

	if ok, hit := v.known.Get(ctx, cacheKey(symbol)); hit && ok {
		v.metrics.RecordCache("symbol", true)
		return models.ValidationResult{Symbol: symbol, IsValid: true, Cached: true}
	}
	v.metrics.RecordCache("symbol", false)

	res, err := v.check(ctx, symbol)
	if err != nil {
		if isNotFound(err) {
			return reject(symbol, models.CodeNotFound, fmt.Sprintf("Symbol '%s' not found in market data", symbol))
		}
		v.l.Warn("symbol validation failed",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return reject(symbol, models.CodeUnavailable, fmt.Sprintf("Unable to validate symbol '%s'", symbol))
	}
	if res.IsValid {
		v.known.Set(ctx, cacheKey(symbol), true)
	}
	return res
}

// check talks to the provider. Provider errors are returned, data problems are not.
func (v *Validator) check(ctx context.Context, symbol string) (models.ValidationResult, error) {
	info, err := v.data.Info(ctx, symbol)
	if err != nil {
		return models.ValidationResult{}, err
	}
	if len(info) <= 1 {
		return reject(symbol, models.CodeNotFound, fmt.Sprintf("Symbol '%s' not found or has no data", symbol)), nil
	}

	passed := 0
	for _, keys := range indicatorSignals {
		if info.HasAny(keys...) {
			passed++
		}
	}
	if passed < v.cfg.MinSignals {
		return reject(symbol, models.CodeInsufficientData,
			fmt.Sprintf("Symbol '%s' does not appear to be a valid asset (insufficient data)", symbol)), nil
	}

	hist, err := v.data.History(ctx, symbol, v.cfg.ShortWindow)
	if err != nil {
		return models.ValidationResult{}, err
	}
	if len(hist) == 0 {
		// less liquid assets may have nothing in the short window
		if hist, err = v.data.History(ctx, symbol, v.cfg.LongWindow); err != nil {
			return models.ValidationResult{}, err
		}
		if len(hist) == 0 {
			return reject(symbol, models.CodeNoHistory, fmt.Sprintf("Symbol '%s' has no trading history", symbol)), nil
		}
	}
	if _, ok := hist.Last(); !ok {
		return reject(symbol, models.CodeInvalidPrice, fmt.Sprintf("Symbol '%s' has invalid price data", symbol)), nil
	}

	v.l.Info("symbol validated",
		applogger.String("symbol", symbol),
		applogger.Any("quote_type", info["quoteType"]),
	)
	return models.ValidationResult{Symbol: symbol, IsValid: true}, nil
}

// ValidateOrError returns the normalized symbol, or a *errs.ValidationError.
func (v *Validator) ValidateOrError(ctx context.Context, symbol string) (string, error) {
	res := v.Validate(ctx, symbol)
	if !res.IsValid {
		return "", &errs.ValidationError{Symbol: res.Symbol, Code: string(res.Code), Reason: res.Reason}
	}
	return res.Symbol, nil
}

func reject(symbol string, code models.ValidationCode, reason string) models.ValidationResult {
	return models.ValidationResult{Symbol: symbol, Reason: reason, Code: code}
}

func isNotFound(err error) bool {
	if errs.Is(err, errs.KindNotFound) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "404") || strings.Contains(msg, "Not Found")
}

func codeLabel(r models.ValidationResult) string {
	if r.IsValid {
		return "valid"
	}
	return string(r.Code)
}

var _ domsvc.SymbolValidator = (*Validator)(nil)
