package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"RiskPulse/internal/domain/errs"
	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	xhttp "RiskPulse/pkg/http"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/metrics"
	xutil "RiskPulse/pkg/util"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const userAgent = "Mozilla/5.0 (compatible; RiskPulse/1.0)"

// upstream Retry-After hints above this are ignored
const maxRetryAfter = 30 * time.Second

// Client reads quotes and daily history from a chart-style JSON endpoint.
// Calls are throttled, retried on 429 and guarded by a circuit breaker.
type Client struct {
	baseURL    string
	http       *xhttp.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	retryMax   int
	retryDelay time.Duration
	now        func() time.Time
	metrics    domrepo.Metrics
	l          *applogger.Logger
}

// Option configures Client.
type Option func(*Client)

func WithHTTPClient(c *xhttp.Client) Option { return func(m *Client) { m.http = c } }

// WithRateLimit caps outbound requests per second. Zero disables throttling.
func WithRateLimit(perSec float64, burst int) Option {
	return func(m *Client) {
		if perSec <= 0 {
			m.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithRetry sets the attempts made on a 429 and the fixed pause between them.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(m *Client) {
		if attempts < 1 {
			attempts = 1
		}
		m.retryMax = attempts
		m.retryDelay = delay
	}
}

// WithBreaker opens the circuit after trip consecutive failures for openFor.
func WithBreaker(trip uint32, openFor time.Duration) Option {
	return func(m *Client) { m.breaker = newBreaker("market_data", trip, openFor) }
}

func WithMetrics(r domrepo.Metrics) Option { return func(m *Client) { m.metrics = r } }

func WithLogger(l *applogger.Logger) Option { return func(m *Client) { m.l = l } }

func WithClock(now func() time.Time) Option { return func(m *Client) { m.now = now } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		http:       xhttp.NewClient(xhttp.WithTimeout(10 * time.Second)),
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		breaker:    newBreaker("market_data", 5, 30*time.Second),
		retryMax:   2,
		retryDelay: 2 * time.Second,
		now:        time.Now,
		metrics:    metrics.Noop{},
		l:          applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// not-found answers are the provider working correctly and must not open the circuit
func newBreaker(name string, trip uint32, openFor time.Duration) *gobreaker.CircuitBreaker {
	if trip == 0 {
		trip = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trip
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errs.Is(err, errs.KindNotFound)
		},
	})
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       map[string]any `json:"meta"`
	Timestamp  []int64        `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// Info returns the symbol's metadata, keyed the way the validator expects.
func (c *Client) Info(ctx context.Context, symbol string) (models.SymbolInfo, error) {
	res, err := c.chart(ctx, "info", symbol, url.Values{"range": {"1d"}, "interval": {"1d"}})
	if err != nil {
		return nil, err
	}
	return toSymbolInfo(res.Meta), nil
}

// History returns daily closes over window, oldest first. Missing closes stay nil.
func (c *Client) History(ctx context.Context, symbol, window string) (models.PriceHistory, error) {
	lb, err := xutil.ParseLookback(window)
	if err != nil {
		return nil, errs.E(errs.KindValidation, "history", "bad window", err)
	}
	end := c.now()
	q := url.Values{
		"period1":  {strconv.FormatInt(lb.Start(end).Unix(), 10)},
		"period2":  {strconv.FormatInt(end.Unix(), 10)},
		"interval": {"1d"},
	}
	res, err := c.chart(ctx, "history", symbol, q)
	if err != nil {
		return nil, err
	}

	var closes []*float64
	if len(res.Indicators.Quote) > 0 {
		closes = res.Indicators.Quote[0].Close
	}
	out := make(models.PriceHistory, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		p := models.PricePoint{Time: time.Unix(ts, 0).UTC()}
		if i < len(closes) {
			p.Close = closes[i]
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Client) chart(ctx context.Context, op, symbol string, q url.Values) (*chartResult, error) {
	start := time.Now()
	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchWithRetry(ctx, op, symbol, q)
	})
	result := outcome(err)
	c.metrics.RecordProviderCall(op, result, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errs.E(errs.KindUnavailable, op, "market data circuit open", err)
		}
		if !errs.Is(err, errs.KindNotFound) {
			c.l.Warn("market data call failed",
				applogger.String("op", op),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return nil, err
	}
	return v.(*chartResult), nil
}

func (c *Client) fetchWithRetry(ctx context.Context, op, symbol string, q url.Values) (*chartResult, error) {
	var err error
	for attempt := 1; attempt <= c.retryMax; attempt++ {
		var res *chartResult
		res, err = c.fetch(ctx, op, symbol, q)
		if err == nil {
			return res, nil
		}
		if !errs.Is(err, errs.KindRateLimit) || attempt == c.retryMax {
			break
		}
		delay := c.retryDelay
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.RetryAfter > delay && se.RetryAfter <= maxRetryAfter {
			delay = se.RetryAfter
		}
		c.l.Debug("market data rate limited, retrying",
			applogger.String("symbol", symbol),
			applogger.Int("attempt", attempt),
			applogger.Duration("delay", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, err
}

func (c *Client) fetch(ctx context.Context, op, symbol string, q url.Values) (*chartResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var body chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      http.MethodGet,
		URL:         c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol),
		Headers:     map[string]string{"User-Agent": userAgent, "Accept": "application/json"},
		QueryParams: q,
	}, &body)
	switch {
	case xhttp.IsStatus(err, http.StatusNotFound):
		return nil, errs.E(errs.KindNotFound, op, "symbol "+symbol+" not found (404)", err)
	case xhttp.IsStatus(err, http.StatusTooManyRequests):
		return nil, errs.E(errs.KindRateLimit, op, "rate limited (429)", err)
	case err != nil:
		return nil, errs.E(errs.KindExternalService, op, "", err)
	}

	if e := body.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return nil, errs.E(errs.KindNotFound, op, "symbol "+symbol+" not found (404)", nil)
		}
		return nil, errs.E(errs.KindExternalService, op, e.Code+": "+e.Description, nil)
	}
	if len(body.Chart.Result) == 0 {
		return nil, errs.E(errs.KindNotFound, op, "no chart result for "+symbol, nil)
	}
	return &body.Chart.Result[0], nil
}

// toSymbolInfo copies the chart meta and adds the quote-style aliases.
func toSymbolInfo(meta map[string]any) models.SymbolInfo {
	info := models.SymbolInfo{}
	for k, v := range meta {
		info[k] = v
	}
	aliases := map[string]string{
		"instrumentType":     "quoteType",
		"exchangeName":       "exchange",
		"fullExchangeName":   "market",
		"chartPreviousClose": "previousClose",
	}
	for from, to := range aliases {
		if v, ok := meta[from]; ok {
			if _, taken := info[to]; !taken {
				info[to] = v
			}
		}
	}
	return info
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errs.Is(err, errs.KindNotFound):
		return "not_found"
	case errs.Is(err, errs.KindRateLimit):
		return "rate_limited"
	case errors.Is(err, gobreaker.ErrOpenState):
		return "circuit_open"
	default:
		return "error"
	}
}

var _ domrepo.MarketData = (*Client)(nil)
