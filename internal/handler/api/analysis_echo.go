package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"RiskPulse/internal/domain/errs"
	"RiskPulse/internal/domain/models"
	servicemetrics "RiskPulse/internal/service/metrics"
	"RiskPulse/internal/usecase"
	xhttp "RiskPulse/pkg/http"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/queue"
)

const (
	ServiceName    = "RiskPulse"
	ServiceVersion = "2.0.0"
)

// Analyzer runs the agent pipeline.
type Analyzer interface {
	AnalyzeAsset(ctx context.Context, req models.AnalyzeAssetRequest, observers ...usecase.StepObserver) (*models.AnalysisReport, error)
	RunAgents(ctx context.Context, req models.RunAgentsRequest, observers ...usecase.StepObserver) (*models.PipelineRun, error)
}

// MarketMetrics serves the standalone lookups.
type MarketMetrics interface {
	Current(ctx context.Context, symbol string) (models.MetricsSnapshot, error)
	Validate(ctx context.Context, symbol string) models.ValidationResult
	History(ctx context.Context, symbol string, limit int) (*usecase.MetricsHistoryResult, error)
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type AnalysisHandler struct {
	analysis  Analyzer
	metrics   MarketMetrics
	throttle  echo.MiddlewareFunc
	jobs      queue.Enqueuer
	checks    map[string]HealthCheck
	now       func() time.Time
	startedAt time.Time
	l         *applogger.Logger
}

type HandlerOption func(*AnalysisHandler)

// WithThrottle guards the pipeline endpoints.
func WithThrottle(mw echo.MiddlewareFunc) HandlerOption {
	return func(h *AnalysisHandler) { h.throttle = mw }
}

// WithJobQueue enables POST /api/analyze-async.
func WithJobQueue(q queue.Enqueuer) HandlerOption {
	return func(h *AnalysisHandler) { h.jobs = q }
}

func WithHealthCheck(name string, check HealthCheck) HandlerOption {
	return func(h *AnalysisHandler) {
		if check != nil {
			h.checks[name] = check
		}
	}
}

func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *AnalysisHandler) { h.now = now }
}

func NewAnalysisHandler(analysis Analyzer, metrics MarketMetrics, l *applogger.Logger, opts ...HandlerOption) *AnalysisHandler {
	if l == nil {
		l = applogger.Nop()
	}
	h := &AnalysisHandler{
		analysis: analysis,
		metrics:  metrics,
		checks:   make(map[string]HealthCheck),
		now:      time.Now,
		l:        l.Component("api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.startedAt = h.now()
	return h
}

func (h *AnalysisHandler) RegisterRoutes(e *echo.Echo) {
	var mw []echo.MiddlewareFunc
	if h.throttle != nil {
		mw = append(mw, h.throttle)
	}
	e.POST("/analyze-asset", h.AnalyzeAsset, mw...)
	e.POST("/run-agents", h.RunAgents, mw...)
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("", h.Info)
	g.GET("/validate", h.Validate)
	g.GET("/market-metrics", h.MarketMetrics)
	g.GET("/market-metrics/history", h.MetricsHistory)
	if h.jobs != nil {
		g.POST("/analyze-async", h.AnalyzeAsync, mw...)
	}
}

// AnalyzeAsset serves POST /analyze-asset?asset=&user_id=. Invalid symbols get a 400.
func (h *AnalysisHandler) AnalyzeAsset(c echo.Context) error {
	req := &models.AnalyzeAssetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start := time.Now()
	report, err := h.analysis.AnalyzeAsset(c.Request().Context(), *req)
	servicemetrics.ObserveAnalysis(servicemetrics.EntryHTTP, start, err)
	if err != nil {
		return h.fail(c, "analyze asset", err)
	}
	return xhttp.SuccessResponse(c, report)
}

type jobAccepted struct {
	JobID string `json:"job_id"`
	Asset string `json:"asset"`
}

// AnalyzeAsync queues the analysis; the report goes out on the report topic.
func (h *AnalysisHandler) AnalyzeAsync(c echo.Context) error {
	req := &models.AnalyzeAssetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	id, err := h.jobs.Enqueue(c.Request().Context(), usecase.JobAnalyzeAsset, req)
	if err != nil {
		h.l.Error("enqueue analysis failed", applogger.String("asset", req.Asset), applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("analysis queue unavailable").WithError(err))
	}
	return xhttp.AcceptedResponse(c, jobAccepted{JobID: id, Asset: req.Asset})
}

func (h *AnalysisHandler) RunAgents(c echo.Context) error {
	req := &models.RunAgentsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	run, err := h.analysis.RunAgents(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "run agents", err)
	}
	return xhttp.SuccessResponse(c, run)
}

func (h *AnalysisHandler) Validate(c echo.Context) error {
	req := &models.ValidateSymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.metrics.Validate(c.Request().Context(), req.Symbol))
}

func (h *AnalysisHandler) MarketMetrics(c echo.Context) error {
	req := &models.MarketMetricsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, err := h.metrics.Current(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "market metrics", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, snap)
}

func (h *AnalysisHandler) MetricsHistory(c echo.Context) error {
	req := &models.MetricsHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.metrics.History(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		return h.fail(c, "metrics history", err)
	}
	return xhttp.SuccessResponse(c, res)
}

type serviceInfo struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

func (h *AnalysisHandler) Info(c echo.Context) error {
	return xhttp.SuccessResponse(c, serviceInfo{
		Name:    ServiceName,
		Version: ServiceVersion,
		Endpoints: []string{
			"POST /analyze-asset",
			"POST /run-agents",
			"POST /api/analyze-async",
			"GET /api/validate",
			"GET /api/market-metrics",
			"GET /api/market-metrics/history",
			"GET /ws/analyze",
			"GET /health",
			"GET /metrics",
		},
	})
}

type healthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Health always answers 200. A failing probe marks the status "degraded".
func (h *AnalysisHandler) Health(c echo.Context) error {
	now := h.now()
	st := healthStatus{
		Status:    "healthy",
		Timestamp: now.UTC(),
		Uptime:    now.Sub(h.startedAt).Round(time.Second).String(),
	}
	if len(h.checks) > 0 {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		names := make([]string, 0, len(h.checks))
		for name := range h.checks {
			names = append(names, name)
		}
		sort.Strings(names)
		st.Checks = make(map[string]string, len(names))
		for _, name := range names {
			if err := h.checks[name](ctx); err != nil {
				st.Checks[name] = err.Error()
				st.Status = "degraded"
				continue
			}
			st.Checks[name] = "ok"
		}
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *AnalysisHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.l.Error(op+" failed", applogger.Error(err))
	} else {
		h.l.Info(op+" rejected", applogger.String("reason", appErr.Message))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var verr *errs.ValidationError
	if errors.As(err, &verr) {
		return xhttp.NewAppError("ERR_INVALID_SYMBOL", "asset", verr.Reason, http.StatusBadRequest).
			WithParam("symbol", verr.Symbol).
			WithParam("code", verr.Code).
			WithError(err)
	}
	switch {
	case errs.Is(err, errs.KindValidation):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errs.Is(err, errs.KindNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errs.Is(err, errs.KindRateLimit):
		return xhttp.TooManyRequestsError("upstream rate limited").WithError(err)
	case errs.Is(err, errs.KindUnavailable):
		return xhttp.ServiceUnavailableError(err.Error()).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.ServiceUnavailableError("analysis timed out").WithError(err)
	default:
		return xhttp.InternalError("analysis failed").WithError(err)
	}
}

var _ xhttp.Handler = (*AnalysisHandler)(nil)
