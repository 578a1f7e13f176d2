package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskPulse/internal/domain/errs"
	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/usecase"
)

type fakeAnalyzer struct {
	req    models.AnalyzeAssetRequest
	runReq models.RunAgentsRequest
	steps  []models.StepRecord
	err    error
}

func (f *fakeAnalyzer) AnalyzeAsset(_ context.Context, req models.AnalyzeAssetRequest, observers ...usecase.StepObserver) (*models.AnalysisReport, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	for _, rec := range f.steps {
		for _, o := range observers {
			o(rec)
		}
	}
	return &models.AnalysisReport{Asset: strings.ToUpper(req.Asset), UserID: req.UserID, Errors: map[string]string{}}, nil
}

func (f *fakeAnalyzer) RunAgents(_ context.Context, req models.RunAgentsRequest, _ ...usecase.StepObserver) (*models.PipelineRun, error) {
	f.runReq = req
	return &models.PipelineRun{Message: "Multi-agent pipeline completed", AgentsRun: 5, Result: map[string]any{"persona_style": req.PersonaStyle}}, nil
}

type fakeMetrics struct {
	historyErr error
	limit      int
	symbol     string
}

func (f *fakeMetrics) Current(_ context.Context, symbol string) (models.MetricsSnapshot, error) {
	f.symbol = symbol
	return models.MetricsSnapshot{MetricsResult: models.MetricsResult{Symbol: symbol, RiskIndex: 35}}, nil
}

func (f *fakeMetrics) Validate(_ context.Context, symbol string) models.ValidationResult {
	if symbol == "" {
		return models.ValidationResult{Code: models.CodeEmpty, Reason: "Symbol cannot be empty"}
	}
	return models.ValidationResult{Symbol: symbol, IsValid: true}
}

func (f *fakeMetrics) History(_ context.Context, symbol string, limit int) (*usecase.MetricsHistoryResult, error) {
	f.limit = limit
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return &usecase.MetricsHistoryResult{Symbol: symbol, Snapshots: []models.MetricsSnapshot{}}, nil
}

type fakeQueue struct {
	msgType string
	payload interface{}
	err     error
}

func (f *fakeQueue) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	f.msgType, f.payload = msgType, payload
	if f.err != nil {
		return "", f.err
	}
	return "job-1", nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer(a *fakeAnalyzer, m *fakeMetrics, opts ...HandlerOption) *echo.Echo {
	e := echo.New()
	NewAnalysisHandler(a, m, nil, opts...).RegisterRoutes(e)
	NewStreamHandler(a, nil, nil).RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestAnalyzeAssetBindsQuery(t *testing.T) {
	a := &fakeAnalyzer{}
	e := newTestServer(a, &fakeMetrics{})

	rec, env := do(t, e, http.MethodPost, "/analyze-asset?asset=tsla", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tsla", a.req.Asset)
	assert.Equal(t, "default_user", a.req.UserID)

	var report models.AnalysisReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "TSLA", report.Asset)
}

func TestAnalyzeAssetMissingAsset(t *testing.T) {
	e := newTestServer(&fakeAnalyzer{}, &fakeMetrics{})
	rec, _ := do(t, e, http.MethodPost, "/analyze-asset", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_REQUIRED")
}

func TestAnalyzeAsync(t *testing.T) {
	q := &fakeQueue{}
	e := newTestServer(&fakeAnalyzer{}, &fakeMetrics{}, WithJobQueue(q))

	rec, env := do(t, e, http.MethodPost, "/api/analyze-async?asset=msft&user_id=u3", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"job_id":"job-1","asset":"msft"}`, string(env.Data))
	assert.Equal(t, usecase.JobAnalyzeAsset, q.msgType)
	req, ok := q.payload.(*models.AnalyzeAssetRequest)
	require.True(t, ok)
	assert.Equal(t, "u3", req.UserID)

	q.err = errors.New("redis down")
	rec, _ = do(t, e, http.MethodPost, "/api/analyze-async?asset=msft", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAnalyzeAsyncDisabledWithoutQueue(t *testing.T) {
	e := newTestServer(&fakeAnalyzer{}, &fakeMetrics{})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze-async?asset=msft", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusAccepted, rec.Code)
}

func TestAnalyzeAssetErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"invalid symbol", &errs.ValidationError{Symbol: "ZZZZ", Code: "not_found", Reason: "Symbol 'ZZZZ' not found"}, http.StatusBadRequest, "ERR_INVALID_SYMBOL"},
		{"rate limited", errs.E(errs.KindRateLimit, "history", "", nil), http.StatusTooManyRequests, "ERR_RATE_LIMITED"},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable, "analysis timed out"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "analysis failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestServer(&fakeAnalyzer{err: tc.err}, &fakeMetrics{})
			rec, _ := do(t, e, http.MethodPost, "/analyze-asset?asset=ZZZZ", "")
			assert.Equal(t, tc.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.body)
		})
	}
}

func TestRunAgents(t *testing.T) {
	a := &fakeAnalyzer{}
	e := newTestServer(a, &fakeMetrics{})

	body := `{"market_event":"AAPL dropped 4% on earnings","user_trades":[{"timestamp":"2024-01-15T10:30:00Z","symbol":"AAPL","action":"BUY","price":180,"pnl":-12}]}`
	rec, env := do(t, e, http.MethodPost, "/run-agents", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "professional", a.runReq.PersonaStyle)
	require.Len(t, a.runReq.UserTrades, 1)
	assert.Contains(t, string(env.Data), `"agents_run":5`)

	rec, _ = do(t, e, http.MethodPost, "/run-agents", `{"user_trades":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoints(t *testing.T) {
	m := &fakeMetrics{}
	e := newTestServer(&fakeAnalyzer{}, m)

	rec, _ := do(t, e, http.MethodGet, "/api/market-metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SPY", m.symbol)

	rec, _ = do(t, e, http.MethodGet, "/api/market-metrics/history?symbol=AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, m.limit)

	rec, _ = do(t, e, http.MethodGet, "/api/market-metrics/history?symbol=AAPL&limit=5000", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	m.historyErr = errs.E(errs.KindUnavailable, "metrics_history", "metrics store not configured", nil)
	rec, _ = do(t, e, http.MethodGet, "/api/market-metrics/history?symbol=AAPL", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestValidateEndpoint(t *testing.T) {
	e := newTestServer(&fakeAnalyzer{}, &fakeMetrics{})

	_, env := do(t, e, http.MethodGet, "/api/validate?symbol=AAPL", "")
	var res models.ValidationResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.IsValid)

	rec, env := do(t, e, http.MethodGet, "/api/validate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.False(t, res.IsValid)
	assert.Equal(t, models.CodeEmpty, res.Code)
}

func TestInfoAndHealth(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	e := newTestServer(&fakeAnalyzer{}, &fakeMetrics{},
		WithHandlerClock(func() time.Time { return now }),
		WithHealthCheck("redis", func(context.Context) error { return nil }),
		WithHealthCheck("clickhouse", func(context.Context) error { return errors.New("dial tcp: refused") }),
	)

	_, env := do(t, e, http.MethodGet, "/api", "")
	assert.Contains(t, string(env.Data), `"version":"2.0.0"`)

	now = t0.Add(90 * time.Second)
	rec, env := do(t, e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var st healthStatus
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, "degraded", st.Status)
	assert.Equal(t, "1m30s", st.Uptime)
	assert.Equal(t, "ok", st.Checks["redis"])
	assert.Equal(t, "dial tcp: refused", st.Checks["clickhouse"])
}

func TestThrottle(t *testing.T) {
	blocked := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error { return c.NoContent(http.StatusTooManyRequests) }
	}
	e := newTestServer(&fakeAnalyzer{}, &fakeMetrics{}, WithThrottle(blocked))

	req := httptest.NewRequest(http.MethodPost, "/analyze-asset?asset=AAPL", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func dialStream(t *testing.T, e *echo.Echo, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/analyze?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStreamSendsStepsThenReport(t *testing.T) {
	a := &fakeAnalyzer{steps: []models.StepRecord{
		{Name: "BehaviorMonitor", Capability: "sync", OK: true},
		{Name: "MarketWatcher", Capability: "async", OK: false, Error: "council down"},
	}}
	conn := dialStream(t, newTestServer(a, &fakeMetrics{}), "asset=nvda&user_id=u1")

	var events []StreamEvent
	for i := 0; i < 3; i++ {
		var ev StreamEvent
		require.NoError(t, conn.ReadJSON(&ev))
		events = append(events, ev)
	}
	assert.Equal(t, EventStep, events[0].Type)
	assert.Equal(t, "BehaviorMonitor", events[0].Step.Name)
	assert.Equal(t, "council down", events[1].Step.Error)
	assert.Equal(t, EventReport, events[2].Type)
	assert.Equal(t, "NVDA", events[2].Report.Asset)
	assert.Equal(t, "u1", a.req.UserID)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestStreamSendsError(t *testing.T) {
	a := &fakeAnalyzer{err: &errs.ValidationError{Symbol: "ZZZZ", Code: "not_found", Reason: "Symbol 'ZZZZ' not found"}}
	conn := dialStream(t, newTestServer(a, &fakeMetrics{}), "asset=ZZZZ")

	var ev StreamEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventError, ev.Type)
	require.NotNil(t, ev.Error)
	assert.Equal(t, "ERR_INVALID_SYMBOL", ev.Error.Code)
	assert.Equal(t, "Symbol 'ZZZZ' not found", ev.Error.Message)
}
