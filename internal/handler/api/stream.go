package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"RiskPulse/internal/domain/models"
	servicemetrics "RiskPulse/internal/service/metrics"
	xhttp "RiskPulse/pkg/http"
	applogger "RiskPulse/pkg/logger"
)

// Stream event types.
const (
	EventStep   = "step"
	EventReport = "report"
	EventError  = "error"
)

const writeWait = 10 * time.Second

// StreamEvent is one message sent over /ws/analyze.
type StreamEvent struct {
	Type   string                 `json:"type"`
	Step   *models.StepRecord     `json:"step,omitempty"`
	Report *models.AnalysisReport `json:"report,omitempty"`
	Error  *xhttp.AppError        `json:"error,omitempty"`
}

// StreamHandler runs one analysis per connection and pushes each finished
// step, then the report, then closes.
type StreamHandler struct {
	analysis Analyzer
	upgrader websocket.Upgrader
	l        *applogger.Logger
}

func NewStreamHandler(analysis Analyzer, allowedOrigins []string, l *applogger.Logger) *StreamHandler {
	if l == nil {
		l = applogger.Nop()
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &StreamHandler{
		analysis: analysis,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				_, ok := origins[r.Header.Get("Origin")]
				return ok
			},
		},
		l: l.Component("stream"),
	}
}

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/analyze", h.Analyze)
}

// wsWriter serializes writes; gorilla connections allow one writer at a time.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(ev StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(ev)
}

func (h *StreamHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeAssetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.l.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	// a client that goes away cancels the run
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	w := &wsWriter{conn: conn}
	observer := func(rec models.StepRecord) {
		if err := w.send(StreamEvent{Type: EventStep, Step: &rec}); err != nil {
			h.l.Debug("step event not delivered", applogger.String("step", rec.Name), applogger.Error(err))
		}
	}

	start := time.Now()
	report, err := h.analysis.AnalyzeAsset(ctx, *req, observer)
	servicemetrics.ObserveAnalysis(servicemetrics.EntryStream, start, err)

	final := StreamEvent{Type: EventReport, Report: report}
	if err != nil {
		final = StreamEvent{Type: EventError, Error: toAppError(err)}
	}
	if err := w.send(final); err != nil {
		h.l.Debug("final event not delivered", applogger.Error(err))
		return nil
	}

	w.mu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(writeWait))
	w.mu.Unlock()
	return nil
}

var _ xhttp.Handler = (*StreamHandler)(nil)
