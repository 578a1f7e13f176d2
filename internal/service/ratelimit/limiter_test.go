package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(capacity, perSec float64) (*Limiter, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(capacity, perSec)
	l.now = c.now
	return l, c
}

func TestAllowRefills(t *testing.T) {
	l, c := newTestLimiter(2, 0.5)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")

	c.t = c.t.Add(time.Second)
	assert.False(t, l.Allow("a"), "half a token after 1s")
	c.t = c.t.Add(time.Second)
	assert.True(t, l.Allow("a"))

	c.t = c.t.Add(time.Hour)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"), "refill capped at capacity")
}

func TestPrune(t *testing.T) {
	l, c := newTestLimiter(1, 1)
	l.Allow("a")
	c.t = c.t.Add(10 * time.Minute)
	l.Allow("b")
	assert.Equal(t, 1, l.Prune(5*time.Minute))
	assert.Equal(t, 1, l.Len())
}

func TestMiddleware(t *testing.T) {
	l, _ := newTestLimiter(1, 0)
	e := echo.New()
	e.POST("/analyze-asset", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, l.Middleware())

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/analyze-asset", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusOK, do().Code)
	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "ERR_RATE_LIMITED")
}
