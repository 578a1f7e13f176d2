package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"RiskPulse/internal/domain/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartBody = `{"chart":{"result":[{
  "meta":{"symbol":"AAPL","instrumentType":"EQUITY","exchangeName":"NMS","longName":"Apple Inc.","regularMarketPrice":189.5,"chartPreviousClose":187.1},
  "timestamp":[1700000000,1700086400,1700172800],
  "indicators":{"quote":[{"close":[187.1,null,189.5]}]}
}],"error":null}}`

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithRetry(2, time.Millisecond), WithRateLimit(0, 0)}, opts...)
	return New(srv.URL, opts...)
}

func TestInfoMapsChartMeta(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("range"))
		_, _ = w.Write([]byte(chartBody))
	})

	info, err := c.Info(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "EQUITY", info["quoteType"])
	assert.Equal(t, "NMS", info["exchange"])
	assert.Equal(t, 187.1, info["previousClose"])
	assert.True(t, info.HasAny("longName", "shortName"))
}

func TestHistoryKeepsMissingCloses(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1709596800", r.URL.Query().Get("period1")) // now - 5d
		_, _ = w.Write([]byte(chartBody))
	}, WithClock(func() time.Time { return now }))

	h, err := c.History(context.Background(), "AAPL", "5d")
	require.NoError(t, err)
	require.Len(t, h, 3)
	assert.Nil(t, h[1].Close)
	assert.Equal(t, []float64{187.1, 189.5}, h.Closes())
}

func TestHistoryRejectsBadWindow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := c.History(context.Background(), "AAPL", "forever")
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	})

	_, err := c.Info(context.Background(), "ZZZZZ")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNotFound))
	assert.Contains(t, err.Error(), "404")
}

func TestNotFoundDoesNotOpenCircuit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, WithBreaker(2, time.Minute))

	for i := 0; i < 5; i++ {
		_, err := c.Info(context.Background(), "ZZZZZ")
		assert.True(t, errs.Is(err, errs.KindNotFound), "attempt %d", i)
	}
}

func TestRateLimitRetriedThenSucceeds(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(chartBody))
	})

	_, err := c.Info(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRateLimitGivesUpAfterRetryMax(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Info(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindRateLimit))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestServerErrorsOpenCircuit(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}, WithBreaker(2, time.Minute))

	for i := 0; i < 2; i++ {
		_, err := c.Info(context.Background(), "AAPL")
		assert.True(t, errs.Is(err, errs.KindExternalService))
	}
	_, err := c.Info(context.Background(), "AAPL")
	assert.True(t, errs.Is(err, errs.KindUnavailable))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPathEscapesIndexSymbol(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.EscapedPath(), "/%5EVIX"), r.URL.EscapedPath())
		_, _ = w.Write([]byte(chartBody))
	})
	_, err := c.History(context.Background(), "^VIX", "1d")
	require.NoError(t, err)
}
