package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAndParseJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "SPY", r.URL.Query().Get("symbol"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "RiskPulse/2.0", r.Header.Get("User-Agent"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"window":"5d"}`, string(body))
		_, _ = w.Write([]byte(`{"close":412.5}`))
	}))
	defer srv.Close()

	var out struct {
		Close float64 `json:"close"`
	}
	err := NewClient(WithTimeout(time.Second)).SendAndParse(context.Background(), &RequestOptions{
		Method:      http.MethodPost,
		URL:         srv.URL,
		QueryParams: map[string][]string{"symbol": {"SPY"}},
		Body:        map[string]string{"window": "5d"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, 412.5, out.Close)
}

func TestSendAndParseStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "custom", r.Header.Get("User-Agent"))
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	err := NewClient().SendAndParse(context.Background(), &RequestOptions{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Headers: map[string]string{"User-Agent": "custom"},
	}, nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusTooManyRequests))
	assert.False(t, IsStatus(err, http.StatusNotFound))

	se, ok := err.(*StatusError)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, se.RetryAfter)
	assert.Equal(t, "slow down", se.Body)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	d := parseRetryAfter(future)
	assert.Greater(t, d, 59*time.Minute)
}
