package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordFallback("volatility_index", "proxy", true)
	r.RecordFallback("volatility_index", "proxy", true)
	r.RecordCache("symbol", true)
	r.RecordCache("symbol", false)
	r.RecordValidation("")
	r.RecordValidation("too_long")
	r.RecordMetrics("SPY", 18.5, 42)
	r.RecordError("step")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.fallbacks.WithLabelValues("volatility_index", "proxy", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("symbol", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("symbol", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.validations.WithLabelValues("valid")))
	assert.Equal(t, 18.5, testutil.ToFloat64(r.vix))
	assert.Equal(t, 42.0, testutil.ToFloat64(r.riskIndex.WithLabelValues("SPY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("step")))
}
