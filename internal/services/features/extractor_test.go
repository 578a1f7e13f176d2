package features

import (
	"math"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func history(closes ...float64) models.PriceHistory {
	h := make(models.PriceHistory, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		h[i].Time = start.AddDate(0, 0, i)
		if !math.IsNaN(c) {
			v := c
			h[i].Close = &v
		}
	}
	return h
}

func TestPctReturnsSkipsMissing(t *testing.T) {
	r := PctReturns(history(100, math.NaN(), 110, 99))
	require.Len(t, r, 2)
	assert.InDelta(t, 0.10, r[0], 1e-12)
	assert.InDelta(t, -0.10, r[1], 1e-12)

	assert.Nil(t, PctReturns(history(100)))
}

func TestSampleStdDev(t *testing.T) {
	assert.InDelta(t, math.Sqrt(2.5), SampleStdDev([]float64{1, 2, 3, 4, 5}), 1e-12)
	assert.True(t, math.IsNaN(SampleStdDev([]float64{1})))
}

func TestAnnualizedVolatility(t *testing.T) {
	returns := []float64{0.01, -0.01, 0.01, -0.01}
	want := SampleStdDev(returns) * math.Sqrt(252) * 100

	got, ok := AnnualizedVolatility(returns)
	require.True(t, ok)
	assert.InDelta(t, want, got, 1e-9)

	_, ok = AnnualizedVolatility(nil)
	assert.False(t, ok)
}

func TestRealizedVolatilityNeedsMinObservations(t *testing.T) {
	_, ok := RealizedVolatility(history(100, 101, 102, 103, 104), 6)
	assert.False(t, ok)

	v, ok := RealizedVolatility(history(100, 101, 100, 101, 100, 101), 6)
	require.True(t, ok)
	assert.Greater(t, v, 0.0)
}

func TestRealizedVolatilityFlatSeriesIsZero(t *testing.T) {
	v, ok := RealizedVolatility(history(50, 50, 50, 50, 50, 50), 6)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)
}
