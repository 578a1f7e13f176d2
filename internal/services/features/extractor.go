package features

import (
	"math"

	"RiskPulse/internal/domain/models"
)

// TradingDaysPerYear annualizes daily volatility.
const TradingDaysPerYear = 252

// PctReturns computes simple returns r_t = C_t / C_{t-1} - 1 over the valid closes.
// Missing closes are skipped, so a gap joins its neighbours into one return.
// It returns nil if there are fewer than two valid closes.
func PctReturns(history models.PriceHistory) []float64 {
	closes := history.Closes()
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev == 0 {
			continue
		}
		out = append(out, closes[i]/prev-1)
	}
	return out
}

// SampleStdDev is the n-1 standard deviation. NaN for fewer than two values.
func SampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	n := float64(len(xs))
	mean := sum / n
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / (n - 1))
}

// AnnualizedVolatility returns stdev(returns) * sqrt(252) * 100, in percent.
// ok is false when the input cannot produce a finite value.
func AnnualizedVolatility(returns []float64) (float64, bool) {
	sd := SampleStdDev(returns)
	if math.IsNaN(sd) || math.IsInf(sd, 0) {
		return 0, false
	}
	return sd * math.Sqrt(TradingDaysPerYear) * 100, true
}

// RealizedVolatility is AnnualizedVolatility over the history's daily returns.
// It needs at least minObs bars.
func RealizedVolatility(history models.PriceHistory, minObs int) (float64, bool) {
	if len(history) < minObs {
		return 0, false
	}
	return AnnualizedVolatility(PctReturns(history))
}
