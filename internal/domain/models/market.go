package models

import (
	"math"
	"time"
)

// SymbolInfo is the provider's free-form metadata for a ticker.
type SymbolInfo map[string]any

// HasAny reports whether at least one of keys is present.
func (s SymbolInfo) HasAny(keys ...string) bool {
	for _, k := range keys {
		if _, ok := s[k]; ok {
			return true
		}
	}
	return false
}

// PricePoint is one daily bar. Close is nil when the provider had no value.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Close *float64  `json:"close"`
}

// PriceHistory is ordered oldest first.
type PriceHistory []PricePoint

// Closes returns the non-null, non-NaN closes in order.
func (h PriceHistory) Closes() []float64 {
	out := make([]float64, 0, len(h))
	for _, p := range h {
		if p.Close != nil && !math.IsNaN(*p.Close) {
			out = append(out, *p.Close)
		}
	}
	return out
}

// Last returns the most recent valid close.
func (h PriceHistory) Last() (float64, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		if c := h[i].Close; c != nil && !math.IsNaN(*c) {
			return *c, true
		}
	}
	return 0, false
}

// EconomicCalendar is the opaque calendar payload plus its one-line summary.
type EconomicCalendar struct {
	Data    map[string]any `json:"data"`
	Summary string         `json:"summary"`
}
