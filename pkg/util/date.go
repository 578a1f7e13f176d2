package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var layouts = []string{time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// ParseTime tries RFC3339, the plain date-time layouts and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// Lookback is a calendar window such as "5d", "1mo" or "1y".
type Lookback struct {
	Days   int
	Months int
	Years  int
	raw    string
}

func (l Lookback) String() string { return l.raw }

// Start returns the beginning of the window that ends at end.
func (l Lookback) Start(end time.Time) time.Time {
	return end.AddDate(-l.Years, -l.Months, -l.Days)
}

// ParseLookback understands <n>d, <n>wk, <n>mo and <n>y.
func ParseLookback(s string) (Lookback, error) {
	raw := strings.TrimSpace(strings.ToLower(s))
	units := []struct {
		suffix string
		apply  func(*Lookback, int)
	}{
		{"mo", func(l *Lookback, n int) { l.Months = n }},
		{"wk", func(l *Lookback, n int) { l.Days = 7 * n }},
		{"d", func(l *Lookback, n int) { l.Days = n }},
		{"y", func(l *Lookback, n int) { l.Years = n }},
	}
	for _, u := range units {
		if !strings.HasSuffix(raw, u.suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(raw, u.suffix))
		if err != nil || n <= 0 {
			return Lookback{}, fmt.Errorf("invalid lookback %q", s)
		}
		l := Lookback{raw: raw}
		u.apply(&l, n)
		return l, nil
	}
	return Lookback{}, fmt.Errorf("invalid lookback %q", s)
}

// MustLookback panics on malformed constants.
func MustLookback(s string) Lookback {
	l, err := ParseLookback(s)
	if err != nil {
		panic(err)
	}
	return l
}
