package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"RiskPulse/internal/domain/errs"
)

// Entry points that start an analysis.
const (
	EntryHTTP   = "http"
	EntryStream = "websocket"
	EntryKafka  = "kafka"
	EntryQueue  = "queue"
)

var (
	once sync.Once

	AnalysisLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "riskpulse",
			Subsystem: "analysis",
			Name:      "latency_seconds",
			Help:      "End-to-end latency of asset analyses by entry point",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 20, 45, 90},
		},
		[]string{"entry"},
	)

	AnalysisOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskpulse",
			Subsystem: "analysis",
			Name:      "outcomes_total",
			Help:      "Analyses by entry point and outcome",
		},
		[]string{"entry", "outcome"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(AnalysisLatency, AnalysisOutcomes)
	})
}

// Outcome classifies an analysis result for the outcomes counter.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var verr *errs.ValidationError
	switch {
	case errors.As(err, &verr), errs.Is(err, errs.KindValidation):
		return "invalid"
	case errs.Is(err, errs.KindUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// ObserveAnalysis records one finished analysis.
func ObserveAnalysis(entry string, start time.Time, err error) {
	AnalysisLatency.WithLabelValues(entry).Observe(time.Since(start).Seconds())
	AnalysisOutcomes.WithLabelValues(entry, Outcome(err)).Inc()
}
