package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	stepDuration *prometheus.HistogramVec
	fallbacks    *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	providerCall *prometheus.HistogramVec
	validations  *prometheus.CounterVec
	vix          prometheus.Gauge
	riskIndex    *prometheus.GaugeVec
	errorsTotal  *prometheus.CounterVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers on reg, which lets tests use an isolated registry.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		stepDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "riskpulse",
				Name:      "pipeline_step_duration_seconds",
				Help:      "Duration of pipeline steps by outcome",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"step", "ok"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "riskpulse",
				Name:      "fallback_stage_total",
				Help:      "Fallback chain stage attempts by outcome",
			},
			[]string{"chain", "stage", "ok"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "riskpulse",
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by result",
			},
			[]string{"cache", "result"},
		),
		providerCall: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "riskpulse",
				Name:      "provider_call_duration_seconds",
				Help:      "Market data provider call latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op", "result"},
		),
		validations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "riskpulse",
				Name:      "symbol_validations_total",
				Help:      "Symbol validations by result code",
			},
			[]string{"code"},
		),
		vix: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "riskpulse",
			Name:      "volatility_index",
			Help:      "Last computed volatility index",
		}),
		riskIndex: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "riskpulse",
				Name:      "risk_index",
				Help:      "Last computed risk index per symbol",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "riskpulse",
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordStep(step string, ok bool, seconds float64) {
	r.stepDuration.WithLabelValues(step, strconv.FormatBool(ok)).Observe(seconds)
}

func (r *Recorder) RecordFallback(chain, stage string, ok bool) {
	r.fallbacks.WithLabelValues(chain, stage, strconv.FormatBool(ok)).Inc()
}

func (r *Recorder) RecordCache(name string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(name, result).Inc()
}

func (r *Recorder) RecordProviderCall(op, result string, seconds float64) {
	r.providerCall.WithLabelValues(op, result).Observe(seconds)
}

func (r *Recorder) RecordValidation(code string) {
	if code == "" {
		code = "valid"
	}
	r.validations.WithLabelValues(code).Inc()
}

func (r *Recorder) RecordMetrics(symbol string, vix float64, riskIndex int) {
	r.vix.Set(vix)
	r.riskIndex.WithLabelValues(symbol).Set(float64(riskIndex))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// Noop discards everything.
type Noop struct{}

func (Noop) RecordStep(string, bool, float64) {}
func (Noop) RecordFallback(string, string, bool) {}
func (Noop) RecordCache(string, bool) {}
func (Noop) RecordProviderCall(string, string, float64) {}
func (Noop) RecordValidation(string) {}
func (Noop) RecordMetrics(string, float64, int) {}
func (Noop) RecordError(string) {}
