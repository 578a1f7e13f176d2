package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/metrics"
)

// ReportDispatcher sits between the analysis use cases and the report
// publisher. Reports that fail to publish are buffered and retried in the
// background with capped exponential backoff.
type ReportDispatcher struct {
	pub        domrepo.ReportPublisher
	metrics    domrepo.Metrics
	l          *applogger.Logger
	bufSize    int
	bufCh      chan *models.AnalysisReport
	stopCh     chan struct{}
	done       chan struct{}
	started    bool
	mu         sync.Mutex
	backoffMin time.Duration
	backoffMax time.Duration
}

type DispatcherOption func(*ReportDispatcher)

// WithBufferSize sets how many reports are held while the publisher is unavailable.
func WithBufferSize(n int) DispatcherOption {
	return func(d *ReportDispatcher) {
		if n > 0 {
			d.bufSize = n
		}
	}
}

func WithBackoff(min, max time.Duration) DispatcherOption {
	return func(d *ReportDispatcher) {
		if min > 0 && max >= min {
			d.backoffMin, d.backoffMax = min, max
		}
	}
}

func WithDispatcherMetrics(m domrepo.Metrics) DispatcherOption {
	return func(d *ReportDispatcher) { d.metrics = m }
}

func WithDispatcherLogger(l *applogger.Logger) DispatcherOption {
	return func(d *ReportDispatcher) { d.l = l }
}

func NewReportDispatcher(pub domrepo.ReportPublisher, opts ...DispatcherOption) *ReportDispatcher {
	d := &ReportDispatcher{
		pub:        pub,
		metrics:    metrics.Noop{},
		l:          applogger.Nop(),
		bufSize:    256,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.bufCh = make(chan *models.AnalysisReport, d.bufSize)
	return d
}

// Start launches the background flush loop.
func (d *ReportDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	go func() {
		defer close(d.done)
		backoff := d.backoffMin
		for {
			select {
			case <-d.stopCh:
				return
			case <-ctx.Done():
				return
			case r := <-d.bufCh:
				if err := d.pub.Publish(ctx, r); err != nil {
					d.metrics.RecordError("report_flush")
					d.l.Warn("report flush failed",
						applogger.String("asset", r.Asset),
						applogger.Duration("backoff", backoff),
						applogger.Error(err),
					)
					select {
					case <-time.After(backoff):
					case <-d.stopCh:
						d.requeue(r)
						return
					case <-ctx.Done():
						return
					}
					backoff = min(backoff*2, d.backoffMax)
					d.requeue(r)
					continue
				}
				backoff = d.backoffMin
			}
		}
	}()
}

// Stop halts the flush loop. Reports still buffered are dropped.
func (d *ReportDispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.mu.Unlock()
	close(d.stopCh)
	<-d.done
	if n := len(d.bufCh); n > 0 {
		d.l.Warn("report dispatcher stopped with pending reports", applogger.Int("pending", n))
	}
}

// Pending reports the number of buffered reports.
func (d *ReportDispatcher) Pending() int { return len(d.bufCh) }

// Publish forwards r to the publisher, buffering it on failure. The error is
// returned so the caller can log it; the report is not lost unless the
// buffer is full.
func (d *ReportDispatcher) Publish(ctx context.Context, r *models.AnalysisReport) error {
	if r == nil {
		return fmt.Errorf("report nil")
	}
	if err := d.pub.Publish(ctx, r); err != nil {
		d.metrics.RecordError("report_publish")
		d.requeue(r)
		return fmt.Errorf("report downstream: %w", err)
	}
	return nil
}

func (d *ReportDispatcher) requeue(r *models.AnalysisReport) {
	select {
	case d.bufCh <- r:
	default:
		d.metrics.RecordError("report_buffer_full")
		d.l.Error("report buffer full, dropping report", applogger.String("asset", r.Asset))
	}
}

func (d *ReportDispatcher) Close() error {
	d.Stop()
	return d.pub.Close()
}

var _ domrepo.ReportPublisher = (*ReportDispatcher)(nil)
