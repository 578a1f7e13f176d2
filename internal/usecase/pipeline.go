package usecase

import (
	"context"
	"fmt"
	"time"

	"RiskPulse/internal/domain/errs"
	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/metrics"
)

// Capability says how a step is driven.
type Capability string

const (
	Sync  Capability = "sync"
	Async Capability = "async"
)

// StepFunc transforms the context. It receives a private copy and may mutate
// and return it, or return a fresh one.
type StepFunc func(ctx context.Context, ac *models.AnalysisContext) (*models.AnalysisContext, error)

type Step struct {
	Name       string
	Capability Capability
	Run        StepFunc
}

// StepObserver is told about each step as soon as it finishes.
type StepObserver func(models.StepRecord)

// Executor runs a fixed list of steps over one AnalysisContext.
// Steps run one at a time in list order. A failing step never stops the run.
type Executor struct {
	metrics domrepo.Metrics
	l       *applogger.Logger
}

type ExecutorOption func(*Executor)

func WithExecutorMetrics(m domrepo.Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

func WithExecutorLogger(l *applogger.Logger) ExecutorOption {
	return func(e *Executor) { e.l = l }
}

func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{metrics: metrics.Noop{}, l: applogger.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes steps in order. A step that errors or panics leaves the context
// as it was before that step, with the failure recorded under <name>_error.
// Run returns early only when ctx is done; the context built so far and
// ctx.Err() are returned.
func (e *Executor) Run(ctx context.Context, steps []Step, ac *models.AnalysisContext, observers ...StepObserver) (*models.AnalysisContext, []models.StepRecord, error) {
	cur := ac.Clone()
	if cur == nil {
		cur = &models.AnalysisContext{}
	}
	records := make([]models.StepRecord, 0, len(steps))

	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return cur, records, err
		}

		start := time.Now()
		out, err := e.invoke(ctx, st, cur.Clone())
		rec := models.StepRecord{
			Name:       st.Name,
			Capability: string(st.Capability),
			OK:         err == nil,
			Duration:   time.Since(start),
		}

		if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
			// cancelled while waiting; the step's work is abandoned
			rec.Error = ctxErr.Error()
			records = append(records, rec)
			notify(observers, rec)
			return cur, records, ctxErr
		}

		if err != nil {
			rec.Error = err.Error()
			cur.RecordStepError(st.Name, err)
			e.metrics.RecordError(string(errs.KindStepExecution))
			e.l.Error("pipeline step failed",
				applogger.String("step", st.Name),
				applogger.String("asset", cur.Asset),
				applogger.Error(err),
			)
		} else {
			out.CarryStepErrors(cur)
			cur = out
			e.l.Debug("pipeline step done",
				applogger.String("step", st.Name),
				applogger.Duration("took", rec.Duration),
			)
		}
		e.metrics.RecordStep(st.Name, rec.OK, rec.Duration.Seconds())
		records = append(records, rec)
		notify(observers, rec)
	}
	return cur, records, nil
}

func (e *Executor) invoke(ctx context.Context, st Step, in *models.AnalysisContext) (*models.AnalysisContext, error) {
	if st.Capability != Async {
		return call(ctx, st, in)
	}

	type result struct {
		ac  *models.AnalysisContext
		err error
	}
	done := make(chan result, 1)
	go func() {
		ac, err := call(ctx, st, in)
		done <- result{ac, err}
	}()

	select {
	case r := <-done:
		return r.ac, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func call(ctx context.Context, st Step, in *models.AnalysisContext) (out *models.AnalysisContext, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &errs.StepError{Step: st.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if st.Run == nil {
		return nil, &errs.StepError{Step: st.Name, Err: fmt.Errorf("no step function")}
	}
	out, err = st.Run(ctx, in)
	if err == nil && out == nil {
		out = in
	}
	return out, err
}

func notify(observers []StepObserver, rec models.StepRecord) {
	for _, o := range observers {
		if o != nil {
			o(rec)
		}
	}
}
