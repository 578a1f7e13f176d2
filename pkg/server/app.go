package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RiskPulse/internal/middleware"
	"RiskPulse/internal/service/ratelimit"
	"RiskPulse/pkg/config"
	xhttp "RiskPulse/pkg/http"
	pkgkafka "RiskPulse/pkg/kafka"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/queue"
)

const limiterIdle = 10 * time.Minute

type namedCloser struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	root       *applogger.Logger
	l          *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	queue      *queue.RedisQueue
	dispatcher *middleware.ReportDispatcher
	limiter    *ratelimit.Limiter
	closers    []namedCloser
}

type Option func(*App)

func WithHTTPServer(s *xhttp.Server) Option { return func(a *App) { a.httpServer = s } }

func WithConsumer(c *pkgkafka.Consumer) Option { return func(a *App) { a.consumer = c } }

func WithQueue(q *queue.RedisQueue) Option { return func(a *App) { a.queue = q } }

// WithDispatcher hands the report dispatcher to the app, which starts it and
// closes it (and the producer behind it) on shutdown.
func WithDispatcher(d *middleware.ReportDispatcher) Option {
	return func(a *App) { a.dispatcher = d }
}

func WithLimiter(l *ratelimit.Limiter) Option { return func(a *App) { a.limiter = l } }

// WithCloser registers an infrastructure client closed last during shutdown.
func WithCloser(name string, c io.Closer) Option {
	return func(a *App) { a.closers = append(a.closers, namedCloser{name: name, c: c}) }
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, opts ...Option) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{cfg: cfg, root: l, l: l.Component("app")}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Start launches every background component, then the HTTP server.
func (a *App) Start(ctx context.Context) error {
	if a.dispatcher != nil {
		a.dispatcher.Start(ctx)
		a.l.Info("report dispatcher started", applogger.String("topic", a.cfg.Kafka.ReportTopic))
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.cfg.Kafka.RequestTopic))
	}

	if a.queue != nil {
		if err := a.queue.Start(ctx); err != nil {
			a.l.Error("job queue start error", applogger.Error(err))
			return err
		}
	}

	if a.limiter != nil {
		go a.pruneLimiter(ctx)
	}

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.l.Error("http server start error", applogger.Error(err))
			return err
		}
	}
	a.l.Info("riskpulse started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
	)
	return nil
}

func (a *App) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Prune(limiterIdle); n > 0 {
				a.l.Debug("rate limiter pruned", applogger.Int("buckets", n))
			}
		}
	}
}

// Shutdown stops intake first, then flushes outbound reports, then closes clients.
func (a *App) Shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			a.l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	// the log collector ships through the report producer
	a.root.RemoveCollector()

	if a.dispatcher != nil {
		if err := a.dispatcher.Close(); err != nil {
			a.l.Warn("report dispatcher close error", applogger.Error(err))
		}
	}

	for _, nc := range a.closers {
		if err := nc.c.Close(); err != nil {
			a.l.Warn("close error", applogger.String("client", nc.name), applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
