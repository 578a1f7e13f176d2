package di

import (
	"context"
	"fmt"
	"time"

	domrepo "RiskPulse/internal/domain/repository"
	domsvc "RiskPulse/internal/domain/service"
	"RiskPulse/internal/handler/api"
	mid "RiskPulse/internal/middleware"
	internalrepo "RiskPulse/internal/repository"
	"RiskPulse/internal/service/marketdata"
	servicemetrics "RiskPulse/internal/service/metrics"
	"RiskPulse/internal/service/ratelimit"
	"RiskPulse/internal/services/agents"
	"RiskPulse/internal/services/analytics"
	"RiskPulse/internal/services/marketmetrics"
	"RiskPulse/internal/services/validator"
	"RiskPulse/internal/usecase"
	"RiskPulse/pkg/cache"
	pkgch "RiskPulse/pkg/clickhouse"
	"RiskPulse/pkg/config"
	xhttp "RiskPulse/pkg/http"
	pkgkafka "RiskPulse/pkg/kafka"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/metrics"
	"RiskPulse/pkg/queue"
	"RiskPulse/pkg/server"
)

// ProvideLogger builds the root logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates the Prometheus recorder and registers the analysis collectors.
func ProvideMetrics() domrepo.Metrics {
	servicemetrics.Register()
	return metrics.New()
}

// ProvideRedisCache connects to Redis. Returns nil when redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideSymbolCache layers the in-process positive cache over Redis when available.
func ProvideSymbolCache(cfg *config.Config, rc *cache.RedisCache, m domrepo.Metrics, l *applogger.Logger) *cache.Layered[bool] {
	local := cache.NewTTL[bool](cfg.Validator.CacheTTL)
	if rc == nil {
		return cache.NewLayered[bool](local, nil, cfg.Validator.CacheTTL)
	}
	cl := l.Component("symbol_cache")
	return cache.NewLayered[bool](local, rc, cfg.Validator.CacheTTL,
		cache.WithRemoteErrorHook(func(op string, err error) {
			m.RecordError("cache_" + op)
			cl.Warn("redis cache degraded", applogger.String("op", op), applogger.Error(err))
		}),
	)
}

func ProvideMarketData(cfg *config.Config, m domrepo.Metrics, l *applogger.Logger) domrepo.MarketData {
	md := cfg.MarketData
	return marketdata.New(md.BaseURL,
		marketdata.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(md.Timeout))),
		marketdata.WithRateLimit(md.RatePerSec, md.Burst),
		marketdata.WithRetry(md.RetryMax, md.RetryDelay),
		marketdata.WithBreaker(md.BreakerTrip, md.BreakerOpen),
		marketdata.WithMetrics(m),
		marketdata.WithLogger(l),
	)
}

func ProvideSymbolValidator(cfg *config.Config, data domrepo.MarketData, known *cache.Layered[bool], m domrepo.Metrics, l *applogger.Logger) *validator.Validator {
	return validator.New(data,
		validator.WithConfig(validator.Config{
			MaxSymbolLength: cfg.Validator.MaxSymbolLength,
			MinSignals:      cfg.Validator.MinSignals,
			ShortWindow:     cfg.Validator.ShortWindow,
			LongWindow:      cfg.Validator.LongWindow,
		}),
		validator.WithCache(known),
		validator.WithMetrics(m),
		validator.WithLogger(l),
	)
}

// ProvideIndexCache holds the volatility index for the process lifetime.
func ProvideIndexCache(cfg *config.Config) *cache.TTL[float64] {
	return cache.NewTTL[float64](cfg.MetricsEngine.IndexTTL)
}

func ProvideMetricsEngine(cfg *config.Config, data domrepo.MarketData, index *cache.TTL[float64], m domrepo.Metrics, l *applogger.Logger) *marketmetrics.Engine {
	me := cfg.MetricsEngine
	return marketmetrics.New(data,
		marketmetrics.WithConfig(marketmetrics.Config{
			IndexSymbol:       me.IndexSymbol,
			IndexWindow:       me.IndexWindow,
			ProxySymbol:       me.ProxySymbol,
			IndexTTL:          me.IndexTTL,
			ProxyMultiplier:   me.ProxyMultiplier,
			DefaultIndex:      me.DefaultIndex,
			DefaultVolatility: me.DefaultVolatility,
			VolatilityWindow:  me.VolatilityWindow,
			MinObservations:   me.MinObservations,
		}),
		marketmetrics.WithIndexCache(index),
		marketmetrics.WithMetrics(m),
		marketmetrics.WithLogger(l),
	)
}

func ProvideLLM(cfg *config.Config, l *applogger.Logger) domsvc.LLM {
	return analytics.NewHTTPLLM(analytics.LLMConfig{
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		APIKey:     cfg.LLM.APIKey,
		MaxTokens:  cfg.LLM.MaxTokens,
		Timeout:    cfg.LLM.Timeout,
		RetryMax:   cfg.LLM.RetryMax,
		RetryDelay: cfg.LLM.RetryDelay,
	}, l)
}

func ProvideCouncil(cfg *config.Config) domsvc.Council {
	return analytics.NewHTTPCouncil(cfg.Council.URL, cfg.Council.Timeout)
}

// ProvideEconomicCalendar returns nil when no calendar service is configured.
func ProvideEconomicCalendar(cfg *config.Config) domsvc.EconomicCalendar {
	if cfg.EconomicCalendar.URL == "" {
		return nil
	}
	return analytics.NewHTTPEconomicCalendar(cfg.EconomicCalendar.URL, cfg.EconomicCalendar.Timeout)
}

// ProvideAgentSet builds the five pipeline agents.
func ProvideAgentSet(
	cfg *config.Config,
	v *validator.Validator,
	council domsvc.Council,
	calendar domsvc.EconomicCalendar,
	llm domsvc.LLM,
	l *applogger.Logger,
) usecase.AgentSet {
	return usecase.AgentSet{
		Behavior:  agents.NewBehaviorMonitor(agents.DefaultBehaviorThresholds(), l),
		Watcher:   agents.NewMarketWatcher(v, council, calendar, l),
		Narrator:  agents.NewNarrator(l),
		Persona:   agents.NewPersona(llm, l),
		Moderator: agents.NewModerator(cfg.Pipeline.MaxMessageLength, l),
	}
}

func ProvideExecutor(m domrepo.Metrics, l *applogger.Logger) *usecase.Executor {
	return usecase.NewExecutor(usecase.WithExecutorMetrics(m), usecase.WithExecutorLogger(l))
}

// ProvideClickHouseClient connects and applies the schema. Returns nil when
// clickhouse is disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, false),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready", applogger.String("database", ch.Database))
	return client, nil
}

// ProvideTradeHistory reads trades from ClickHouse, or serves none without it.
func ProvideTradeHistory(client *pkgch.Client) domrepo.TradeHistory {
	if client == nil {
		return internalrepo.NoTradeHistory{}
	}
	return internalrepo.NewCHTradeHistory(client.DB())
}

// ProvideMetricsStore returns nil without ClickHouse; history requests then answer 503.
func ProvideMetricsStore(client *pkgch.Client, l *applogger.Logger) domrepo.MetricsStore {
	if client == nil {
		return nil
	}
	return internalrepo.NewCHMetricsStore(client.DB(), l)
}

// ProvideKafkaProducer returns nil when kafka is disabled. When log
// collection is on, aggregated errors are shipped through the same producer.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithLinger(cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	if cfg.Log.Collect.Enabled {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collect.Interval,
			CountThreshold: cfg.Log.Collect.CountThreshold,
			Topic:          cfg.Log.Collect.Topic,
			Publisher:      producer,
		})
	}
	return producer, nil
}

// ProvideReportDispatcher wraps the Kafka report publisher. Returns nil without a producer.
func ProvideReportDispatcher(cfg *config.Config, producer *pkgkafka.Producer, m domrepo.Metrics, l *applogger.Logger) *mid.ReportDispatcher {
	if producer == nil {
		return nil
	}
	return mid.NewReportDispatcher(
		internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.ReportTopic),
		mid.WithBufferSize(cfg.Kafka.DispatchBuffer),
		mid.WithDispatcherMetrics(m),
		mid.WithDispatcherLogger(l.Component("dispatcher")),
	)
}

func ProvideAnalysisUseCase(
	cfg *config.Config,
	v *validator.Validator,
	trades domrepo.TradeHistory,
	calendar domsvc.EconomicCalendar,
	engine *marketmetrics.Engine,
	exec *usecase.Executor,
	set usecase.AgentSet,
	store domrepo.MetricsStore,
	dispatcher *mid.ReportDispatcher,
	l *applogger.Logger,
) *usecase.AnalysisUseCase {
	opts := []usecase.AnalysisOption{
		usecase.WithTimeouts(cfg.Pipeline.Timeout, cfg.Pipeline.PrefetchTimeout),
		usecase.WithAnalysisLogger(l.Component("analysis")),
	}
	if store != nil {
		opts = append(opts, usecase.WithMetricsStore(store))
	}
	if dispatcher != nil {
		opts = append(opts, usecase.WithReportPublisher(dispatcher))
	}
	return usecase.NewAnalysisUseCase(v,
		usecase.NewTradeHistoryUseCase(trades, cfg.Pipeline.TradeLimit),
		calendar, engine, exec, set.Steps(), opts...)
}

func ProvideMarketMetricsUseCase(engine *marketmetrics.Engine, v *validator.Validator, store domrepo.MetricsStore, l *applogger.Logger) *usecase.MarketMetricsUseCase {
	return usecase.NewMarketMetricsUseCase(engine, v, store, l)
}

// ProvideKafkaConsumer subscribes the analysis intake topic. Returns nil
// unless both kafka and its consumer are enabled.
func ProvideKafkaConsumer(cfg *config.Config, uc *usecase.AnalysisUseCase, m domrepo.Metrics, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	cc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cc.GroupID),
		pkgkafka.WithConsumerWorkers(cc.Workers),
		pkgkafka.WithConsumerBufferSize(cc.BufferSize),
		pkgkafka.WithConsumerRetry(cc.RetryMax, cc.BackoffMin, cc.BackoffMax),
		pkgkafka.WithConsumerDLQ(cc.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetHook(pkgkafka.TraceHook(l))
	consumer.RegisterHandler(usecase.NewAnalysisRequestHandler(cfg.Kafka.RequestTopic, uc, m, l.Component("intake")))
	return consumer, nil
}

// ProvideJobQueue returns nil unless the queue is enabled and redis is up.
func ProvideJobQueue(cfg *config.Config, rc *cache.RedisCache, uc *usecase.AnalysisUseCase, m domrepo.Metrics, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l.Component("queue"), queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Queue.Prefix))
	q.RegisterJob(usecase.NewAnalysisJob(uc, m, l.Component("queue")))
	return q
}

// ProvideRateLimiter returns nil when rate limiting is off.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.Server.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.PerSec)
}

// ProvideHTTPServer registers the REST and websocket handlers.
func ProvideHTTPServer(
	cfg *config.Config,
	uc *usecase.AnalysisUseCase,
	mm *usecase.MarketMetricsUseCase,
	limiter *ratelimit.Limiter,
	q *queue.RedisQueue,
	ch *pkgch.Client,
	rc *cache.RedisCache,
	l *applogger.Logger,
) *xhttp.Server {
	var opts []api.HandlerOption
	if limiter != nil {
		opts = append(opts, api.WithThrottle(limiter.Middleware()))
	}
	if q != nil {
		opts = append(opts, api.WithJobQueue(q))
	}
	if ch != nil {
		opts = append(opts, api.WithHealthCheck("clickhouse", ch.Health))
	}
	if rc != nil {
		opts = append(opts, api.WithHealthCheck("redis", rc.Health))
	}

	handlers := []xhttp.Handler{
		api.NewAnalysisHandler(uc, mm, l, opts...),
		api.NewStreamHandler(uc, cfg.Server.AllowedOrigins, l),
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

// ProvideApp assembles the application lifecycle. Optional components
// arrive as nil and are skipped.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	q *queue.RedisQueue,
	dispatcher *mid.ReportDispatcher,
	limiter *ratelimit.Limiter,
	ch *pkgch.Client,
	rc *cache.RedisCache,
) *server.App {
	opts := []server.Option{server.WithHTTPServer(srv)}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer))
	}
	if q != nil {
		opts = append(opts, server.WithQueue(q))
	}
	if dispatcher != nil {
		opts = append(opts, server.WithDispatcher(dispatcher))
	}
	if limiter != nil {
		opts = append(opts, server.WithLimiter(limiter))
	}
	if ch != nil {
		opts = append(opts, server.WithCloser("clickhouse", ch))
	}
	if rc != nil {
		opts = append(opts, server.WithCloser("redis", rc))
	}
	return server.New(cfg, l, opts...)
}
