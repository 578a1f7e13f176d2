package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8000"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		AllowedOrigins  []string      `yaml:"allowed_origins"` // websocket origins; empty allows any
		// per-client token bucket on the analysis endpoints
		RateLimit struct {
			Enabled  bool    `yaml:"enabled" default:"true"`
			Capacity float64 `yaml:"capacity" default:"10"`
			PerSec   float64 `yaml:"per_sec" default:"0.5"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
		// aggregated error logs are shipped to Kafka when enabled
		Collect struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"riskpulse.logs"`
			Interval       time.Duration `yaml:"interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
		} `yaml:"collect"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	MarketData struct {
		BaseURL     string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
		Timeout     time.Duration `yaml:"timeout" default:"10s"`
		RetryMax    int           `yaml:"retry_max" default:"2"`
		RetryDelay  time.Duration `yaml:"retry_delay" default:"2s"`
		RatePerSec  float64       `yaml:"rate_per_sec" default:"5"`
		Burst       int           `yaml:"burst" default:"5"`
		BreakerTrip uint32        `yaml:"breaker_trip" default:"5"`
		BreakerOpen time.Duration `yaml:"breaker_open" default:"30s"`
	} `yaml:"market_data"`
	Validator struct {
		MaxSymbolLength int           `yaml:"max_symbol_length" default:"15"`
		MinSignals      int           `yaml:"min_signals" default:"2"`
		ShortWindow     string        `yaml:"short_window" default:"5d"`
		LongWindow      string        `yaml:"long_window" default:"1mo"`
		CacheTTL        time.Duration `yaml:"cache_ttl"` // zero keeps positives for the process lifetime
	} `yaml:"validator"`
	MetricsEngine struct {
		IndexSymbol       string        `yaml:"index_symbol" default:"^VIX"`
		IndexWindow       string        `yaml:"index_window" default:"5d"` // latest close within this window
		ProxySymbol       string        `yaml:"proxy_symbol" default:"SPY"`
		IndexTTL          time.Duration `yaml:"index_ttl" default:"300s"`
		ProxyMultiplier   float64       `yaml:"proxy_multiplier" default:"1.5"`
		DefaultIndex      float64       `yaml:"default_index" default:"20"`
		DefaultVolatility float64       `yaml:"default_volatility" default:"25"`
		VolatilityWindow  string        `yaml:"volatility_window" default:"30d"`
		MinObservations   int           `yaml:"min_observations" default:"6"`
	} `yaml:"metrics_engine"`
	Pipeline struct {
		Timeout          time.Duration `yaml:"timeout" default:"90s"`
		PrefetchTimeout  time.Duration `yaml:"prefetch_timeout" default:"10s"`
		TradeLimit       int           `yaml:"trade_limit" default:"50"`
		MaxMessageLength int           `yaml:"max_message_length" default:"1000"`
	} `yaml:"pipeline"`
	LLM struct {
		BaseURL    string        `yaml:"base_url" default:"https://api.mistral.ai/v1"`
		Model      string        `yaml:"model" default:"mistral-small-latest"`
		APIKey     string        `yaml:"api_key"`
		MaxTokens  int           `yaml:"max_tokens" default:"200"`
		Timeout    time.Duration `yaml:"timeout" default:"10s"`
		RetryMax   int           `yaml:"retry_max" default:"2"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"2s"`
	} `yaml:"llm"`
	Council struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout" default:"60s"`
	} `yaml:"council"`
	EconomicCalendar struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"economic_calendar"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"riskpulse"`
	} `yaml:"redis"`
	// async analysis intake; requires redis
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"2"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
		Prefix     string        `yaml:"prefix" default:"riskpulse:queue"`
	} `yaml:"queue"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		ReportTopic  string   `yaml:"report_topic" default:"riskpulse.reports"`
		RequestTopic string   `yaml:"request_topic" default:"riskpulse.analysis_requests"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"riskpulse"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"16"`
			RetryMax   int           `yaml:"retry_max" default:"1"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
		// reports waiting for the broker while it is unavailable
		DispatchBuffer int `yaml:"dispatch_buffer" default:"256"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"riskpulse"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert" default:"true"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
}

// Load reads a YAML file, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes. Keys absent from the document take their struct defaults.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("RISKPULSE_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("MARKET_DATA_URL"); v != "" {
		c.MarketData.BaseURL = v
	}
	if v := getenv("MISTRAL_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := getenv("COUNCIL_URL"); v != "" {
		c.Council.URL = v
	}
	if v := getenv("ECONOMIC_CALENDAR_URL"); v != "" {
		c.EconomicCalendar.URL = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.MarketData.BaseURL == "" {
		return fmt.Errorf("market_data.base_url is required")
	}
	if c.Validator.MaxSymbolLength <= 0 {
		return fmt.Errorf("validator.max_symbol_length must be positive")
	}
	if c.Validator.MinSignals < 1 || c.Validator.MinSignals > 5 {
		return fmt.Errorf("validator.min_signals must be between 1 and 5, got %d", c.Validator.MinSignals)
	}
	if c.MetricsEngine.IndexTTL <= 0 {
		return fmt.Errorf("metrics_engine.index_ttl must be positive")
	}
	if c.MetricsEngine.MinObservations < 2 {
		return fmt.Errorf("metrics_engine.min_observations must be at least 2")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue requires redis to be enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}
