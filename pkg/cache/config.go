package cache

import "time"

// RedisOption configures Redis cache.
type RedisOption func(*RedisConfig)

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
	Prefix       string
}

// WithRedisAddr sets Redis host and port.
func WithRedisAddr(host string, port int) RedisOption {
	return func(c *RedisConfig) {
		c.Host = host
		c.Port = port
	}
}

// WithRedisAuth sets Redis password and database number.
func WithRedisAuth(password string, db int) RedisOption {
	return func(c *RedisConfig) {
		c.Password = password
		c.DB = db
	}
}

// WithRedisPool sets connection pool settings.
func WithRedisPool(poolSize, minIdleConns int, timeout time.Duration) RedisOption {
	return func(c *RedisConfig) {
		c.PoolSize = poolSize
		c.MinIdleConns = minIdleConns
		c.PoolTimeout = timeout
	}
}

// WithRedisPrefix sets key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) {
		c.Prefix = prefix
	}
}

// TTLOption configures a TTL cache.
type TTLOption func(*TTLConfig)

type TTLConfig struct {
	Clock Clock
}

// WithClock replaces time.Now.
func WithClock(clock Clock) TTLOption {
	return func(c *TTLConfig) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

// LayeredOption configures Layered cache.
type LayeredOption func(*LayeredConfig)

type LayeredConfig struct {
	OnRemoteError func(op string, err error)
}

// WithRemoteErrorHook observes L2 failures, which are otherwise swallowed.
func WithRemoteErrorHook(fn func(op string, err error)) LayeredOption {
	return func(c *LayeredConfig) {
		c.OnRemoteError = fn
	}
}
