package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFillsDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, 8000, c.Server.Port)
	assert.Equal(t, 15, c.Validator.MaxSymbolLength)
	assert.Equal(t, 2, c.Validator.MinSignals)
	assert.Equal(t, "5d", c.Validator.ShortWindow)
	assert.Equal(t, "1mo", c.Validator.LongWindow)
	assert.Equal(t, 300*time.Second, c.MetricsEngine.IndexTTL)
	assert.Equal(t, 1.5, c.MetricsEngine.ProxyMultiplier)
	assert.Equal(t, 20.0, c.MetricsEngine.DefaultIndex)
	assert.Equal(t, 25.0, c.MetricsEngine.DefaultVolatility)
	assert.Equal(t, "^VIX", c.MetricsEngine.IndexSymbol)
	assert.Equal(t, 2, c.LLM.RetryMax)
	assert.False(t, c.Kafka.Enabled)
	assert.Equal(t, "riskpulse:queue", c.Queue.Prefix)
	assert.Equal(t, 3, c.Queue.RetryLimit)
}

func TestParseOverridesDefaults(t *testing.T) {
	doc := `
environment: production
server:
  port: 9090
metrics_engine:
  index_ttl: 60s
  proxy_multiplier: 2
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
`
	c, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, time.Minute, c.MetricsEngine.IndexTTL)
	assert.Equal(t, 2.0, c.MetricsEngine.ProxyMultiplier)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "riskpulse.reports", c.Kafka.ReportTopic)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"kafka without brokers", "kafka:\n  enabled: true\n"},
		{"min signals too high", "validator:\n  min_signals: 6\n"},
		{"too few observations", "metrics_engine:\n  min_observations: 1\n"},
		{"queue without redis", "queue:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)

	env := map[string]string{
		"MISTRAL_API_KEY": "secret",
		"KAFKA_BROKERS":   "a:1,b:2",
		"COUNCIL_URL":     "http://council",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "secret", c.LLM.APIKey)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"a:1", "b:2"}, c.Kafka.Brokers)
	assert.Equal(t, "http://council", c.Council.URL)
	assert.False(t, c.Redis.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
}

func TestLoadSampleConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "^VIX", c.MetricsEngine.IndexSymbol)
	assert.Equal(t, "riskpulse.analysis_requests.dlq", c.Kafka.Consumer.DLQTopic)
	assert.False(t, c.Queue.Enabled)
}
