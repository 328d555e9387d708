package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
environment: development
broker:
  type: redis
  topics:
    - patterns.breakout
    - indicators.momentum
`

func TestLoadMinimalAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "redis", cfg.Broker.Type)
	assert.Equal(t, []string{"patterns.breakout", "indicators.momentum"}, cfg.Broker.Topics)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 250*time.Millisecond, cfg.Stream.FlushInterval)
	assert.Equal(t, time.Second, cfg.Stream.BackoffInitial)
	assert.Equal(t, 60*time.Second, cfg.Stream.BackoffCap)
	assert.Equal(t, 1024, cfg.Rooms.Max)
	assert.Equal(t, 64, cfg.Rooms.QueueSize)
	assert.Equal(t, time.Hour, cfg.WorkingSet.Retention)
	assert.Equal(t, 50000, cfg.WorkingSet.MaxSize)
	assert.Equal(t, 100, cfg.Query.MaxPageSize)
	assert.Equal(t, 2*time.Second, cfg.Query.CacheTTL)
	assert.Equal(t, "memory", cfg.Query.Cache)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadExplicitValuesWin(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
environment: production
server:
  port: 9090
  shutdown_timeout: 5s
logging:
  level: warn
broker:
  type: kafka
  topics:
    - patterns.breakout
kafka:
  brokers:
    - kafka-1:9092
    - kafka-2:9092
  consumer:
    group_id: patternflow-prod
    workers: 4
stream:
  flush_interval: 100ms
query:
  cache: layered
  max_page_size: 250
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "patternflow-prod", cfg.Kafka.Consumer.GroupID)
	assert.Equal(t, 4, cfg.Kafka.Consumer.Workers)
	assert.Equal(t, 100*time.Millisecond, cfg.Stream.FlushInterval)
	assert.Equal(t, "layered", cfg.Query.Cache)
	assert.Equal(t, 250, cfg.Query.MaxPageSize)
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing environment",
			content: `
broker:
  type: redis
  topics: [a]
`,
			wantErr: "environment is required",
		},
		{
			name: "unknown broker type",
			content: `
environment: test
broker:
  type: rabbitmq
  topics: [a]
`,
			wantErr: "broker.type",
		},
		{
			name: "no topics",
			content: `
environment: test
broker:
  type: redis
`,
			wantErr: "broker.topics",
		},
		{
			name: "kafka without brokers",
			content: `
environment: test
broker:
  type: kafka
  topics: [a]
`,
			wantErr: "kafka.brokers",
		},
		{
			name: "bad cache backend",
			content: `
environment: test
broker:
  type: redis
  topics: [a]
query:
  cache: memcached
`,
			wantErr: "query.cache",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "environment: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("BROKER", "kafka")
	t.Setenv("TOPICS", "patterns.reversal,indicators.momentum")
	t.Setenv("KAFKA_BROKERS", "kafka-a:9092,kafka-b:9092")
	t.Setenv("REDIS_ADDR", "redis-prod:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadWithEnv(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "kafka", cfg.Broker.Type)
	assert.Equal(t, []string{"patterns.reversal", "indicators.momentum"}, cfg.Broker.Topics)
	assert.Equal(t, []string{"kafka-a:9092", "kafka-b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "redis-prod:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
