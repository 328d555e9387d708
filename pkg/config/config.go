package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		CORS            bool          `yaml:"cors"`
	} `yaml:"server"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Broker struct {
		Type   string   `yaml:"type"`
		Topics []string `yaml:"topics"`
	} `yaml:"broker"`
	Kafka struct {
		Brokers  []string `yaml:"brokers"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Stream struct {
		FlushInterval  time.Duration `yaml:"flush_interval"`
		BackoffInitial time.Duration `yaml:"backoff_initial"`
		BackoffCap     time.Duration `yaml:"backoff_cap"`
	} `yaml:"stream"`
	Rooms struct {
		Max            int `yaml:"max"`
		MaxConnections int `yaml:"max_connections"`
		QueueSize      int `yaml:"queue_size"`
	} `yaml:"rooms"`
	WorkingSet struct {
		Retention     time.Duration `yaml:"retention"`
		MaxSize       int           `yaml:"max_size"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"working_set"`
	Query struct {
		MaxPageSize int           `yaml:"max_page_size"`
		CacheTTL    time.Duration `yaml:"cache_ttl"`
		Cache       string        `yaml:"cache"`
	} `yaml:"query"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if v := os.Getenv("BROKER"); v != "" {
		c.Broker.Type = v
	}
	if v := os.Getenv("TOPICS"); v != "" {
		c.Broker.Topics = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Stream.FlushInterval == 0 {
		c.Stream.FlushInterval = 250 * time.Millisecond
	}
	if c.Stream.BackoffInitial == 0 {
		c.Stream.BackoffInitial = time.Second
	}
	if c.Stream.BackoffCap == 0 {
		c.Stream.BackoffCap = 60 * time.Second
	}
	if c.Rooms.Max == 0 {
		c.Rooms.Max = 1024
	}
	if c.Rooms.MaxConnections == 0 {
		c.Rooms.MaxConnections = 4096
	}
	if c.Rooms.QueueSize == 0 {
		c.Rooms.QueueSize = 64
	}
	if c.WorkingSet.Retention == 0 {
		c.WorkingSet.Retention = time.Hour
	}
	if c.WorkingSet.MaxSize == 0 {
		c.WorkingSet.MaxSize = 50000
	}
	if c.WorkingSet.SweepInterval == 0 {
		c.WorkingSet.SweepInterval = 30 * time.Second
	}
	if c.Query.MaxPageSize == 0 {
		c.Query.MaxPageSize = 100
	}
	if c.Query.CacheTTL == 0 {
		c.Query.CacheTTL = 2 * time.Second
	}
	if c.Query.Cache == "" {
		c.Query.Cache = "memory"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Broker.Type != "kafka" && c.Broker.Type != "redis" {
		return fmt.Errorf("broker.type must be 'kafka' or 'redis', got '%s'", c.Broker.Type)
	}
	if len(c.Broker.Topics) == 0 {
		return fmt.Errorf("broker.topics cannot be empty")
	}
	if c.Broker.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required for the kafka broker")
	}
	switch c.Query.Cache {
	case "memory", "redis", "layered", "off":
	default:
		return fmt.Errorf("query.cache must be one of memory, redis, layered, off, got '%s'", c.Query.Cache)
	}
	return nil
}
