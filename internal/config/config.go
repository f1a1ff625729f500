package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Retry dispatcher backends
const (
	DispatcherRiver = "river"
	DispatcherRedis = "redis"
	DispatcherSQS   = "sqs"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	HTTPAddr    string `yaml:"http_addr"`
	LogLevel    string `yaml:"log_level"`

	// MaxRetries is the number of processing attempts before a webhook is
	// escalated to operator_required.
	MaxRetries        int           `yaml:"max_retries"`
	WorkerConcurrency int           `yaml:"worker_concurrency"`
	WorkTimeout       time.Duration `yaml:"work_timeout"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	RetryBackoffMax   time.Duration `yaml:"retry_backoff_max"`

	RetryDispatcher string `yaml:"retry_dispatcher"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisKey        string `yaml:"redis_key"`
	SQSQueueURL     string `yaml:"sqs_queue_url"`

	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	EnableTracing  bool   `yaml:"enable_tracing"`
	EnableMetrics  bool   `yaml:"enable_metrics"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
}

// Default returns the configuration used for local development
func Default() *Config {
	return &Config{
		// Default connection string for local development
		DatabaseURL:       "postgres://localhost/hookline?sslmode=disable",
		HTTPAddr:          ":8080",
		LogLevel:          "info",
		MaxRetries:        3,
		WorkerConcurrency: 10,
		WorkTimeout:       30 * time.Second,
		RetryBackoff:      5 * time.Second,
		RetryBackoffMax:   5 * time.Minute,
		RetryDispatcher:   DispatcherRiver,
		RedisAddr:         "localhost:6379",
		RedisKey:          "hookline:retries",
		OTLPEndpoint:      "localhost:4318",
		EnableTracing:     false,
		EnableMetrics:     false,
		ServiceVersion:    "1.0.0",
		Environment:       "development",
	}
}

// Load loads configuration from the optional YAML file named by HOOKLINE_CONFIG,
// then applies environment variable overrides
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("HOOKLINE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(name string, dst *string) {
		if value := getenv(name); value != "" {
			*dst = value
		}
	}
	setString("DATABASE_URL", &c.DatabaseURL)
	setString("HTTP_ADDR", &c.HTTPAddr)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("RETRY_DISPATCHER", &c.RetryDispatcher)
	setString("REDIS_ADDR", &c.RedisAddr)
	setString("REDIS_PASSWORD", &c.RedisPassword)
	setString("REDIS_KEY", &c.RedisKey)
	setString("SQS_QUEUE_URL", &c.SQSQueueURL)
	setString("OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTLPEndpoint)
	setString("SERVICE_VERSION", &c.ServiceVersion)
	setString("ENVIRONMENT", &c.Environment)

	ints := map[string]*int{
		"MAX_RETRIES":        &c.MaxRetries,
		"WORKER_CONCURRENCY": &c.WorkerConcurrency,
		"REDIS_DB":           &c.RedisDB,
	}
	for name, dst := range ints {
		value := getenv(name)
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = parsed
	}

	durations := map[string]*time.Duration{
		"WORK_TIMEOUT":      &c.WorkTimeout,
		"RETRY_BACKOFF":     &c.RetryBackoff,
		"RETRY_BACKOFF_MAX": &c.RetryBackoffMax,
	}
	for name, dst := range durations {
		value := getenv(name)
		if value == "" {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = parsed
	}

	bools := map[string]*bool{
		"ENABLE_TRACING": &c.EnableTracing,
		"ENABLE_METRICS": &c.EnableMetrics,
	}
	for name, dst := range bools {
		value := getenv(name)
		if value == "" {
			continue
		}
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = parsed
	}
	return nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database url is required")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("worker concurrency must be at least 1, got %d", c.WorkerConcurrency)
	}
	if c.WorkTimeout <= 0 {
		return fmt.Errorf("work timeout must be positive")
	}
	switch strings.ToLower(c.RetryDispatcher) {
	case DispatcherRiver:
	case DispatcherRedis:
		if c.RedisAddr == "" || c.RedisKey == "" {
			return fmt.Errorf("redis dispatcher requires redis address and key")
		}
	case DispatcherSQS:
		if c.SQSQueueURL == "" {
			return fmt.Errorf("sqs dispatcher requires a queue url")
		}
	default:
		return fmt.Errorf("unknown retry dispatcher %q", c.RetryDispatcher)
	}
	return nil
}
