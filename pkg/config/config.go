// Package config loads and validates configuration from YAML files with
// environment-variable overrides. It provides typed structs for the engine,
// crawler, HTTP server and the optional Redis, Kafka and Postgres backends.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Crawl    CrawlConfig    `yaml:"crawl"`
	Output   OutputConfig   `yaml:"output"`
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// EngineConfig sizes the worker pool and the per-stemmer memo.
type EngineConfig struct {
	Threads       int `yaml:"threads"`
	StemCacheSize int `yaml:"stemCacheSize"`
}

// CrawlConfig controls how pages are fetched.
type CrawlConfig struct {
	MaxPages             int           `yaml:"maxPages"`
	MaxRedirects         int           `yaml:"maxRedirects"`
	FetchTimeout         time.Duration `yaml:"fetchTimeout"`
	MaxConcurrentFetches int64         `yaml:"maxConcurrentFetches"`
	UserAgent            string        `yaml:"userAgent"`
	RetryAttempts        int           `yaml:"retryAttempts"`
	RetryBaseDelay       time.Duration `yaml:"retryBaseDelay"`
	BreakerThreshold     int           `yaml:"breakerThreshold"`
	BreakerResetTimeout  time.Duration `yaml:"breakerResetTimeout"`
}

// OutputConfig holds the default paths used when an output flag is given
// without a value.
type OutputConfig struct {
	Counts  string `yaml:"counts"`
	Index   string `yaml:"index"`
	Results string `yaml:"results"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	MaxResults      int           `yaml:"maxResults"`
}

// PostgresConfig holds PostgreSQL connection parameters for the exporter.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds broker and topic settings for the event stream.
type KafkaConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Brokers    []string `yaml:"brokers"`
	Topic      string   `yaml:"topic"`
	BufferSize int      `yaml:"bufferSize"`
}

// RedisConfig holds Redis connection and result-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used for local runs.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Threads:       5,
			StemCacheSize: 4096,
		},
		Crawl: CrawlConfig{
			MaxPages:             1,
			MaxRedirects:         3,
			FetchTimeout:         10 * time.Second,
			MaxConcurrentFetches: 16,
			UserAgent:            "wordindex/1.0",
			RetryAttempts:        2,
			RetryBaseDelay:       100 * time.Millisecond,
			BreakerThreshold:     5,
			BreakerResetTimeout:  30 * time.Second,
		},
		Output: OutputConfig{
			Counts:  "counts.json",
			Index:   "index.json",
			Results: "results.json",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  5 * time.Second,
			MaxResults:      100,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "wordindex",
			User:            "wordindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:    []string{"localhost:9092"},
			Topic:      "wordindex-events",
			BufferSize: 1000,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.Engine.StemCacheSize < 1 {
		result = multierror.Append(result, fmt.Errorf("engine.stemCacheSize must be positive, got %d", c.Engine.StemCacheSize))
	}
	if c.Crawl.MaxRedirects < 0 {
		result = multierror.Append(result, fmt.Errorf("crawl.maxRedirects must not be negative, got %d", c.Crawl.MaxRedirects))
	}
	if c.Crawl.MaxConcurrentFetches < 1 {
		result = multierror.Append(result, fmt.Errorf("crawl.maxConcurrentFetches must be positive, got %d", c.Crawl.MaxConcurrentFetches))
	}
	if c.Crawl.FetchTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("crawl.fetchTimeout must be positive, got %s", c.Crawl.FetchTimeout))
	}
	if c.Crawl.RetryAttempts < 0 {
		result = multierror.Append(result, fmt.Errorf("crawl.retryAttempts must not be negative, got %d", c.Crawl.RetryAttempts))
	}
	if c.Crawl.BreakerThreshold < 1 {
		result = multierror.Append(result, fmt.Errorf("crawl.breakerThreshold must be positive, got %d", c.Crawl.BreakerThreshold))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		result = multierror.Append(result, fmt.Errorf("metrics.port out of range: %d", c.Metrics.Port))
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		result = multierror.Append(result, fmt.Errorf("kafka requires brokers and a topic when enabled"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		result = multierror.Append(result, fmt.Errorf("redis.addr is required when enabled"))
	}
	if c.Postgres.Enabled && c.Postgres.Host == "" {
		result = multierror.Append(result, fmt.Errorf("postgres.host is required when enabled"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		result = multierror.Append(result, fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format))
	}
	return result.ErrorOrNil()
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields. Unparseable numbers are ignored.
func applyEnvOverrides(cfg *Config) {
	setInt("SP_ENGINE_THREADS", &cfg.Engine.Threads)
	setInt("SP_CRAWL_MAX_PAGES", &cfg.Crawl.MaxPages)
	setInt("SP_CRAWL_MAX_REDIRECTS", &cfg.Crawl.MaxRedirects)
	if v := os.Getenv("SP_CRAWL_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Crawl.FetchTimeout = d
		}
	}
	if v := os.Getenv("SP_CRAWL_USER_AGENT"); v != "" {
		cfg.Crawl.UserAgent = v
	}
	setInt("SP_SERVER_PORT", &cfg.Server.Port)
	setBool("SP_POSTGRES_ENABLED", &cfg.Postgres.Enabled)
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	setInt("SP_POSTGRES_PORT", &cfg.Postgres.Port)
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	setBool("SP_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	setBool("SP_REDIS_ENABLED", &cfg.Redis.Enabled)
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	setBool("SP_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setInt("SP_METRICS_PORT", &cfg.Metrics.Port)
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
