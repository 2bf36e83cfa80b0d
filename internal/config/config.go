// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. COURSEFINDER_CRAWLER_CONCURRENCY.
const EnvPrefix = "COURSEFINDER"

// DefaultHost is the root of the course search service.
const DefaultHost = "http://coursefinder.utoronto.ca/course-search/search"

// Storage backends accepted by storage.backend.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendGCS    = "gcs"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the optional monitoring server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs the search query and worker pool.
type CrawlerConfig struct {
	Host         string  `mapstructure:"host"`
	Concurrency  int     `mapstructure:"concurrency"`
	Query        string  `mapstructure:"query"`
	Requirements string  `mapstructure:"requirements"`
	UserAgent    string  `mapstructure:"user_agent"`
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`
}

// HTTPConfig configures HTTP timeouts and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds     int `mapstructure:"timeout_seconds"`
	MaxAttempts        int `mapstructure:"max_attempts"`
	BackoffInitialMs   int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs       int `mapstructure:"backoff_max_ms"`
	SearchRetryDelayMs int `mapstructure:"search_retry_delay_ms"`
	// SearchMaxAttempts caps search attempts; 0 retries until the crawl is canceled.
	SearchMaxAttempts int `mapstructure:"search_max_attempts"`
}

// StorageConfig selects where course records are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	OutputDir string `mapstructure:"output_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
	CSVPath   string `mapstructure:"csv_path"`
}

// DBConfig controls the optional Postgres course table. An empty DSN disables it.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for course-written notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Enabled reports whether notifications should be published.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.TopicName != ""
}

// ProgressConfig toggles progress reporting.
type ProgressConfig struct {
	Stdout bool `mapstructure:"stdout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 0)
	v.SetDefault("crawler.host", DefaultHost)
	v.SetDefault("crawler.concurrency", 32)
	v.SetDefault("crawler.query", "")
	v.SetDefault("crawler.requirements", "")
	v.SetDefault("crawler.user_agent", "coursefinder-crawler/1.0")
	v.SetDefault("crawler.rate_limit_rps", 0)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_attempts", 10)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 30000)
	v.SetDefault("http.search_retry_delay_ms", 500)
	v.SetDefault("http.search_max_attempts", 0)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.output_dir", ".")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.csv_path", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "courses")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("progress.stdout", true)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port < 0 {
		return fmt.Errorf("server.port must be >= 0")
	}
	if c.Crawler.Host == "" {
		return fmt.Errorf("crawler.host must be set")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.RateLimitRPS < 0 {
		return fmt.Errorf("crawler.rate_limit_rps must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts < 0 {
		return fmt.Errorf("http.max_attempts must be >= 0")
	}
	if c.HTTP.SearchMaxAttempts < 0 {
		return fmt.Errorf("http.search_max_attempts must be >= 0")
	}
	if c.HTTP.BackoffInitialMs < 0 || c.HTTP.BackoffMaxMs < c.HTTP.BackoffInitialMs {
		return fmt.Errorf("http.backoff_max_ms must be >= http.backoff_initial_ms >= 0")
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.OutputDir == "" {
			return fmt.Errorf("storage.output_dir must be set for the local backend")
		}
	case BackendMemory:
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of local, memory, gcs", c.Storage.Backend)
	}
	if c.DB.DSN != "" && c.DB.Table == "" {
		return fmt.Errorf("db.table must be set when db.dsn is configured")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// RequestTimeout converts http.timeout_seconds into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial is the first retry delay.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax caps the retry delay.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}

// SearchRetryDelay is the fixed pause after a non-success search response.
func (c Config) SearchRetryDelay() time.Duration {
	return time.Duration(c.HTTP.SearchRetryDelayMs) * time.Millisecond
}
