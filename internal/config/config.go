// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Extract ExtractConfig `mapstructure:"extract"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// FetchConfig bounds the concurrent fetch stage.
type FetchConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
}

// RetryConfig governs the transient-failure retry policy.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`
}

// ExtractConfig controls the article text extractor.
type ExtractConfig struct {
	MaxContentBytes int `mapstructure:"max_content_bytes"`
}

// BatchConfig shapes the downstream batch request files.
type BatchConfig struct {
	ChunkSize     int    `mapstructure:"chunk_size"`
	MinContentLen int    `mapstructure:"min_content_len"`
	Model         string `mapstructure:"model"`
}

// OutputConfig sets where run artifacts are written.
type OutputConfig struct {
	ContentPath string `mapstructure:"content_path"`
	BatchDir    string `mapstructure:"batch_dir"`
	BatchBase   string `mapstructure:"batch_base"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
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
	v.SetDefault("fetch.concurrency", 12)
	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.user_agent", "article-harvester/0.1")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff_base", 250*time.Millisecond)
	v.SetDefault("retry.backoff_max", 5*time.Second)
	v.SetDefault("extract.max_content_bytes", 50_000)
	v.SetDefault("batch.chunk_size", 50)
	v.SetDefault("batch.min_content_len", 0)
	v.SetDefault("batch.model", "gpt-4.1-mini")
	v.SetDefault("output.content_path", "data/content.jsonl")
	v.SetDefault("output.batch_dir", "data/batch")
	v.SetDefault("output.batch_base", "batch_input.jsonl")
	v.SetDefault("logging.development", true)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be > 0")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Retry.BackoffBase <= 0 {
		return fmt.Errorf("retry.backoff_base must be > 0")
	}
	if c.Retry.BackoffMax < c.Retry.BackoffBase {
		return fmt.Errorf("retry.backoff_max must be >= retry.backoff_base")
	}
	if c.Batch.ChunkSize <= 0 {
		return fmt.Errorf("batch.chunk_size must be > 0")
	}
	if c.Batch.MinContentLen < 0 {
		return fmt.Errorf("batch.min_content_len must be >= 0")
	}
	if c.Output.ContentPath == "" {
		return fmt.Errorf("output.content_path must be set")
	}
	if c.Output.BatchDir == "" {
		return fmt.Errorf("output.batch_dir must be set")
	}
	if c.Metrics.Enabled && c.Metrics.Port <= 0 {
		return fmt.Errorf("metrics.port must be > 0 when metrics are enabled")
	}
	return nil
}
