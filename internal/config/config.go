// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Queue     QueueConfig     `yaml:"queue" mapstructure:"queue"`
	Worker    WorkerConfig    `yaml:"worker" mapstructure:"worker"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Firecrawl FirecrawlConfig `yaml:"firecrawl" mapstructure:"firecrawl"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port         int    `yaml:"port" mapstructure:"port"`
	SharedSecret string `yaml:"shared_secret" mapstructure:"shared_secret"`
}

// QueueConfig configures the refresh queue.
type QueueConfig struct {
	MaxAttempts       int `yaml:"max_attempts" mapstructure:"max_attempts"`
	ClaimTimeoutMins  int `yaml:"claim_timeout_mins" mapstructure:"claim_timeout_mins"`
	DefaultBatchLimit int `yaml:"default_batch_limit" mapstructure:"default_batch_limit"`
}

// WorkerConfig configures batch processing.
type WorkerConfig struct {
	Concurrency      int `yaml:"concurrency" mapstructure:"concurrency"`
	JobTimeoutSecs   int `yaml:"job_timeout_secs" mapstructure:"job_timeout_secs"`
	PollIntervalSecs int `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FirecrawlConfig holds Firecrawl API settings (fallback only).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FetchConfig configures outbound page fetching.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ReconcileConfig points at an optional source confidence override file.
type ReconcileConfig struct {
	ConfigPath string `yaml:"config_path" mapstructure:"config_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REFRESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Keys with no meaningful default still get an empty one so
	// environment-only values survive Unmarshal.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.path", "refresh.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shared_secret", "")
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.claim_timeout_mins", 15)
	v.SetDefault("queue.default_batch_limit", 25)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.job_timeout_secs", 120)
	v.SetDefault("worker.poll_interval_secs", 5)
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("firecrawl.key", "")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.rate_limit", 2.0)
	v.SetDefault("reconcile.config_path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
