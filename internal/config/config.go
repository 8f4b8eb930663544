package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Input   InputConfig   `yaml:"input" mapstructure:"input"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ScoringConfig configures the EAL scorer.
type ScoringConfig struct {
	Beta           float64  `yaml:"beta" mapstructure:"beta"`
	Lambda         float64  `yaml:"lambda" mapstructure:"lambda"`
	ExcludedRealis []string `yaml:"excluded_realis" mapstructure:"excluded_realis"`
	Strict         bool     `yaml:"strict" mapstructure:"strict"`
	Normalizer     string   `yaml:"normalizer" mapstructure:"normalizer"`
	FoldCase       bool     `yaml:"fold_case" mapstructure:"fold_case"`
}

// BatchConfig configures corpus scoring.
type BatchConfig struct {
	MaxConcurrentDocuments int `yaml:"max_concurrent_documents" mapstructure:"max_concurrent_documents"`
}

// InputConfig configures how gold and system bundles are read.
type InputConfig struct {
	RepairJudgments bool `yaml:"repair_judgments" mapstructure:"repair_judgments"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	Driver         string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL    string `yaml:"database_url" mapstructure:"database_url"`
	MaxRetries     int    `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffMs int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	MaxConns       int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns       int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the scoring HTTP service.
type ServerConfig struct {
	Port              int      `yaml:"port" mapstructure:"port"`
	RequestsPerSecond float64  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int      `yaml:"burst" mapstructure:"burst"`
	AllowedOrigins    []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("EAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("scoring.beta", 0.25)
	v.SetDefault("scoring.lambda", 0.5)
	v.SetDefault("scoring.excluded_realis", []string{"generic"})
	v.SetDefault("scoring.strict", false)
	v.SetDefault("scoring.normalizer", "coreference")
	v.SetDefault("scoring.fold_case", false)
	v.SetDefault("batch.max_concurrent_documents", 8)
	v.SetDefault("input.repair_judgments", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "eal.db")
	v.SetDefault("store.max_retries", 3)
	v.SetDefault("store.retry_backoff_ms", 100)
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.requests_per_second", 20.0)
	v.SetDefault("server.burst", 40)
	v.SetDefault("server.allowed_origins", []string{"*"})
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

// Validate checks the settings a command mode needs. Scoring parameters are checked by
// scorer.ValidateConfig.
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Batch.MaxConcurrentDocuments < 1 || c.Batch.MaxConcurrentDocuments > 64 {
		errs = append(errs, fmt.Sprintf("batch.max_concurrent_documents must be between 1 and 64, got %d", c.Batch.MaxConcurrentDocuments))
	}

	switch mode {
	case "score":
	case "store":
		errs = append(errs, c.validateStore()...)
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RequestsPerSecond <= 0 {
			errs = append(errs, "server.requests_per_second must be > 0")
		}
		if c.Server.Burst < 1 {
			errs = append(errs, "server.burst must be >= 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
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
