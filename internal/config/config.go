// Package config loads congress-cli settings from config.yaml, CONGRESS_*
// environment variables and defaults.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	DatabaseURL string          `yaml:"database_url" mapstructure:"database_url"`
	Store       StoreConfig     `yaml:"store" mapstructure:"store"`
	Reconcile   ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Retry       RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Server      ServerConfig    `yaml:"server" mapstructure:"server"`
	Log         LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig tunes the Postgres pool.
type StoreConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// ReconcileConfig configures matching, conflict resolution and apply.
type ReconcileConfig struct {
	ApplyThreshold     float64        `yaml:"apply_threshold" mapstructure:"apply_threshold"`
	LockWaitSeconds    int            `yaml:"lock_wait_seconds" mapstructure:"lock_wait_seconds"`
	SourcePriority     map[string]int `yaml:"source_priority" mapstructure:"source_priority"`
	PruneAuthoritative bool           `yaml:"prune_authoritative" mapstructure:"prune_authoritative"`
	StrictState        bool           `yaml:"strict_state" mapstructure:"strict_state"`
	MatchBudgetMs      int            `yaml:"match_budget_ms" mapstructure:"match_budget_ms"`
	ParseConcurrency   int            `yaml:"parse_concurrency" mapstructure:"parse_concurrency"`
}

// LockWait returns the advisory lock wait as a duration.
func (c ReconcileConfig) LockWait() time.Duration {
	return time.Duration(c.LockWaitSeconds) * time.Second
}

// MatchBudget returns the per-record matching budget.
func (c ReconcileConfig) MatchBudget() time.Duration {
	return time.Duration(c.MatchBudgetMs) * time.Millisecond
}

// RetryConfig configures the DB_TRANSIENT retry.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// ServerConfig configures the run history API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("CONGRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("reconcile.apply_threshold", 70)
	v.SetDefault("reconcile.lock_wait_seconds", 0)
	v.SetDefault("reconcile.source_priority", map[string]int{})
	v.SetDefault("reconcile.prune_authoritative", true)
	v.SetDefault("reconcile.strict_state", false)
	v.SetDefault("reconcile.match_budget_ms", 250)
	v.SetDefault("reconcile.parse_concurrency", 4)
	v.SetDefault("retry.max_attempts", 2)
	v.SetDefault("retry.initial_backoff_ms", 200)
	v.SetDefault("retry.max_backoff_ms", 5000)
	v.SetDefault("server.port", 8080)
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

// Validate checks the settings a reconciliation run depends on.
func (c *Config) Validate() error {
	var problems []string
	if c.DatabaseURL == "" {
		problems = append(problems, "database_url is required (set CONGRESS_DATABASE_URL)")
	}
	if c.Reconcile.ApplyThreshold < 0 || c.Reconcile.ApplyThreshold > 100 {
		problems = append(problems, "reconcile.apply_threshold must be within [0, 100]")
	}
	if c.Reconcile.LockWaitSeconds < 0 {
		problems = append(problems, "reconcile.lock_wait_seconds must not be negative")
	}
	if c.Retry.MaxAttempts < 1 {
		problems = append(problems, "retry.max_attempts must be at least 1")
	}
	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
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
