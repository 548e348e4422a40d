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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Session    SessionConfig    `yaml:"session" mapstructure:"session"`
	Resolver   ResolverConfig   `yaml:"resolver" mapstructure:"resolver"`
	Documents  DocumentsConfig  `yaml:"documents" mapstructure:"documents"`
	Intent     IntentConfig     `yaml:"intent" mapstructure:"intent"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the record store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP host.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RatePerSecond  float64  `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SessionConfig bounds conversation turns.
type SessionConfig struct {
	ResolveTimeoutSecs  int `yaml:"resolve_timeout_secs" mapstructure:"resolve_timeout_secs"`
	CommitTimeoutSecs   int `yaml:"commit_timeout_secs" mapstructure:"commit_timeout_secs"`
	DocumentTimeoutSecs int `yaml:"document_timeout_secs" mapstructure:"document_timeout_secs"`
	IdleTimeoutMins     int `yaml:"idle_timeout_mins" mapstructure:"idle_timeout_mins"`
	SweepIntervalSecs   int `yaml:"sweep_interval_secs" mapstructure:"sweep_interval_secs"`
}

// ResolveTimeout bounds entity resolution for one turn.
func (c SessionConfig) ResolveTimeout() time.Duration { return secs(c.ResolveTimeoutSecs) }

// CommitTimeout bounds persisting an order.
func (c SessionConfig) CommitTimeout() time.Duration { return secs(c.CommitTimeoutSecs) }

// DocumentTimeout bounds document generation.
func (c SessionConfig) DocumentTimeout() time.Duration { return secs(c.DocumentTimeoutSecs) }

// IdleTimeout is how long an untouched session is kept.
func (c SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMins) * time.Minute
}

// SweepInterval is how often idle sessions are evicted.
func (c SessionConfig) SweepInterval() time.Duration { return secs(c.SweepIntervalSecs) }

// ResolverConfig tunes entity resolution.
type ResolverConfig struct {
	SearchLimit         int `yaml:"search_limit" mapstructure:"search_limit"`
	ReadAttempts        int `yaml:"read_attempts" mapstructure:"read_attempts"`
	RetryBackoffMs      int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// DocumentsConfig configures generated order documents.
type DocumentsConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// IntentConfig configures turn classification.
type IntentConfig struct {
	// LexiconPath optionally replaces the built-in keyword lexicon.
	LexiconPath string `yaml:"lexicon_path" mapstructure:"lexicon_path"`
}

// MonitoringConfig configures operator alerts.
type MonitoringConfig struct {
	WebhookURL       string `yaml:"webhook_url" mapstructure:"webhook_url"`
	AlertTimeoutSecs int    `yaml:"alert_timeout_secs" mapstructure:"alert_timeout_secs"`
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PAUTAPRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pautapro.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 2.0)
	v.SetDefault("server.rate_burst", 5)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("session.resolve_timeout_secs", 10)
	v.SetDefault("session.commit_timeout_secs", 15)
	v.SetDefault("session.document_timeout_secs", 30)
	v.SetDefault("session.idle_timeout_mins", 30)
	v.SetDefault("session.sweep_interval_secs", 60)
	v.SetDefault("resolver.search_limit", 5)
	v.SetDefault("resolver.read_attempts", 1)
	v.SetDefault("resolver.retry_backoff_ms", 50)
	v.SetDefault("resolver.breaker_threshold", 0)
	v.SetDefault("resolver.breaker_cooldown_secs", 10)
	v.SetDefault("documents.output_dir", "documentos")
	v.SetDefault("monitoring.alert_timeout_secs", 10)

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

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required")
	}
	if c.Resolver.SearchLimit < 1 {
		return eris.New("config: resolver.search_limit must be at least 1")
	}
	if c.Resolver.ReadAttempts < 1 {
		return eris.New("config: resolver.read_attempts must be at least 1")
	}

	switch mode {
	case "serve":
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			return eris.Errorf("config: server.port %d out of range", c.Server.Port)
		}
		if c.Server.RatePerSecond < 0 {
			return eris.New("config: server.rate_per_second must not be negative")
		}
		fallthrough
	case "chat":
		if c.Documents.OutputDir == "" {
			return eris.New("config: documents.output_dir is required")
		}
		if c.Session.ResolveTimeoutSecs <= 0 || c.Session.CommitTimeoutSecs <= 0 || c.Session.DocumentTimeoutSecs <= 0 {
			return eris.New("config: session timeouts must be positive")
		}
	case "migrate", "seed", "extract":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
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
