package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Nationalize NationalizeConfig `yaml:"nationalize" mapstructure:"nationalize"`
	Sync        SyncConfig        `yaml:"sync" mapstructure:"sync"`
	Notify      NotifyConfig      `yaml:"notify" mapstructure:"notify"`
	Salesforce  SalesforceConfig  `yaml:"salesforce" mapstructure:"salesforce"`
	AMQP        AMQPConfig        `yaml:"amqp" mapstructure:"amqp"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the lead store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Database    string `yaml:"database" mapstructure:"database"` // mongo only
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// NationalizeConfig configures the nationality lookup client.
type NationalizeConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey         string  `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxConcurrency int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// SyncConfig configures the sync trigger and its shared secret.
type SyncConfig struct {
	Secret   string `yaml:"secret" mapstructure:"secret"`
	APIURL   string `yaml:"api_url" mapstructure:"api_url"`
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
}

// NotifyConfig selects where synced leads are sent.
type NotifyConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID  string  `yaml:"client_id" mapstructure:"client_id"`
	Username  string  `yaml:"username" mapstructure:"username"`
	KeyPath   string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL  string  `yaml:"login_url" mapstructure:"login_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AMQPConfig configures the RabbitMQ notifier.
type AMQPConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	Exchange string `yaml:"exchange" mapstructure:"exchange"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, the config file and the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// CRON_SECRET is what existing schedulers already export.
	if err := v.BindEnv("sync.secret", "LEADSYNC_SYNC_SECRET", "CRON_SECRET"); err != nil {
		return nil, eris.Wrap(err, "config: bind sync secret")
	}

	// Defaults. Every key needs one, even if empty, or Unmarshal will not
	// pick it up from the environment.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.database", "leadsync")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("nationalize.base_url", "https://api.nationalize.io")
	v.SetDefault("nationalize.api_key", "")
	v.SetDefault("nationalize.timeout_secs", 10)
	v.SetDefault("nationalize.rate_limit", 0)
	v.SetDefault("nationalize.max_concurrency", 0)
	v.SetDefault("sync.secret", "")
	v.SetDefault("sync.api_url", "http://localhost:3000")
	v.SetDefault("sync.schedule", "@every 1m")
	v.SetDefault("notify.driver", "log")
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.key_path", "")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 5)
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "leads")
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

// Validate checks the settings a command needs before it starts. Mode is
// one of "serve", "sync", "trigger", "enrich" or "leads".
func (c *Config) Validate(mode string) error {
	var problems []string

	storeChecks := func() {
		switch c.Store.Driver {
		case "postgres", "mongo":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required")
			}
		case "sqlite":
		default:
			problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
		}
	}

	notifyChecks := func() {
		switch c.Notify.Driver {
		case "log":
		case "salesforce":
			if c.Salesforce.ClientID == "" {
				problems = append(problems, "salesforce.client_id is required")
			}
			if c.Salesforce.KeyPath == "" {
				problems = append(problems, "salesforce.key_path is required")
			}
		case "amqp":
			if c.AMQP.URL == "" {
				problems = append(problems, "amqp.url is required")
			}
		default:
			problems = append(problems, fmt.Sprintf("notify.driver %q is not supported", c.Notify.Driver))
		}
	}

	switch mode {
	case "serve":
		storeChecks()
		notifyChecks()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Nationalize.BaseURL == "" {
			problems = append(problems, "nationalize.base_url is required")
		}
		if c.Nationalize.MaxConcurrency < 0 {
			problems = append(problems, "nationalize.max_concurrency must be >= 0")
		}
	case "sync":
		storeChecks()
		notifyChecks()
	case "enrich":
		storeChecks()
		if c.Nationalize.BaseURL == "" {
			problems = append(problems, "nationalize.base_url is required")
		}
	case "leads":
		storeChecks()
	case "trigger":
		if c.Sync.Secret == "" {
			problems = append(problems, "sync.secret is required (CRON_SECRET)")
		}
		if c.Sync.APIURL == "" {
			problems = append(problems, "sync.api_url is required")
		}
		if c.Sync.Schedule == "" {
			problems = append(problems, "sync.schedule is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
