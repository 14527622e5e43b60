package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mappingforchange/geokey-airquality/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Host     HostConfig     `yaml:"host" mapstructure:"host"`
	Auth     AuthConfig     `yaml:"auth" mapstructure:"auth"`
	Mail     MailConfig     `yaml:"mail" mapstructure:"mail"`
	Reminder ReminderConfig `yaml:"reminder" mapstructure:"reminder"`
	Display  DisplayConfig  `yaml:"display" mapstructure:"display"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ShutdownTimeout int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// HostConfig configures the host platform API client.
type HostConfig struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Token       string        `yaml:"token" mapstructure:"token"`
	TimeoutSecs int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
	Retry       RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Breaker     BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// RetryConfig configures retries of transient host failures.
type RetryConfig struct {
	Attempts     int `yaml:"attempts" mapstructure:"attempts"`
	BackoffMS    int `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	MaxBackoffMS int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// BreakerConfig configures the host circuit breaker.
type BreakerConfig struct {
	Threshold    int `yaml:"threshold" mapstructure:"threshold"`
	CooldownSecs int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// AuthConfig configures bearer tokens.
type AuthConfig struct {
	Secret   string `yaml:"secret" mapstructure:"secret"`
	Issuer   string `yaml:"issuer" mapstructure:"issuer"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// TTL returns the token lifetime.
func (c AuthConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// MailConfig configures email delivery. Driver "log" keeps messages in
// memory and logs them instead of sending.
type MailConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	From     string `yaml:"from" mapstructure:"from"`
}

// ReminderConfig configures the in-process reminder schedule of serve.
type ReminderConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
}

// DisplayConfig configures how times are shown on sheets and in emails.
type DisplayConfig struct {
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// Location loads the display timezone.
func (c DisplayConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: load timezone %q", c.Timezone)
	}
	return loc, nil
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
	v.SetEnvPrefix("AIRQUALITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout_secs", 15)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("host.base_url", "http://localhost:8000")
	v.SetDefault("host.token", "")
	v.SetDefault("host.timeout_secs", 15)
	v.SetDefault("host.rate_limit", 20)
	v.SetDefault("host.retry.attempts", 3)
	v.SetDefault("host.retry.backoff_ms", 250)
	v.SetDefault("host.retry.max_backoff_ms", 5000)
	v.SetDefault("host.breaker.threshold", 5)
	v.SetDefault("host.breaker.cooldown_secs", 30)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "airquality")
	v.SetDefault("auth.ttl_hours", 24)
	v.SetDefault("mail.driver", "smtp")
	v.SetDefault("mail.host", "localhost")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("reminder.enabled", false)
	v.SetDefault("reminder.schedule", "0 0 8 * * *")
	v.SetDefault("display.timezone", "Europe/London")
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

// Validate checks the settings a command needs. Modes: serve, migrate,
// check-measurements, export, token.
func (c *Config) Validate(mode string) error {
	var errs []string
	requireStore := func() {
		switch c.Store.Driver {
		case "postgres", "sqlite":
		default:
			errs = append(errs, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}
	requireHost := func() {
		if c.Host.BaseURL == "" {
			errs = append(errs, "host.base_url is required")
		}
		if c.Host.Token == "" {
			errs = append(errs, "host.token is required")
		}
		if c.Host.Retry.Attempts < 1 || c.Host.Retry.Attempts > 10 {
			errs = append(errs, "host.retry.attempts must be between 1 and 10")
		}
	}
	requireMail := func() {
		switch c.Mail.Driver {
		case "log":
		case "smtp":
			if c.Mail.Host == "" {
				errs = append(errs, "mail.host is required")
			}
			if c.Mail.From == "" {
				errs = append(errs, "mail.from is required")
			}
		default:
			errs = append(errs, fmt.Sprintf("mail.driver must be smtp or log, got %q", c.Mail.Driver))
		}
	}
	requireTimezone := func() {
		if _, err := c.Display.Location(); err != nil {
			errs = append(errs, fmt.Sprintf("display.timezone %q is not a known zone", c.Display.Timezone))
		}
	}

	switch mode {
	case "serve":
		requireStore()
		requireHost()
		requireMail()
		requireTimezone()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Auth.Secret == "" {
			errs = append(errs, "auth.secret is required")
		}
		if c.Reminder.Enabled && c.Reminder.Schedule == "" {
			errs = append(errs, "reminder.schedule is required when reminders are enabled")
		}
	case "migrate":
		requireStore()
	case "check-measurements":
		requireStore()
		requireHost()
		requireMail()
		requireTimezone()
	case "export":
		requireStore()
		requireHost()
		requireTimezone()
	case "token":
		if c.Auth.Secret == "" {
			errs = append(errs, "auth.secret is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
