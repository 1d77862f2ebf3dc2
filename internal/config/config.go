package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Shopify  ShopifyConfig  `mapstructure:"shopify"`
	Session  SessionConfig  `mapstructure:"session"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Email    EmailConfig    `mapstructure:"email"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// ShopifyConfig holds credentials for the order source.
type ShopifyConfig struct {
	StoreURL    string `mapstructure:"store_url"`
	AccessToken string `mapstructure:"access_token"`
	APIVersion  string `mapstructure:"api_version"`
}

// SessionConfig controls the browser session pool.
type SessionConfig struct {
	// MaxConcurrent bounds simultaneous browser sessions. Each session is a
	// full browser engine, so this stays small.
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// Mode selects browser process lifetime: "per-task" launches a fresh
	// browser for every unit of work, "shared" keeps one browser process and
	// opens an isolated tab per unit of work.
	Mode              string        `mapstructure:"mode"`
	Headless          bool          `mapstructure:"headless"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// TrackingConfig controls batch processing and status normalization.
type TrackingConfig struct {
	BatchSize int `mapstructure:"batch_size"`
	// TransitKeywords are substrings that rewrite a raw scraped status to
	// "In Transit" when the status does not already mention delivery.
	TransitKeywords []string      `mapstructure:"transit_keywords"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	CacheDisabled   bool          `mapstructure:"cache_disabled"`
}

// EmailConfig holds settings for report emails.
type EmailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// Load loads configuration from the environment with defaults.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may be fully populated already.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")

	v.SetDefault("database.path", "./tracking.db")

	v.SetDefault("logging.level", "info")

	v.SetDefault("shopify.api_version", "2024-01")

	v.SetDefault("session.max_concurrent", 2)
	v.SetDefault("session.mode", "per-task")
	v.SetDefault("session.headless", true)
	v.SetDefault("session.navigation_timeout", "45s")
	v.SetDefault("session.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	v.SetDefault("tracking.batch_size", 5)
	v.SetDefault("tracking.transit_keywords", []string{
		"dispatched",
		"shipment received",
		"received at",
		"mother hub",
	})
	v.SetDefault("tracking.cache_ttl", "30m")
	v.SetDefault("tracking.cache_disabled", false)

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_port", 587)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("ORDER_TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	envBindings := map[string]string{
		"server.host":                "SERVER_HOST",
		"server.port":                "SERVER_PORT",
		"database.path":              "DATABASE_PATH",
		"logging.level":              "LOG_LEVEL",
		"shopify.store_url":          "SHOPIFY_STORE_URL",
		"shopify.access_token":       "SHOPIFY_ACCESS_TOKEN",
		"shopify.api_version":        "SHOPIFY_API_VERSION",
		"session.max_concurrent":     "SESSION_MAX_CONCURRENT",
		"session.mode":               "SESSION_MODE",
		"session.headless":           "SESSION_HEADLESS",
		"session.navigation_timeout": "SESSION_NAVIGATION_TIMEOUT",
		"session.user_agent":         "SESSION_USER_AGENT",
		"tracking.batch_size":        "TRACKING_BATCH_SIZE",
		"tracking.cache_ttl":         "TRACKING_CACHE_TTL",
		"tracking.cache_disabled":    "TRACKING_CACHE_DISABLED",
		"email.enabled":              "EMAIL_ENABLED",
		"email.smtp_host":            "EMAIL_SMTP_HOST",
		"email.smtp_port":            "EMAIL_SMTP_PORT",
		"email.username":             "EMAIL_USERNAME",
		"email.password":             "EMAIL_PASSWORD",
		"email.from":                 "EMAIL_FROM",
		"email.to":                   "EMAIL_TO",
	}

	for configKey, envSuffix := range envBindings {
		// Bind both the prefixed name and the bare legacy name so existing
		// deployment .env files keep working.
		_ = v.BindEnv(configKey, "ORDER_TRACKER_"+envSuffix, envSuffix)
	}
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	isValidLogLevel := false
	for _, level := range validLogLevels {
		if c.Logging.Level == level {
			isValidLogLevel = true
			break
		}
	}
	if !isValidLogLevel {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.Logging.Level)
	}

	if c.Session.MaxConcurrent < 1 {
		return fmt.Errorf("session max concurrent must be at least 1")
	}
	if c.Session.Mode != "per-task" && c.Session.Mode != "shared" {
		return fmt.Errorf("invalid session mode: %s (must be per-task or shared)", c.Session.Mode)
	}
	if c.Session.NavigationTimeout <= 0 {
		return fmt.Errorf("session navigation timeout must be positive")
	}

	if c.Tracking.BatchSize < 1 {
		return fmt.Errorf("tracking batch size must be at least 1")
	}
	if c.Tracking.CacheTTL <= 0 {
		return fmt.Errorf("tracking cache TTL must be positive")
	}

	if c.Email.Enabled {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("email smtp host required when email is enabled")
		}
		if c.Email.From == "" || len(c.Email.To) == 0 {
			return fmt.Errorf("email from and to addresses required when email is enabled")
		}
	}

	return nil
}

// Address returns the full server address.
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}
