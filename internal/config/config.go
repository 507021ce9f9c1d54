// Package config manages application configuration from environment
// variables, an optional config file, and default values.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration. Values can be set via
// environment variables prefixed with STUDIO_ (e.g. STUDIO_TELEGRAM_TOKEN)
// or through config.yaml. The Telegram token and webhook secret here are
// fallbacks: values persisted in the settings store win when non-empty.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"min=1s,max=5m"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"min=1s,max=5m"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s,max=5m"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type TelegramConfig struct {
	Token         string        `mapstructure:"token"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	NotifyTimeout time.Duration `mapstructure:"notify_timeout" validate:"min=1s,max=30s"`
	PreviewLength int           `mapstructure:"preview_length" validate:"min=10,max=1000"`
}

type GeminiConfig struct {
	Token   string        `mapstructure:"token"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=1s,max=5m"`
}

type SchedulerConfig struct {
	MaintenanceCron string `mapstructure:"maintenance_cron" validate:"required"`
}

// Load loads and validates configuration from:
// 1. Default values
// 2. config.yaml file
// 3. STUDIO_* environment variables
func Load() (*Config, error) {
	setDefaults()

	if err := readConfig(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// readConfig initializes and loads the configuration using viper. A missing
// config file is fine; defaults and environment variables still apply.
func readConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("STUDIO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Secrets default to empty so AutomaticEnv can see the keys; viper only
	// resolves env vars for keys it already knows about.
	viper.SetDefault("auth.jwt_secret", "")

	viper.SetDefault("database.path", "support.db")

	viper.SetDefault("telegram.token", "")
	viper.SetDefault("telegram.webhook_secret", "")
	viper.SetDefault("telegram.notify_timeout", 5*time.Second)
	viper.SetDefault("telegram.preview_length", 120)

	viper.SetDefault("gemini.token", "")
	viper.SetDefault("gemini.model", "gemini-2.0-flash")
	viper.SetDefault("gemini.timeout", 30*time.Second)

	// Nightly VACUUM, low-traffic hour.
	viper.SetDefault("scheduler.maintenance_cron", "0 4 * * *")
}
