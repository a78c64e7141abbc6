// Package config provides configuration loading, validation, and defaults
// for dadbot. It reads a YAML file, applies DADBOT_* environment overrides,
// and validates the result.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	BackendMatrix   = "matrix"
	BackendTelegram = "telegram"

	envPrefix = "DADBOT"
)

// Config holds the complete application configuration.
type Config struct {
	Chat      ChatConfig      `mapstructure:"chat"`
	Matrix    MatrixConfig    `mapstructure:"matrix"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Responder ResponderConfig `mapstructure:"responder"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ChatConfig selects the chat network.
type ChatConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=matrix telegram"`
}

// MatrixConfig holds homeserver connection settings.
type MatrixConfig struct {
	Homeserver         string `mapstructure:"homeserver"           validate:"omitempty,url"`
	Token              string `mapstructure:"token"`
	AutoJoin           bool   `mapstructure:"auto_join"`
	SkipInitialBacklog bool   `mapstructure:"skip_initial_backlog"`
}

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// ResponderConfig tunes which messages get a reply.
type ResponderConfig struct {
	// MaxMessageAge drops messages older than this at processing time. Zero disables the check.
	MaxMessageAge time.Duration `mapstructure:"max_message_age" validate:"min=0"`
}

// DatabaseConfig holds correlation store settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
	// Retention is how long correlations are kept. Zero keeps them forever.
	Retention time.Duration `mapstructure:"retention" validate:"min=0"`
}

// SchedulerConfig lists scheduled tasks by registry name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig configures a single scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// LoggerConfig controls log output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

var defaults = map[string]any{
	"chat.backend": BackendMatrix,

	"matrix.homeserver":           "",
	"matrix.token":                "",
	"matrix.auto_join":            true,
	"matrix.skip_initial_backlog": true,

	"telegram.token": "",

	"responder.max_message_age": time.Duration(0),

	"database.path":      "dadbot.db",
	"database.retention": time.Duration(0),

	"scheduler.tasks.correlation_cleanup.enabled":  true,
	"scheduler.tasks.correlation_cleanup.schedule": "0 0 3 * * *",
	"scheduler.tasks.sql_maintenance.enabled":      true,
	"scheduler.tasks.sql_maintenance.schedule":     "0 30 3 * * 0",

	"logger.level": "info",
	"logger.json":  false,
}

// LoadConfig reads configuration from path, applies defaults for missing values
// and DADBOT_* environment overrides, and validates the result.
// A missing file is not an error; defaults and the environment are used instead.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			slog.Info("Configuration file not found, using defaults and environment", "path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field constraints and that the selected backend has credentials.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.Chat.Backend {
	case BackendMatrix:
		if c.Matrix.Homeserver == "" || c.Matrix.Token == "" {
			return errors.New("invalid configuration: matrix.homeserver and matrix.token are required for the matrix backend")
		}
	case BackendTelegram:
		if c.Telegram.Token == "" {
			return errors.New("invalid configuration: telegram.token is required for the telegram backend")
		}
	}

	return nil
}
