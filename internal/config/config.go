// Package config loads and validates the agent configuration from a YAML
// file and VORIO_* environment overrides. The rest of the system treats the
// result as already-validated input.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ConfigurationError means invalid or missing setup input. It surfaces at
// startup only and is fatal.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

type Config struct {
	Controller ControllerConfig `mapstructure:"controller"`
	Cloud      CloudConfig      `mapstructure:"cloud"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Log        LogConfig        `mapstructure:"log"`
	Web        WebConfig        `mapstructure:"web"`
}

type ControllerConfig struct {
	Type               string `mapstructure:"type"`
	URL                string `mapstructure:"url"`
	Site               string `mapstructure:"site"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	APIKey             string `mapstructure:"api_key"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
}

type CloudConfig struct {
	URL            string `mapstructure:"url"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type SyncConfig struct {
	IntervalSeconds    int `mapstructure:"interval_seconds"`
	CommandPollSeconds int `mapstructure:"command_poll_seconds"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type WebConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load reads the configuration from the given file (optional when every value
// comes from the environment) and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("controller.type", "unifi")
	v.SetDefault("controller.site", "default")
	v.SetDefault("controller.timeout_seconds", 30)
	// Empty defaults register the keys so environment-only values survive
	// Unmarshal.
	v.SetDefault("controller.url", "")
	v.SetDefault("controller.username", "")
	v.SetDefault("controller.password", "")
	v.SetDefault("controller.api_key", "")
	v.SetDefault("controller.insecure_skip_verify", false)
	v.SetDefault("cloud.url", "")
	v.SetDefault("cloud.token", "")
	v.SetDefault("cloud.timeout_seconds", 30)
	v.SetDefault("log.file", "")
	v.SetDefault("sync.interval_seconds", 120)
	v.SetDefault("sync.command_poll_seconds", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("web.enabled", true)
	v.SetDefault("web.listen_addr", "127.0.0.1:9090")

	v.SetEnvPrefix("VORIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded configuration for construction-time errors.
func (c *Config) Validate() error {
	if c.Controller.Type != "unifi" {
		return &ConfigurationError{Field: "controller.type", Message: fmt.Sprintf("unsupported controller type %q", c.Controller.Type)}
	}
	if err := requireHTTPURL("controller.url", c.Controller.URL); err != nil {
		return err
	}

	hasKey := c.Controller.APIKey != ""
	hasCreds := c.Controller.Username != "" && c.Controller.Password != ""
	if !hasKey && !hasCreds {
		return &ConfigurationError{Field: "controller", Message: "either api_key or username + password must be set"}
	}
	if hasKey && hasCreds {
		return &ConfigurationError{Field: "controller", Message: "api_key and username/password are mutually exclusive"}
	}

	if err := requireHTTPURL("cloud.url", c.Cloud.URL); err != nil {
		return err
	}
	if c.Cloud.Token == "" {
		return &ConfigurationError{Field: "cloud.token", Message: "bearer token is required"}
	}

	if c.Sync.IntervalSeconds <= 0 {
		return &ConfigurationError{Field: "sync.interval_seconds", Message: "must be positive"}
	}
	if c.Sync.CommandPollSeconds <= 0 {
		return &ConfigurationError{Field: "sync.command_poll_seconds", Message: "must be positive"}
	}

	if c.Web.Enabled && c.Web.ListenAddr == "" {
		return &ConfigurationError{Field: "web.listen_addr", Message: "required when web.enabled is true"}
	}

	return nil
}

func requireHTTPURL(field, value string) error {
	if value == "" {
		return &ConfigurationError{Field: field, Message: "is required"}
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return &ConfigurationError{Field: field, Message: "must start with http:// or https://"}
	}
	return nil
}
