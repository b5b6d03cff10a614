package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Admin        AdminConfig        `yaml:"admin"`
	History      HistoryConfig      `yaml:"history"`
	Unmatched    UnmatchedConfig    `yaml:"unmatched"`
	Faults       FaultsConfig       `yaml:"faults"`
	Delay        DelayConfig        `yaml:"delay"`
	Expectations ExpectationsConfig `yaml:"expectations"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int    `yaml:"port"`
	Host         string `yaml:"host"`
	MaxBodyBytes int64  `yaml:"maxBodyBytes"` // Largest request body recorded
}

// AdminConfig holds admin API configuration
type AdminConfig struct {
	Prefix string `yaml:"prefix"` // Path prefix reserved for the admin API
}

// HistoryConfig holds request history configuration
type HistoryConfig struct {
	MaxRecords int `yaml:"maxRecords"` // 0 keeps every request
}

// UnmatchedConfig controls the response to requests no expectation matches
type UnmatchedConfig struct {
	Status      int    `yaml:"status"`
	Body        string `yaml:"body"`
	Diagnostics bool   `yaml:"diagnostics"` // Report the closest expectations
	Closest     int    `yaml:"closest"`
}

// FaultsConfig holds fault injection configuration
type FaultsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DelayConfig holds response delay configuration
type DelayConfig struct {
	Max time.Duration `yaml:"max"` // 0 means uncapped
}

// ExpectationsConfig holds seed file configuration
type ExpectationsConfig struct {
	Path string `yaml:"path"` // File, directory or glob of JSON/YAML expectation files
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			MaxBodyBytes: 10 << 20,
		},
		Admin: AdminConfig{
			Prefix: "/__mock__",
		},
		History: HistoryConfig{
			MaxRecords: 10000,
		},
		Unmatched: UnmatchedConfig{
			Status:      http.StatusNotFound,
			Body:        "NO_STUB_MATCH_FOUND",
			Diagnostics: false,
			Closest:     3,
		},
		Faults: FaultsConfig{
			Enabled: true,
		},
		Delay: DelayConfig{
			Max: 30 * time.Second,
		},
		Expectations: ExpectationsConfig{
			Path: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// SetDefaults registers every default value with v so environment variables
// and flags can override keys that are absent from the config file.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.maxBodyBytes", d.Server.MaxBodyBytes)
	v.SetDefault("admin.prefix", d.Admin.Prefix)
	v.SetDefault("history.maxRecords", d.History.MaxRecords)
	v.SetDefault("unmatched.status", d.Unmatched.Status)
	v.SetDefault("unmatched.body", d.Unmatched.Body)
	v.SetDefault("unmatched.diagnostics", d.Unmatched.Diagnostics)
	v.SetDefault("unmatched.closest", d.Unmatched.Closest)
	v.SetDefault("faults.enabled", d.Faults.Enabled)
	v.SetDefault("delay.max", d.Delay.Max)
	v.SetDefault("expectations.path", d.Expectations.Path)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// FromViper builds the configuration from v
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetInt("server.port"),
			Host:         v.GetString("server.host"),
			MaxBodyBytes: v.GetInt64("server.maxBodyBytes"),
		},
		Admin: AdminConfig{
			Prefix: v.GetString("admin.prefix"),
		},
		History: HistoryConfig{
			MaxRecords: v.GetInt("history.maxRecords"),
		},
		Unmatched: UnmatchedConfig{
			Status:      v.GetInt("unmatched.status"),
			Body:        v.GetString("unmatched.body"),
			Diagnostics: v.GetBool("unmatched.diagnostics"),
			Closest:     v.GetInt("unmatched.closest"),
		},
		Faults: FaultsConfig{
			Enabled: v.GetBool("faults.enabled"),
		},
		Delay: DelayConfig{
			Max: v.GetDuration("delay.max"),
		},
		Expectations: ExpectationsConfig{
			Path: v.GetString("expectations.path"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration and normalizes the admin prefix
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port)
	}
	if c.History.MaxRecords < 0 {
		return fmt.Errorf("history.maxRecords must not be negative, got %d", c.History.MaxRecords)
	}
	if c.Unmatched.Status < 100 || c.Unmatched.Status > 599 {
		return fmt.Errorf("unmatched.status must be a valid HTTP status, got %d", c.Unmatched.Status)
	}
	if c.Delay.Max < 0 {
		return fmt.Errorf("delay.max must not be negative, got %v", c.Delay.Max)
	}

	prefix := "/" + strings.Trim(c.Admin.Prefix, "/")
	if prefix == "/" {
		return fmt.Errorf("admin.prefix must not be empty or /")
	}
	c.Admin.Prefix = prefix

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// Debug reports whether per-request debug logging is on
func (c *Config) Debug() bool {
	return strings.EqualFold(c.Logging.Level, "debug")
}
