package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the console agent configuration
type Config struct {
	// Remote management API
	ServerURL string `mapstructure:"server_url"`

	// Transport retry policy
	MaxRetries int `mapstructure:"max_retries"`
	RetryDelay int `mapstructure:"retry_delay"` // milliseconds, grows linearly per attempt

	// Local console surface
	ListenAddr string `mapstructure:"listen_addr"`

	// Polling intervals (seconds)
	StatusInterval     int `mapstructure:"status_interval"`
	HealthInterval     int `mapstructure:"health_interval"`
	MetricsInterval    int `mapstructure:"metrics_interval"`
	StatisticsInterval int `mapstructure:"statistics_interval"`
	ServersInterval    int `mapstructure:"servers_interval"`

	// Local state (persisted session token)
	StatePath string `mapstructure:"state_path"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:          "http://127.0.0.1:8000",
		MaxRetries:         3,
		RetryDelay:         1000,
		ListenAddr:         "127.0.0.1:8765",
		StatusInterval:     60,
		HealthInterval:     120,
		MetricsInterval:    120,
		StatisticsInterval: 20,
		ServersInterval:    30,
		StatePath:          "./console.db",
		LogLevel:           "info",
		LogFile:            "",
	}
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/mcp-console")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".mcp-console"))
		}
	}

	v.SetEnvPrefix("MCP_CONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server_url", cfg.ServerURL)
	v.SetDefault("max_retries", cfg.MaxRetries)
	v.SetDefault("retry_delay", cfg.RetryDelay)
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("status_interval", cfg.StatusInterval)
	v.SetDefault("health_interval", cfg.HealthInterval)
	v.SetDefault("metrics_interval", cfg.MetricsInterval)
	v.SetDefault("statistics_interval", cfg.StatisticsInterval)
	v.SetDefault("servers_interval", cfg.ServersInterval)
	v.SetDefault("state_path", cfg.StatePath)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_file", cfg.LogFile)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}

	if c.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be positive")
	}

	if c.RetryDelay <= 0 {
		return fmt.Errorf("retry_delay must be positive")
	}

	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}

	intervals := map[string]int{
		"status_interval":     c.StatusInterval,
		"health_interval":     c.HealthInterval,
		"metrics_interval":    c.MetricsInterval,
		"statistics_interval": c.StatisticsInterval,
		"servers_interval":    c.ServersInterval,
	}
	for name, value := range intervals {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}

	return nil
}

// RetryBaseDelay returns the retry base delay as a duration
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryDelay) * time.Millisecond
}
