package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	APIURL         string        `mapstructure:"api_url"`
	SessionPath    string        `mapstructure:"session_path"`
	ActivePoll     time.Duration `mapstructure:"active_poll"`
	IdlePoll       time.Duration `mapstructure:"idle_poll"`
	UsageRefresh   time.Duration `mapstructure:"usage_refresh"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	DevServerPort  int           `mapstructure:"dev_server_port"`
	DevServerDB    string        `mapstructure:"dev_server_db"`
}

var Default = Config{
	APIURL:         "http://localhost:8000",
	ActivePoll:     5 * time.Second,
	IdlePoll:       15 * time.Second,
	UsageRefresh:   30 * time.Second,
	RequestTimeout: 15 * time.Second,
	DevServerPort:  8000,
	DevServerDB:    "telecopy-dev.db",
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home dir: %w", err)
	}

	configDir := filepath.Join(home, ".telecopy")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)

	viper.SetDefault("api_url", Default.APIURL)
	viper.SetDefault("session_path", filepath.Join(configDir, "session.json"))
	viper.SetDefault("active_poll", Default.ActivePoll)
	viper.SetDefault("idle_poll", Default.IdlePoll)
	viper.SetDefault("usage_refresh", Default.UsageRefresh)
	viper.SetDefault("request_timeout", Default.RequestTimeout)
	viper.SetDefault("dev_server_port", Default.DevServerPort)
	viper.SetDefault("dev_server_db", filepath.Join(configDir, Default.DevServerDB))

	viper.SetEnvPrefix("TELECOPY")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
