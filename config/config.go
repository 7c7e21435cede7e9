package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type PollConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Backoff      float64       `mapstructure:"backoff"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type Config struct {
	LoginURL      string        `mapstructure:"login_url"`
	APIVersion    string        `mapstructure:"api_version"`
	DBPath        string        `mapstructure:"db_path"`
	Poll          PollConfig    `mapstructure:"poll"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
}

var Default = Config{
	LoginURL:   "https://login.salesforce.com",
	APIVersion: "v60.0",
	DBPath:     "kinetic.db",
	Poll: PollConfig{
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Backoff:      1.5,
		Timeout:      10 * time.Minute,
	},
	WatchDebounce: 2 * time.Second,
}

func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}

	dir := filepath.Join(home, ".kinetic")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}

	return dir, nil
}

func Load() (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)

	viper.SetDefault("login_url", Default.LoginURL)
	viper.SetDefault("api_version", Default.APIVersion)
	viper.SetDefault("db_path", Default.DBPath)
	viper.SetDefault("poll.initial_delay", Default.Poll.InitialDelay)
	viper.SetDefault("poll.max_delay", Default.Poll.MaxDelay)
	viper.SetDefault("poll.backoff", Default.Poll.Backoff)
	viper.SetDefault("poll.timeout", Default.Poll.Timeout)
	viper.SetDefault("watch_debounce", Default.WatchDebounce)

	viper.SetEnvPrefix("KINETIC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if ok := errors.As(err, &notFound); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
