package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the backend endpoint settings. A single base URL
// serves both the REST API (http/https) and the push channel (ws/wss).
type ServerConfig struct {
	// BaseURL is the root URL of the backend (e.g. https://campus.example.com).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// RequestTimeoutSec bounds every HTTP request issued by the client.
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
}

// RequestTimeout returns the per-request deadline as a duration.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// PushConfig holds the notification channel settings.
type PushConfig struct {
	// Capacity bounds the in-memory notification queue.
	Capacity int `mapstructure:"capacity" yaml:"capacity"`

	// ToastSeconds is how long a toast stays on screen.
	ToastSeconds int `mapstructure:"toast_seconds" yaml:"toast_seconds"`

	// BackoffInitialSec is the delay before the first reconnect attempt.
	BackoffInitialSec int `mapstructure:"backoff_initial_sec" yaml:"backoff_initial_sec"`

	// BackoffMaxSec caps the reconnect delay.
	BackoffMaxSec int `mapstructure:"backoff_max_sec" yaml:"backoff_max_sec"`

	// BackoffMultiplier is the per-attempt delay growth factor.
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`
}

// StorageConfig holds local persistence paths.
type StorageConfig struct {
	// DBPath is the sqlite file holding notification history.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// KeyringDir is the fallback directory for the file keyring backend.
	KeyringDir string `mapstructure:"keyring_dir" yaml:"keyring_dir"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Push    PushConfig    `mapstructure:"push" yaml:"push"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/campus/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "campus", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "campus")

	return &AppConfig{
		Server: ServerConfig{
			BaseURL:           "http://localhost:8000",
			RequestTimeoutSec: 10,
		},
		Push: PushConfig{
			Capacity:          50,
			ToastSeconds:      4,
			BackoffInitialSec: 1,
			BackoffMaxSec:     30,
			BackoffMultiplier: 2.0,
		},
		Storage: StorageConfig{
			DBPath:     filepath.Join(dataDir, "campus.db"),
			KeyringDir: filepath.Join(home, ".config", "campus", "credentials"),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := defaultAppConfig()

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("server.base_url", defaults.Server.BaseURL)
	v.SetDefault("server.request_timeout_sec", defaults.Server.RequestTimeoutSec)
	v.SetDefault("push.capacity", defaults.Push.Capacity)
	v.SetDefault("push.toast_seconds", defaults.Push.ToastSeconds)
	v.SetDefault("push.backoff_initial_sec", defaults.Push.BackoffInitialSec)
	v.SetDefault("push.backoff_max_sec", defaults.Push.BackoffMaxSec)
	v.SetDefault("push.backoff_multiplier", defaults.Push.BackoffMultiplier)
	v.SetDefault("storage.db_path", defaults.Storage.DBPath)
	v.SetDefault("storage.keyring_dir", defaults.Storage.KeyringDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("push", cfg.Push)
	v.Set("storage", cfg.Storage)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
