package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AIConfig holds settings for the local language-model backend.
type AIConfig struct {
	// Host is the base URL of the Ollama-compatible API.
	Host string `mapstructure:"host" yaml:"host"`

	// Model is used when a call does not name one explicitly.
	Model string `mapstructure:"model" yaml:"model"`

	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// Concurrency bounds how many emails are enriched at once.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`

	// RequestsPerSecond throttles backend calls; zero disables throttling.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
}

// Timeout returns the per-call backend timeout.
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// IMAPConfig holds session timeouts.
type IMAPConfig struct {
	DialTimeoutSec    int  `mapstructure:"dial_timeout_sec" yaml:"dial_timeout_sec"`
	CommandTimeoutSec int  `mapstructure:"command_timeout_sec" yaml:"command_timeout_sec"`
	SSL               bool `mapstructure:"ssl" yaml:"ssl"`
}

// SyncConfig controls periodic fetching.
type SyncConfig struct {
	PollIntervalSec int  `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	MaxEmails       int  `mapstructure:"max_emails" yaml:"max_emails"`
	MarkAsRead      bool `mapstructure:"mark_as_read" yaml:"mark_as_read"`

	// LookbackDays sets the SINCE date of each periodic fetch.
	LookbackDays int `mapstructure:"lookback_days" yaml:"lookback_days"`
}

// RedisConfig enables the cross-process dedup claim when Addr is set.
type RedisConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`
	Password    string `mapstructure:"password" yaml:"password"`
	DB          int    `mapstructure:"db" yaml:"db"`
	ClaimTTLSec int    `mapstructure:"claim_ttl_sec" yaml:"claim_ttl_sec"`
}

// AMQPConfig enables event publishing when URL is set.
type AMQPConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Exchange string `mapstructure:"exchange" yaml:"exchange"`
}

// MetricsConfig is the listen address of the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// CredentialConfig configures the keyring file backend fallback.
type CredentialConfig struct {
	FileDir string `mapstructure:"file_dir" yaml:"file_dir"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database    DatabaseConfig   `mapstructure:"database" yaml:"database"`
	AI          AIConfig         `mapstructure:"ai" yaml:"ai"`
	IMAP        IMAPConfig       `mapstructure:"imap" yaml:"imap"`
	Sync        SyncConfig       `mapstructure:"sync" yaml:"sync"`
	Redis       RedisConfig      `mapstructure:"redis" yaml:"redis"`
	AMQP        AMQPConfig       `mapstructure:"amqp" yaml:"amqp"`
	Metrics     MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Log         LogConfig        `mapstructure:"log" yaml:"log"`
	Credentials CredentialConfig `mapstructure:"credentials" yaml:"credentials"`
}

// configDir returns ~/.config/mailtriage, or the working directory when the
// home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailtriage")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailtriage/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	dir := configDir()
	v.SetDefault("database.path", filepath.Join(dir, "mailtriage.db"))
	v.SetDefault("ai.host", "http://localhost:11434")
	v.SetDefault("ai.model", "deepseek-r1:1.5b")
	v.SetDefault("ai.timeout_sec", 60)
	v.SetDefault("ai.concurrency", 4)
	v.SetDefault("ai.requests_per_second", 0)
	v.SetDefault("ai.temperature", 0.1)
	v.SetDefault("imap.dial_timeout_sec", 30)
	v.SetDefault("imap.command_timeout_sec", 60)
	v.SetDefault("imap.ssl", true)
	v.SetDefault("sync.poll_interval_sec", 300)
	v.SetDefault("sync.max_emails", 10)
	v.SetDefault("sync.mark_as_read", false)
	v.SetDefault("sync.lookback_days", 7)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.claim_ttl_sec", 3600)
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "mailtriage.events")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("credentials.file_dir", filepath.Join(dir, "credentials"))
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error: defaults apply. MAILTRIAGE_* environment
// variables override file values, and OLLAMA_HOST / OLLAMA_DEFAULT_MODEL
// are honoured for the AI backend.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("MAILTRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("ai.host", "MAILTRIAGE_AI_HOST", "OLLAMA_HOST")
	_ = v.BindEnv("ai.model", "MAILTRIAGE_AI_MODEL", "OLLAMA_DEFAULT_MODEL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.AI.Concurrency <= 0 {
		cfg.AI.Concurrency = 1
	}
	if cfg.Sync.MaxEmails <= 0 {
		cfg.Sync.MaxEmails = 10
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

	v.Set("database", cfg.Database)
	v.Set("ai", cfg.AI)
	v.Set("imap", cfg.IMAP)
	v.Set("sync", cfg.Sync)
	v.Set("redis", cfg.Redis)
	v.Set("amqp", cfg.AMQP)
	v.Set("metrics", cfg.Metrics)
	v.Set("log", cfg.Log)
	v.Set("credentials", cfg.Credentials)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
