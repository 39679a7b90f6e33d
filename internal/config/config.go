package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither a flag nor REREMINDER_CONFIG names a file.
const DefaultPath = "configs/config.yaml"

// EnvPath names the environment variable holding the config path.
const EnvPath = "REREMINDER_CONFIG"

type Config struct {
	Language string `yaml:"language"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Settings struct {
		Backend             string `yaml:"backend"`
		PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	} `yaml:"settings"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Alarm struct {
		Exact                bool `yaml:"exact"`
		CheckIntervalSeconds int  `yaml:"check_interval_seconds"`
	} `yaml:"alarm"`

	Notification struct {
		Presenter   string   `yaml:"presenter"`
		ChannelName string   `yaml:"channel_name"`
		TapURL      string   `yaml:"tap_url"`
		Command     []string `yaml:"command"`
	} `yaml:"notification"`

	Telegram struct {
		BotToken      string `yaml:"bot_token"`
		ChatID        int64  `yaml:"chat_id"`
		OpenLabel     string `yaml:"open_label"`
		RatePerMinute int    `yaml:"rate_per_minute"`
		MaxRetries    int    `yaml:"max_retries"`
	} `yaml:"telegram"`

	Sound struct {
		Command     []string `yaml:"command"`
		DefaultTone string   `yaml:"default_tone"`
	} `yaml:"sound"`

	Speech struct {
		Command  []string `yaml:"command"`
		Language string   `yaml:"language"`
	} `yaml:"speech"`

	Vibration struct {
		Enabled bool     `yaml:"enabled"`
		Command []string `yaml:"command"`
	} `yaml:"vibration"`

	History struct {
		Enabled       bool `yaml:"enabled"`
		RetentionDays int  `yaml:"retention_days"`
		MonthlyReport bool `yaml:"monthly_report"`
	} `yaml:"history"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

// ResolvePath picks the config path from the flag value, the environment,
// or the default, in that order. explicit reports whether the user chose it.
func ResolvePath(flag string) (path string, explicit bool) {
	if flag != "" {
		return flag, true
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env, true
	}
	return DefaultPath, false
}

// LoadEnv loads a .env file next to the working directory, if present.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the YAML file at path. When required is false a missing file
// yields the defaults.
func Load(path string, required bool) (*Config, error) {
	var cfg Config
	cfg.setDefaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Support ${ENV_VAR} placeholders in YAML config.
		data = []byte(os.ExpandEnv(string(data)))
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.UsesSQLite() {
		if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// setDefaults fills values whose zero value is a valid choice.
func (c *Config) setDefaults() {
	c.Log.Pretty = true
	c.Alarm.Exact = true
	c.Vibration.Enabled = true
	c.History.Enabled = true
}

func (c *Config) applyDefaults() {
	if c.Language == "" {
		c.Language = "en"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Settings.Backend == "" {
		c.Settings.Backend = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/rereminder.db"
	}
	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "rereminder:"
	}
	if c.Notification.Presenter == "" {
		c.Notification.Presenter = "log"
	}
	if c.Speech.Language == "" {
		c.Speech.Language = c.Language
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	switch c.Settings.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("settings.backend: unknown backend %q", c.Settings.Backend)
	}
	switch c.Notification.Presenter {
	case "log", "command", "telegram":
	default:
		return fmt.Errorf("notification.presenter: unknown presenter %q", c.Notification.Presenter)
	}
	if c.Notification.Presenter == "telegram" || c.History.MonthlyReport {
		if strings.TrimSpace(c.Telegram.BotToken) == "" || c.Telegram.ChatID == 0 {
			return errors.New("telegram: bot_token and chat_id are required")
		}
	}
	return nil
}

func (c *Config) SettingsPollInterval() time.Duration {
	if c.Settings.PollIntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Settings.PollIntervalSeconds) * time.Second
}

func (c *Config) AlarmCheckInterval() time.Duration {
	if c.Alarm.CheckIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Alarm.CheckIntervalSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) HistoryRetention() time.Duration {
	if c.History.RetentionDays <= 0 {
		return 90 * 24 * time.Hour
	}
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}

// UsesSQLite reports whether the sqlite database must be opened.
func (c *Config) UsesSQLite() bool {
	return c.Settings.Backend == "sqlite" || c.History.Enabled || c.Backup.Enabled
}
