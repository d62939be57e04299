package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Config is the full bot configuration, loaded from a YAML file.
//
// All duration fields are Go duration strings (e.g. "500ms", "10s", "1m").
// The Telegram token and admin chat id may be overridden from the
// environment (BOT_TOKEN, ADMIN_CHAT_ID) so secrets can stay out of the file.
type Config struct {
	Telegram    TelegramConfig    `yaml:"telegram"`
	Logging     LoggingConfig     `yaml:"logging"`
	Storage     StorageConfig     `yaml:"storage"`
	Broadcast   BroadcastConfig   `yaml:"broadcast"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

type TelegramConfig struct {
	Token       string `yaml:"token,omitempty"`
	AdminChatID int64  `yaml:"admin_chat_id"`
	PollTimeout string `yaml:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string     `yaml:"level,omitempty"`
	Console bool       `yaml:"console"`
	File    FileConfig `yaml:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

type StorageConfig struct {
	Path        string `yaml:"path,omitempty"`
	BusyTimeout string `yaml:"busy_timeout,omitempty"`
}

// BroadcastConfig tunes the delivery engine.
//
// RatePerMinute bounds the aggregate send rate of one batch; zero or negative
// disables throttling. It may be fractional (e.g. 0.5 = one message every two
// minutes).
type BroadcastConfig struct {
	RatePerMinute float64 `yaml:"rate_per_minute,omitempty"`
	ProgressEvery int     `yaml:"progress_every,omitempty"`
	PausePoll     string  `yaml:"pause_poll,omitempty"`
}

type MaintenanceConfig struct {
	HistoryRetentionDays int    `yaml:"history_retention_days,omitempty"`
	PurgeSchedule        string `yaml:"purge_schedule,omitempty"`
}

const (
	DefaultRatePerMinute = 1200 // ~20 msg/s, Telegram-safe ceiling
	DefaultProgressEvery = 100
	DefaultPausePoll     = time.Second
	DefaultRetentionDays = 360
	DefaultPurgeSchedule = "0 4 * * *"
)

// Load reads, env-overrides and validates the config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Parse(b []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("BOT_TOKEN")); v != "" {
		c.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("ADMIN_CHAT_ID")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.AdminChatID = id
		}
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required (config or BOT_TOKEN)")
	}
	if c.Telegram.AdminChatID == 0 {
		return errors.New("telegram.admin_chat_id is required (config or ADMIN_CHAT_ID)")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("broadcast.pause_poll", c.Broadcast.PausePoll); err != nil {
		return err
	}
	return nil
}

// PollTimeout returns telegram.poll_timeout with its default.
func (c *Config) PollTimeout() time.Duration {
	d, _ := ParseDurationOrDefault("telegram.poll_timeout", c.Telegram.PollTimeout, 10*time.Second)
	return d
}

// BusyTimeout returns storage.busy_timeout with its default.
func (c *Config) BusyTimeout() time.Duration {
	d, _ := ParseDurationOrDefault("storage.busy_timeout", c.Storage.BusyTimeout, 5*time.Second)
	return d
}

// PausePoll returns broadcast.pause_poll with its default.
func (c *Config) PausePoll() time.Duration {
	d, _ := ParseDurationOrDefault("broadcast.pause_poll", c.Broadcast.PausePoll, DefaultPausePoll)
	return d
}

// StoragePath returns storage.path with its default.
func (c *Config) StoragePath() string {
	if strings.TrimSpace(c.Storage.Path) != "" {
		return c.Storage.Path
	}
	return "./supportbot.db"
}

// ProgressEvery returns broadcast.progress_every with its default.
func (c *Config) ProgressEvery() int {
	if c.Broadcast.ProgressEvery > 0 {
		return c.Broadcast.ProgressEvery
	}
	return DefaultProgressEvery
}

// RetentionDays returns maintenance.history_retention_days with its default.
func (c *Config) RetentionDays() int {
	if c.Maintenance.HistoryRetentionDays > 0 {
		return c.Maintenance.HistoryRetentionDays
	}
	return DefaultRetentionDays
}

// PurgeSchedule returns maintenance.purge_schedule with its default.
func (c *Config) PurgeSchedule() string {
	if strings.TrimSpace(c.Maintenance.PurgeSchedule) != "" {
		return c.Maintenance.PurgeSchedule
	}
	return DefaultPurgeSchedule
}
