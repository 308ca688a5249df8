// Package config loads and watches the taskmill configuration file.
// YAML files are coerced to JSON so one strict decoder
// (DisallowUnknownFields) covers both formats.
package config

import (
	"os"
	"time"

	"taskmill/internal/content"
	"taskmill/internal/notifier"
	"taskmill/internal/scheduler"
	"taskmill/internal/storage"
	logx "taskmill/pkg/logx"
)

// Config is the full application configuration as written in the file.
// Durations are strings ("10s", "2m") parsed at mapping time.
type Config struct {
	Log       LogSection       `json:"log"`
	Storage   StorageSection   `json:"storage"`
	Scheduler SchedulerSection `json:"scheduler"`
	Content   ContentSection   `json:"content"`
	Notify    NotifySection    `json:"notify"`
}

type LogSection struct {
	Level   string `json:"level"`
	Console *bool  `json:"console"`
	File    struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path"`
	} `json:"file"`
}

type StorageSection struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout"`
}

type SchedulerSection struct {
	Enabled       *bool  `json:"enabled"`
	PollInterval  string `json:"poll_interval"`
	MaxConcurrent int    `json:"max_concurrent"`
	TaskTimeout   string `json:"task_timeout"`
	Retention     string `json:"retention"`
}

type ContentSection struct {
	Provider string `json:"provider"`
	Host     string `json:"host"`
	Model    string `json:"model"`
}

type NotifySection struct {
	Telegram struct {
		Enabled    bool   `json:"enabled"`
		Token      string `json:"token"`
		ChatID     int64  `json:"chat_id"`
		RatePerSec int    `json:"rate_per_sec"`
	} `json:"telegram"`
}

// Load reads and strictly decodes the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeConfig(path, data)
}

// ---- mapping to typed component configs ----

func (c *Config) LogConfig() logx.Config {
	console := true
	if c.Log.Console != nil {
		console = *c.Log.Console
	}
	return logx.Config{
		Level:   c.Log.Level,
		Console: console,
		File: logx.FileConfig{
			Enabled: c.Log.File.Enabled,
			Path:    c.Log.File.Path,
		},
	}
}

func (c *Config) StorageConfig() (storage.Config, error) {
	busy, err := ParseDurationOrDefault("storage.busy_timeout", c.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	path := c.Storage.Path
	if path == "" {
		path = "./taskmill.db"
	}
	return storage.Config{
		Driver:      c.Storage.Driver,
		Path:        path,
		BusyTimeout: busy,
	}, nil
}

func (c *Config) SchedulerConfig() (scheduler.Config, error) {
	poll, err := ParseDurationOrDefault("scheduler.poll_interval", c.Scheduler.PollInterval, 10*time.Second)
	if err != nil {
		return scheduler.Config{}, err
	}
	timeout, err := ParseDurationOrDefault("scheduler.task_timeout", c.Scheduler.TaskTimeout, 2*time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	retention, err := ParseDurationField("scheduler.retention", c.Scheduler.Retention)
	if err != nil {
		return scheduler.Config{}, err
	}
	enabled := true
	if c.Scheduler.Enabled != nil {
		enabled = *c.Scheduler.Enabled
	}
	return scheduler.Config{
		Enabled:       enabled,
		PollInterval:  poll,
		MaxConcurrent: c.Scheduler.MaxConcurrent,
		TaskTimeout:   timeout,
		Retention:     retention,
	}, nil
}

func (c *Config) ContentConfig() content.Config {
	return content.Config{
		Provider: c.Content.Provider,
		Host:     c.Content.Host,
		Model:    c.Content.Model,
	}
}

func (c *Config) NotifierConfig() notifier.Config {
	return notifier.Config{
		Telegram: notifier.TelegramConfig{
			Enabled:    c.Notify.Telegram.Enabled,
			Token:      c.Notify.Telegram.Token,
			ChatID:     c.Notify.Telegram.ChatID,
			RatePerSec: c.Notify.Telegram.RatePerSec,
		},
	}
}
