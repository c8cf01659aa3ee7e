package config

import "routinebot/internal/routine"

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	HTTP      HTTPConfig      `json:"http,omitempty"`
	Bot       BotConfig       `json:"bot,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Routine   RoutineConfig   `json:"routine"`
}

type TelegramConfig struct {
	// Token empty disables the Telegram front end.
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// LogChatID receives mirrored log lines when logging.telegram is enabled.
	LogChatID int64 `json:"log_chat_id,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// HTTPConfig controls the JSON API.
//
// Prefer a loopback Addr; when Token is set every /v1 request needs
// "Authorization: Bearer <token>".
type HTTPConfig struct {
	Enabled      bool   `json:"enabled"`
	Addr         string `json:"addr,omitempty"`  // default "127.0.0.1:8080"
	Token        string `json:"token,omitempty"` // never logged
	Pprof        bool   `json:"pprof,omitempty"` // mounts /debug
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
}

// BotConfig tunes the chat command router.
type BotConfig struct {
	Workers int `json:"workers,omitempty"` // default 4
	// RatePerChat bounds commands per second per chat (default 1, burst 3).
	RatePerChat float64 `json:"rate_per_chat,omitempty"`
	// OwnerOnlyMutations restricts /adjust, /wake, /reset and /rule to owners.
	OwnerOnlyMutations bool `json:"owner_only_mutations,omitempty"`
	// Announce posts adjustments made elsewhere to the baby's chats.
	Announce *bool `json:"announce,omitempty"`
}

// SchedulerConfig controls housekeeping jobs.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// Timezone is an IANA name used for date keys and cron triggers (default: local).
	Timezone string `json:"timezone,omitempty"`
	// PruneCron is a cron spec (seconds optional, descriptors allowed). Default "@daily".
	PruneCron string `json:"prune_cron,omitempty"`
	// RetainDays keeps overrides this many days before today (default 7).
	RetainDays int `json:"retain_days,omitempty"`
	// DigestTime posts each baby's day to its chats at this "HH:MM"; empty disables.
	DigestTime string `json:"digest_time,omitempty"`
}

// StorageConfig selects the persistence driver.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/routine.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type RoutineConfig struct {
	// Locale picks built-in labels ("en", "id"); default "en".
	Locale string `json:"locale,omitempty"`
	// Labels overrides built-in label text per locale. Empty fields fall back.
	Labels map[string]routine.Labels `json:"labels,omitempty"`
	// DefaultFirstWakeTime applies to babies without their own (default "07:00").
	DefaultFirstWakeTime string       `json:"default_first_wake_time,omitempty"`
	Babies               []BabyConfig `json:"babies"`
}

type BabyConfig struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	// BirthDate is "YYYY-MM-DD"; optional when RuleID is set.
	BirthDate     string  `json:"birth_date,omitempty"`
	FirstWakeTime string  `json:"first_wake_time,omitempty"`
	RuleID        string  `json:"rule_id,omitempty"`
	Locale        string  `json:"locale,omitempty"`
	Chats         []int64 `json:"chats,omitempty"`
}

// AnnounceEnabled reports whether change announcements are on (default true).
func (b BotConfig) AnnounceEnabled() bool { return b.Announce == nil || *b.Announce }
