package app

import (
	"strings"
	"time"

	"routinebot/internal/bot"
	"routinebot/internal/config"
	"routinebot/internal/httpapi"
	"routinebot/internal/storage"
	logx "routinebot/pkg/logx"
)

const defaultRetainDays = 7

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: driver, Path: strings.TrimSpace(sc.Path), BusyTimeout: busy}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Telegram.Enabled && cfg.Telegram.LogChatID != 0,
			ChatID:     cfg.Telegram.LogChatID,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapBotConfig(cfg *config.Config) bot.Config {
	return bot.Config{
		Owners:             append([]int64(nil), cfg.Telegram.OwnerUserIDs...),
		Workers:            cfg.Bot.Workers,
		RatePerChat:        cfg.Bot.RatePerChat,
		OwnerOnlyMutations: cfg.Bot.OwnerOnlyMutations,
		Announce:           cfg.Bot.AnnounceEnabled(),
	}
}

func mapHTTPConfig(cfg *config.Config) (httpapi.ServerConfig, httpapi.Options, error) {
	h := cfg.HTTP
	rt, err := config.ParseDurationField("http.read_timeout", h.ReadTimeout)
	if err != nil {
		return httpapi.ServerConfig{}, httpapi.Options{}, err
	}
	wt, err := config.ParseDurationField("http.write_timeout", h.WriteTimeout)
	if err != nil {
		return httpapi.ServerConfig{}, httpapi.Options{}, err
	}
	sc := httpapi.ServerConfig{
		Enabled:      h.Enabled,
		Addr:         strings.TrimSpace(h.Addr),
		ReadTimeout:  rt,
		WriteTimeout: wt,
	}
	return sc, httpapi.Options{Token: strings.TrimSpace(h.Token), Pprof: h.Pprof}, nil
}

// retainDays applies the default to an unset scheduler.retain_days.
func retainDays(cfg *config.Config) int {
	if cfg.Scheduler.RetainDays == 0 {
		return defaultRetainDays
	}
	return cfg.Scheduler.RetainDays
}

// labelKey normalizes a locale the way routine.BuiltinLabels does ("id-ID" -> "id").
func labelKey(locale string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(l, "-_"); i > 0 {
		l = l[:i]
	}
	return l
}
