package config

import (
	"reflect"
	"sort"
	"strings"

	logx "routinebot/pkg/logx"
)

// SummarizeConfigChange lists the changed top-level sections and safe fields
// for logging them. Tokens are reported only as set/unset.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		attrs   []logx.Field
	)
	section := func(name string, differs bool, fields ...logx.Field) {
		if differs {
			changed = append(changed, name)
			attrs = append(attrs, fields...)
		}
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	section("telegram",
		ot.Token != nt.Token || ot.PollTimeout != nt.PollTimeout || ot.LogChatID != nt.LogChatID ||
			!reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs),
		logx.Bool("telegram.token_set", strings.TrimSpace(nt.Token) != ""),
		logx.String("telegram.poll_timeout", nt.PollTimeout),
		logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
	)

	section("logging", !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging),
		logx.String("logging.level", newCfg.Logging.Level),
		logx.Bool("logging.console", newCfg.Logging.Console),
		logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
	)

	oh, nh := oldCfg.HTTP, newCfg.HTTP
	oh.Token, nh.Token = tokenMark(oh.Token), tokenMark(nh.Token)
	section("http", oh != nh,
		logx.Bool("http.enabled", nh.Enabled),
		logx.String("http.addr", nh.Addr),
		logx.Bool("http.token_set", nh.Token != ""),
		logx.Bool("http.pprof", nh.Pprof),
	)

	section("bot", !reflect.DeepEqual(oldCfg.Bot, newCfg.Bot),
		logx.Int("bot.workers", newCfg.Bot.Workers),
		logx.Bool("bot.owner_only_mutations", newCfg.Bot.OwnerOnlyMutations),
		logx.Bool("bot.announce", newCfg.Bot.AnnounceEnabled()),
	)

	section("scheduler", oldCfg.Scheduler != newCfg.Scheduler,
		logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
		logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
		logx.String("scheduler.prune_cron", newCfg.Scheduler.PruneCron),
		logx.String("scheduler.digest_time", newCfg.Scheduler.DigestTime),
	)

	var ost, nst StorageConfig
	if oldCfg.Storage != nil {
		ost = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		nst = *newCfg.Storage
	}
	section("storage", ost != nst,
		logx.String("storage.driver", nst.Driver),
		logx.Bool("storage.path_set", strings.TrimSpace(nst.Path) != ""),
	)

	section("routine", !reflect.DeepEqual(oldCfg.Routine, newCfg.Routine),
		logx.String("routine.locale", newCfg.Routine.Locale),
		logx.Int("routine.babies", len(newCfg.Routine.Babies)),
	)

	sort.Strings(changed)
	return changed, attrs
}

func tokenMark(tok string) string {
	if strings.TrimSpace(tok) == "" {
		return ""
	}
	return "set:" + tok
}
