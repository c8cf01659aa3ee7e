package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"routinebot/internal/routine"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// ParseDurationField parses a non-negative Go duration; empty means 0.
// path names the field in errors (e.g. "http.read_timeout").
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: bad duration %q", ErrInvalid, path, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s: negative duration", ErrInvalid, path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero values.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}

// Location resolves scheduler.timezone ("" and "Local" mean the host zone).
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Scheduler.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: scheduler.timezone: %v", ErrInvalid, err)
	}
	return loc, nil
}

// Validate checks the whole config and reports every problem at once.
// Unknown rule ids are not errors: the engine falls back to the newborn rule.
func Validate(c *Config) error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	check := func(_ time.Duration, err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	check(ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout))
	check(ParseDurationField("http.read_timeout", c.HTTP.ReadTimeout))
	check(ParseDurationField("http.write_timeout", c.HTTP.WriteTimeout))
	if c.Storage != nil {
		check(ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout))
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "none", "memory":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(c.Storage.Path) == "" {
				add("storage.path is required for driver %q", c.Storage.Driver)
			}
		default:
			add("storage.driver %q is not supported", c.Storage.Driver)
		}
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Scheduler.RetainDays < 0 {
		add("scheduler.retain_days must be >= 0")
	}
	if d := strings.TrimSpace(c.Scheduler.DigestTime); d != "" {
		if _, err := routine.ParseClock(d); err != nil {
			add("scheduler.digest_time: %v", err)
		}
	}
	if c.Bot.Workers < 0 || c.Bot.RatePerChat < 0 {
		add("bot.workers and bot.rate_per_chat must be >= 0")
	}
	if w := strings.TrimSpace(c.Routine.DefaultFirstWakeTime); w != "" {
		if _, err := routine.ParseClock(w); err != nil {
			add("routine.default_first_wake_time: %v", err)
		}
	}

	seen := map[string]bool{}
	for i, b := range c.Routine.Babies {
		id := strings.TrimSpace(b.ID)
		switch {
		case id == "":
			add("routine.babies[%d].id is required", i)
			continue
		case seen[id]:
			add("routine.babies[%d]: duplicate id %q", i, id)
		}
		seen[id] = true
		if w := strings.TrimSpace(b.FirstWakeTime); w != "" {
			if _, err := routine.ParseClock(w); err != nil {
				add("routine.babies[%s].first_wake_time: %v", id, err)
			}
		}
		if strings.TrimSpace(b.BirthDate) == "" {
			if strings.TrimSpace(b.RuleID) == "" {
				add("routine.babies[%s] needs birth_date or rule_id", id)
			}
		} else if _, err := routine.ParseDate(b.BirthDate, time.UTC); err != nil {
			add("routine.babies[%s].birth_date: %v", id, err)
		}
	}
	return errors.Join(errs...)
}
