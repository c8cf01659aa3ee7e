package jobs

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"routinebot/internal/routine"
)

// SecondOptional accepts both 5-field and 6-field (with seconds) specs.
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var reClock = regexp.MustCompile(`^\d{2}:\d{2}$`)

// ParseSchedule accepts:
//   - cron specs: "0 3 * * *", "*/30 * * * * *", "@daily", "@every 6h"
//   - "HH:MM": daily at that wall-clock time
//   - Go durations: "6h", "90m" (fixed interval)
//
// "cron:" and "every:" prefixes force the interpretation.
func ParseSchedule(raw string) (cron.Schedule, error) {
	s := strings.TrimSpace(raw)
	low := strings.ToLower(s)
	switch {
	case s == "":
		return nil, fmt.Errorf("schedule required")
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseEvery(strings.TrimSpace(s[len("every:"):]))
	case strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t"):
		return parseCron(s)
	case reClock.MatchString(s):
		return DailyAt(s)
	}
	if sched, err := parseEvery(s); err == nil {
		return sched, nil
	}
	return nil, fmt.Errorf("invalid schedule %q (use cron like '0 3 * * *', HH:MM like '06:00', or a duration like '6h')", raw)
}

// DailyAt fires every day at clock ("HH:MM") in the cron's location.
func DailyAt(clock string) (cron.Schedule, error) {
	m, err := routine.ParseClock(clock)
	if err != nil {
		return nil, err
	}
	return parseCron(fmt.Sprintf("%d %d * * *", m%60, m/60))
}

func parseCron(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("cron expression required")
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return sched, nil
}

func parseEvery(v string) (cron.Schedule, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil, fmt.Errorf("invalid interval %q: %w", v, err)
	}
	if d < time.Second {
		return nil, fmt.Errorf("interval must be >= 1s")
	}
	return cron.Every(d), nil
}
