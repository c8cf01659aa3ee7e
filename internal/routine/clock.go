package routine

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MinutesPerDay is the length of a clock day in minutes.
const MinutesPerDay = 24 * 60

// DateLayout is the calendar-date key format used for day overrides.
const DateLayout = "2006-01-02"

var reClock = regexp.MustCompile(`^\s*(\d{2}):(\d{2})\s*$`)

// ParseClock parses a zero-padded 24h "HH:MM" string into minutes since midnight.
func ParseClock(s string) (int, error) {
	m := reClock.FindStringSubmatch(s)
	if len(m) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	hh := int(m[1][0]-'0')*10 + int(m[1][1]-'0')
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if hh > 23 || mm > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return hh*60 + mm, nil
}

// FormatClock renders minutes as "HH:MM", wrapping into a single clock day.
func FormatClock(minutes int) string {
	m := ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// FormatClockString normalizes a valid "HH:MM" string (e.g. trims whitespace).
// Invalid input is returned unchanged.
func FormatClockString(s string) string {
	m, err := ParseClock(s)
	if err != nil {
		return s
	}
	return FormatClock(m)
}

// MinuteOfDay returns t's minutes since local midnight.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseDate validates a "YYYY-MM-DD" key and returns it at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate returns t's calendar date key.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// clockSpan returns end-start for two same-day clock strings.
func clockSpan(start, end string) (int, int, error) {
	s, err := ParseClock(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return 0, 0, err
	}
	return s, e - s, nil
}
