package bot

import (
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"routinebot/internal/routine"
)

var ridSeq atomic.Uint64

// newReqID returns a short request id: base36 time, sequence and two random chars.
func newReqID() string {
	n := ridSeq.Add(1)
	return base36(time.Now().UnixNano()) + "-" + base36(int64(n)) + randSuffix(2)
}

func randSuffix(n int) string {
	const alpha = "abcdefghijklmnopqrstuvwxyz0123456789"
	var b strings.Builder
	for range n {
		b.WriteByte(alpha[rand.IntN(len(alpha))])
	}
	return b.String()
}

func base36(v int64) string {
	const chars = "0123456789abcdefghijklmnopqrstuvwxyz"
	if v < 0 {
		v = -v
	}
	if v == 0 {
		return "0"
	}
	var out [32]byte
	i := len(out)
	for v > 0 {
		i--
		out[i] = chars[v%36]
		v /= 36
	}
	return string(out[i:])
}

// tokenize splits command text into tokens, honoring quotes and backslash escapes.
//
//	/adjust 2 08:10 "09:40" ada
func tokenize(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		out   []string
		buf   strings.Builder
		inQ   bool
		qChar byte
		esc   bool
	)
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case esc:
			buf.WriteByte(ch)
			esc = false
		case ch == '\\':
			esc = true
		case inQ && ch == qChar:
			inQ = false
		case inQ:
			buf.WriteByte(ch)
		case ch == '"' || ch == '\'':
			inQ = true
			qChar = ch
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			flush()
		default:
			buf.WriteByte(ch)
		}
	}
	flush()
	return out
}

// parseCommand returns the lower-cased command word (without "/" and any
// "@botname" suffix) and its arguments. ok is false for non-command text.
func parseCommand(text string) (name string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	parts := tokenize(text)
	if len(parts) == 0 {
		return "", nil, false
	}
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	if word == "" {
		return "", nil, false
	}
	return strings.ToLower(word), parts[1:], true
}

func isClock(s string) bool {
	_, err := routine.ParseClock(s)
	return err == nil
}

func isDate(s string) bool {
	_, err := time.Parse(routine.DateLayout, s)
	return err == nil
}

// splitDate pulls an optional "YYYY-MM-DD" (or "today"/"tomorrow"/"yesterday")
// token out of args. The remaining args keep their order.
func splitDate(args []string, today time.Time) (date string, rest []string) {
	for _, a := range args {
		if date == "" {
			switch strings.ToLower(a) {
			case "today":
				date = routine.FormatDate(today)
				continue
			case "tomorrow":
				date = routine.FormatDate(today.AddDate(0, 0, 1))
				continue
			case "yesterday":
				date = routine.FormatDate(today.AddDate(0, 0, -1))
				continue
			}
			if isDate(a) {
				date = a
				continue
			}
		}
		rest = append(rest, a)
	}
	return date, rest
}
