package logx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestZeroLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero Logger should report IsZero")
	}
	l.Info("dropped", String("k", "v"))
	if Nop().IsZero() {
		t.Fatal("Nop() should not be zero")
	}
}

func TestWithAppliesFieldsInOrder(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := FromZerolog(zerolog.New(&buf)).With(String("baby", "a"), Int("order", 2))
	l.Info("phase adjusted", String("baby", "b"))
	out := buf.String()
	if !strings.Contains(out, `"message":"phase adjusted"`) {
		t.Fatalf("missing message: %s", out)
	}
	if !strings.Contains(out, `"order":2`) {
		t.Fatalf("missing With field: %s", out)
	}
	if strings.LastIndex(out, `"baby":"b"`) < strings.LastIndex(out, `"baby":"a"`) {
		t.Fatalf("call-site field should be written last: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in, zerolog.InfoLevel); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFormatChatLine(t *testing.T) {
	t.Parallel()
	got := formatChatLine([]byte(`{"level":"warn","time":"x","message":"prune failed","err":"disk full","baby":"a"}` + "\n"))
	want := "[WARN] prune failed\n- baby=a\n- err=disk full"
	if got != want {
		t.Fatalf("formatChatLine =\n%q\nwant\n%q", got, want)
	}
	if got := formatChatLine([]byte("plain text")); got != "plain text" {
		t.Fatalf("non-JSON line = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := truncate(strings.Repeat("a", 20), 12); got != "aaaaaaaaa..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 12); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
}
