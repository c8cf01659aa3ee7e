package bot

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestTokenize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"/today", []string{"/today"}},
		{`/adjust 2 08:10 "09:40" ada`, []string{"/adjust", "2", "08:10", "09:40", "ada"}},
		{`/today 'baby bo'`, []string{"/today", "baby bo"}},
		{`/x a\ b`, []string{"/x", "a b"}},
		{"  /x\t a \n b ", []string{"/x", "a", "b"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, tokenize(tt.in)); diff != "" {
			t.Fatalf("tokenize(%q) (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()
	name, args, ok := parseCommand("/Today@RoutineBot ada 2026-03-01")
	if !ok || name != "today" {
		t.Fatalf("parseCommand = %q, %v", name, ok)
	}
	if diff := cmp.Diff([]string{"ada", "2026-03-01"}, args); diff != "" {
		t.Fatalf("args (-want +got):\n%s", diff)
	}
	for _, in := range []string{"hello", "", "/", "/@bot"} {
		if _, _, ok := parseCommand(in); ok {
			t.Fatalf("parseCommand(%q) accepted", in)
		}
	}
}

func TestSplitDate(t *testing.T) {
	t.Parallel()
	today := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		args []string
		date string
		rest []string
	}{
		{nil, "", nil},
		{[]string{"ada"}, "", []string{"ada"}},
		{[]string{"2026-02-14", "ada"}, "2026-02-14", []string{"ada"}},
		{[]string{"ada", "tomorrow"}, "2026-03-02", []string{"ada"}},
		{[]string{"yesterday", "today"}, "2026-02-28", []string{"today"}},
		{[]string{"2026-13-01"}, "", []string{"2026-13-01"}},
	}
	for _, tt := range tests {
		date, rest := splitDate(tt.args, today)
		if date != tt.date {
			t.Fatalf("splitDate(%v) date = %q, want %q", tt.args, date, tt.date)
		}
		if diff := cmp.Diff(tt.rest, rest); diff != "" {
			t.Fatalf("splitDate(%v) rest (-want +got):\n%s", tt.args, diff)
		}
	}
}

func TestOriginChat(t *testing.T) {
	t.Parallel()
	if id, ok := originChat("tg:-100123:5"); !ok || id != -100123 {
		t.Fatalf("originChat = %d, %v", id, ok)
	}
	for _, a := range []string{"", "http", "tg:x:1"} {
		if _, ok := originChat(a); ok {
			t.Fatalf("originChat(%q) ok", a)
		}
	}
}
