package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	logx "routinebot/pkg/logx"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	tests := []struct {
		in      string
		next    time.Time
		wantErr bool
	}{
		{in: "0 3 * * *", next: time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)},
		{in: "cron:30 10 * * *", next: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)},
		{in: "0 0 11 * * *", next: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)},
		{in: "@daily", next: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{in: "06:00", next: time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)},
		{in: "10:45", next: time.Date(2026, 3, 1, 10, 45, 0, 0, time.UTC)},
		{in: "6h", next: base.Add(6 * time.Hour)},
		{in: "every:90m", next: base.Add(90 * time.Minute)},
		{in: "", wantErr: true},
		{in: "25:00", wantErr: true},
		{in: "every:500ms", wantErr: true},
		{in: "cron:", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			sched, err := ParseSchedule(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSchedule(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSchedule(%q): %v", tt.in, err)
			}
			if got := sched.Next(base); !got.Equal(tt.next) {
				t.Fatalf("Next = %v, want %v", got, tt.next)
			}
		})
	}
}

type fakePruner struct {
	mu     sync.Mutex
	before []string
	err    error
}

func (f *fakePruner) PruneDayOverrides(_ context.Context, before string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.before = append(f.before, before)
	return 2, f.err
}

func TestPruneJob(t *testing.T) {
	t.Parallel()
	now := func() time.Time { return time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC) }

	p := &fakePruner{}
	if err := PruneJob(nil, p, 7, now, logx.Nop()).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"2026-03-03"}, p.before); diff != "" {
		t.Fatalf("cutoffs (-want +got):\n%s", diff)
	}

	off := &fakePruner{}
	if err := PruneJob(nil, off, 0, now, logx.Nop()).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(off.before) != 0 {
		t.Fatalf("retain 0 pruned %v", off.before)
	}

	boom := &fakePruner{err: errors.New("disk")}
	if err := PruneJob(nil, boom, 1, now, logx.Nop()).Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestDigestJobContinuesAfterFailure(t *testing.T) {
	t.Parallel()
	var got []string
	post := func(_ context.Context, id string) error {
		got = append(got, id)
		if id == "b" {
			return errors.New("blocked")
		}
		return nil
	}
	j := DigestJob(nil, func() []string { return []string{"a", "b", "c"} }, post, logx.Nop())
	err := j.Run(context.Background())
	if err == nil {
		t.Fatal("expected joined error")
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Fatalf("posted (-want +got):\n%s", diff)
	}
}

func TestServiceRunNow(t *testing.T) {
	t.Parallel()
	s := New(logx.Nop())
	calls := 0
	s.Apply(time.UTC, []Job{{Name: "x", Run: func(context.Context) error { calls++; return nil }}})
	if err := s.RunNow(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
	if err := s.RunNow(context.Background(), "nope"); err == nil {
		t.Fatal("expected unknown job error")
	}
}

func TestServiceStartApplyStop(t *testing.T) {
	t.Parallel()
	s := New(logx.Nop())
	sched, err := ParseSchedule("@daily")
	if err != nil {
		t.Fatal(err)
	}
	s.Apply(time.UTC, []Job{{Name: "daily", Schedule: sched, Run: func(context.Context) error { return nil }}})
	s.Start(context.Background())
	if _, ok := s.Next()["daily"]; !ok {
		t.Fatal("daily job not scheduled")
	}
	loc := time.FixedZone("X", 3600)
	s.Apply(loc, []Job{{Name: "other", Schedule: sched, Run: func(context.Context) error { return nil }}})
	next := s.Next()
	if _, ok := next["other"]; !ok {
		t.Fatalf("after Apply: %v", next)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	if len(s.Next()) != 0 {
		t.Fatal("Next after Stop should be empty")
	}
}
