package routine

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestProjectBackToBack(t *testing.T) {
	t.Parallel()
	items, err := Generate("07:00", Options{Labels: testLabels})
	if err != nil {
		t.Fatal(err)
	}
	p, err := Project(items)
	if err != nil {
		t.Fatal(err)
	}
	if p.Anchor != 7*60 {
		t.Fatalf("anchor = %d", p.Anchor)
	}
	prevEnd := p.Anchor
	for i, it := range items {
		s := p.Spans[it.Order]
		if s.End-s.Start != it.DurationMinutes {
			t.Fatalf("item %d span %+v does not match duration %d", i, s, it.DurationMinutes)
		}
		if it.Activity == ActivityYourTime {
			if sleep := p.Spans[items[i-1].Order]; s != sleep {
				t.Fatalf("your_time span %+v != sleep span %+v", s, sleep)
			}
			continue
		}
		if s.Start != prevEnd {
			t.Fatalf("item %d starts at %d, want %d", i, s.Start, prevEnd)
		}
		prevEnd = s.End
	}
}

func TestProjectEmpty(t *testing.T) {
	t.Parallel()
	p, err := Project(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Spans) != 0 || p.SpansOvernight {
		t.Fatalf("unexpected projection %+v", p)
	}
}

func TestProjectOvernightNow(t *testing.T) {
	t.Parallel()
	items, err := Generate("22:00", Options{AgeWeeks: age(60), Labels: testLabels})
	if err != nil {
		t.Fatal(err)
	}
	p, err := Project(items)
	if err != nil {
		t.Fatal(err)
	}
	if !p.SpansOvernight {
		t.Fatal("expected day to span midnight")
	}
	// 22:00 eat, 22:30 activity, 03:00 nap ... the morning activity covers 02:00.
	st := p.ClassifyMinute(2 * 60)
	if st[0] != StatusPast {
		t.Fatalf("first eat at 02:00 is %s, want past", st[0])
	}
	if st[1] != StatusCurrent {
		t.Fatalf("activity at 02:00 is %s, want current", st[1])
	}
	for _, it := range items[2:] {
		if st[it.Order] != StatusUpcoming {
			t.Fatalf("order %d at 02:00 is %s, want upcoming", it.Order, st[it.Order])
		}
	}
	if cur, ok := p.CurrentMinute(2 * 60); !ok || cur != 1 {
		t.Fatalf("CurrentMinute(02:00) = %d, %v", cur, ok)
	}
}

func TestClassifyDaytime(t *testing.T) {
	t.Parallel()
	items := []Item{
		{Order: 0, Activity: ActivityEat, StartTime: "07:00", DurationMinutes: 30},
		{Order: 1, Activity: ActivityPlay, StartTime: "07:30", DurationMinutes: 60},
		{Order: 2, Activity: ActivitySleep, StartTime: "08:30", DurationMinutes: 90, PairID: 1},
		{Order: 3, Activity: ActivityYourTime, StartTime: "08:30", DurationMinutes: 90, PairID: 1},
	}
	p, err := Project(items)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	got := p.Classify(now)
	want := map[int]Status{0: StatusPast, 1: StatusPast, 2: StatusCurrent, 3: StatusCurrent}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("order %d = %s, want %s", k, got[k], v)
		}
	}
	// your_time is never reported as the current phase.
	if cur, ok := p.Current(now); !ok || cur != 2 {
		t.Fatalf("Current = %d, %v; want 2", cur, ok)
	}
	if cur, ok := p.CurrentMinute(6 * 60); ok {
		t.Fatalf("CurrentMinute(06:00) = %d, want none", cur)
	}
	if got := p.EndClock(); got != "10:00" {
		t.Fatalf("EndClock = %s", got)
	}
}

func TestProjectIgnoresStoredStartsAfterAnchor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		items []Item
		want  map[int]Span
	}{
		{
			name: "later start",
			items: []Item{
				{Order: 0, Activity: ActivityEat, StartTime: "07:00", DurationMinutes: 30},
				{Order: 1, Activity: ActivityPlay, StartTime: "08:00", DurationMinutes: 60},
				{Order: 2, Activity: ActivitySleep, StartTime: "09:00", DurationMinutes: 60},
			},
			want: map[int]Span{0: {420, 450}, 1: {450, 510}, 2: {510, 570}},
		},
		{
			name: "earlier start",
			items: []Item{
				{Order: 0, Activity: ActivityEat, StartTime: "07:00", DurationMinutes: 60},
				{Order: 1, Activity: ActivityPlay, StartTime: "07:30", DurationMinutes: 60},
			},
			want: map[int]Span{0: {420, 480}, 1: {480, 540}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := Project(tt.items)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, p.Spans); diff != "" {
				t.Fatalf("spans (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProjectEditedPhaseStartsAtCursor(t *testing.T) {
	t.Parallel()
	items, err := Generate("07:00", Options{Labels: testLabels})
	if err != nil {
		t.Fatal(err)
	}
	edited, found, err := Cascade(items, 1, "08:00", "08:50")
	if err != nil || !found {
		t.Fatalf("Cascade: found=%v err=%v", found, err)
	}
	p, err := Project(edited)
	if err != nil {
		t.Fatal(err)
	}
	first := p.Spans[0]
	if s := p.Spans[1]; s.Start != first.End || s.End != first.End+50 {
		t.Fatalf("edited span = %+v, want 50 minutes from %d", s, first.End)
	}
	if cur, ok := p.CurrentMinute(first.End + 5); !ok || cur != 1 {
		t.Fatalf("CurrentMinute(%d) = %d, %v; want edited phase", first.End+5, cur, ok)
	}
}

func TestProjectInvalidAnchor(t *testing.T) {
	t.Parallel()
	if _, err := Project([]Item{{StartTime: "25:00", DurationMinutes: 10}}); err == nil {
		t.Fatal("expected error")
	}
}
