package routine

import (
	"time"
)

// Span is a phase's position in minutes since midnight of the anchor's day.
// Values exceed MinutesPerDay for phases that run past midnight.
type Span struct {
	Start int `json:"startMinutes"`
	End   int `json:"endMinutes"`
}

// Status classifies a phase relative to "now".
type Status string

const (
	StatusPast     Status = "past"
	StatusCurrent  Status = "current"
	StatusUpcoming Status = "upcoming"
)

// Projection holds absolute timings for a phase list.
type Projection struct {
	// Anchor is the first phase's start, in minutes since midnight.
	Anchor         int          `json:"anchorMinutes"`
	Spans          map[int]Span `json:"spans"`
	SpansOvernight bool         `json:"spansOvernight"`

	items []Item
}

// Project converts items' durations into absolute spans.
//
// Non-your_time phases are laid out back to back from the anchor (the first
// phase's start); only the anchor's stored start is read. your_time phases take
// the span of their paired sleep phase.
func Project(items []Item) (Projection, error) {
	p := Projection{Spans: make(map[int]Span, len(items)), items: items}
	if len(items) == 0 {
		return p, nil
	}
	anchor, err := ParseClock(items[0].StartTime)
	if err != nil {
		return Projection{}, err
	}
	p.Anchor = anchor

	cursor := anchor
	for i, it := range items {
		if it.Activity == ActivityYourTime {
			if j := pairedSleep(items, i); j >= 0 {
				p.Spans[it.Order] = p.Spans[items[j].Order]
			} else {
				p.Spans[it.Order] = Span{Start: cursor, End: cursor + it.DurationMinutes}
			}
			continue
		}
		end := cursor + it.DurationMinutes
		p.Spans[it.Order] = Span{Start: cursor, End: end}
		cursor = end
	}
	for _, s := range p.Spans {
		if s.End > MinutesPerDay {
			p.SpansOvernight = true
			break
		}
	}
	return p, nil
}

// pairedSleep returns the index of the sleep phase mirrored by items[i].
// It prefers an explicit PairID and falls back to the nearest preceding sleep.
func pairedSleep(items []Item, i int) int {
	if id := items[i].PairID; id != 0 {
		for j := i - 1; j >= 0; j-- {
			if items[j].Activity == ActivitySleep && items[j].PairID == id {
				return j
			}
		}
	}
	for j := i - 1; j >= 0; j-- {
		if items[j].Activity == ActivitySleep {
			return j
		}
	}
	return -1
}

// position maps a wall-clock minute onto the projection's timeline. On days that
// cross midnight, times earlier than the anchor belong to the next morning.
func (p Projection) position(minute int) int {
	if minute < p.Anchor && p.SpansOvernight {
		minute += MinutesPerDay
	}
	return minute
}

// ClassifyMinute returns the status of every phase for a wall-clock minute of day.
func (p Projection) ClassifyMinute(minute int) map[int]Status {
	pos := p.position(minute)
	out := make(map[int]Status, len(p.Spans))
	for order, s := range p.Spans {
		switch {
		case pos >= s.End:
			out[order] = StatusPast
		case pos >= s.Start:
			out[order] = StatusCurrent
		default:
			out[order] = StatusUpcoming
		}
	}
	return out
}

// Classify is ClassifyMinute for a wall-clock time in its own location.
func (p Projection) Classify(now time.Time) map[int]Status {
	return p.ClassifyMinute(MinuteOfDay(now))
}

// CurrentMinute returns the order of the non-your_time phase in progress at minute.
func (p Projection) CurrentMinute(minute int) (int, bool) {
	pos := p.position(minute)
	for _, it := range p.items {
		if it.Activity == ActivityYourTime {
			continue
		}
		s, ok := p.Spans[it.Order]
		if ok && pos >= s.Start && pos < s.End {
			return it.Order, true
		}
	}
	return 0, false
}

// Current is CurrentMinute for a wall-clock time.
func (p Projection) Current(now time.Time) (int, bool) {
	return p.CurrentMinute(MinuteOfDay(now))
}

// EndClock returns the clock time at which the day's last phase ends.
func (p Projection) EndClock() string {
	end := p.Anchor
	for _, s := range p.Spans {
		if s.End > end {
			end = s.End
		}
	}
	return FormatClock(end)
}
