package routine

// Cascade applies a timing edit to the phase with the given order and pushes the
// change forward through later phases of the same day.
//
// The edited phase gets start newStart and duration newEnd-newStart. Every later
// phase except your_time starts where the previous one ended; your_time phases
// mirror their paired sleep phase without consuming time. Earlier phases are
// returned unchanged. The input slice is not modified.
//
// Editing a your_time phase edits the sleep phase it mirrors.
//
// found is false (and out is nil) when no phase has the given order; the times
// are not validated in that case.
func Cascade(items []Item, order int, newStart, newEnd string) (out []Item, found bool, err error) {
	idx := -1
	for i := range items {
		if items[i].Order == order {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false, nil
	}
	start, dur, err := clockSpan(newStart, newEnd)
	if err != nil {
		return nil, true, err
	}
	if dur <= 0 {
		return nil, true, ErrInvalidRange
	}
	if items[idx].Activity == ActivityYourTime {
		if j := pairedSleep(items, idx); j >= 0 {
			idx = j
		}
	}

	out = make([]Item, len(items))
	copy(out, items)

	out[idx].StartTime = FormatClock(start)
	out[idx].DurationMinutes = dur

	clock := start + dur
	for i := idx + 1; i < len(out); i++ {
		if out[i].Activity == ActivityYourTime {
			if j := pairedSleep(out, i); j >= 0 {
				out[i].StartTime = out[j].StartTime
				out[i].DurationMinutes = out[j].DurationMinutes
			}
			continue
		}
		out[i].StartTime = FormatClock(clock)
		clock += out[i].DurationMinutes
	}
	return out, true, nil
}
