package routine

// Options selects the rule and labels for Generate.
type Options struct {
	// AgeWeeks is the baby's age; nil means unknown.
	AgeWeeks *int
	// RuleID forces a rule; unknown ids fall back to the newborn rule.
	RuleID string
	Labels LabelProvider
}

// Generate builds the phase list for one day starting at anchor ("HH:MM").
func Generate(anchor string, opts Options) ([]Item, error) {
	rule := SelectRule(opts.RuleID, opts.AgeWeeks)
	return Build(rule, anchor, WakeWindow(rule, opts.AgeWeeks), opts.Labels)
}

// SelectRule picks the explicit rule when ruleID is set, otherwise the age band.
func SelectRule(ruleID string, ageWeeks *int) Rule {
	if ruleID != "" {
		return RuleByID(ruleID)
	}
	return RuleForAge(ageWeeks)
}

// WakeWindow estimates the activity window for rule, clamped to its bounds.
// An unknown age seeds from the rule's lower band edge.
func WakeWindow(rule Rule, ageWeeks *int) int {
	age := rule.MinWeeks
	if ageWeeks != nil {
		age = *ageWeeks
	}
	return rule.Activity.Clamp(EstimateWakeWindow(age))
}

// Build is the pure core of Generate. wakeWindow is used as given for the
// standard strategy and re-clamped per window for the toddler strategy.
func Build(rule Rule, anchor string, wakeWindow int, labels LabelProvider) ([]Item, error) {
	if labels == nil {
		return nil, ErrMissingLabels
	}
	start, err := ParseClock(anchor)
	if err != nil {
		return nil, err
	}
	b := &builder{clock: start, labels: labels}
	if rule.OpenEnded() {
		b.toddler(rule, wakeWindow)
	} else {
		b.standard(rule, wakeWindow)
	}
	return b.items, nil
}

type builder struct {
	items  []Item
	clock  int
	pairs  int
	labels LabelProvider
}

func (b *builder) emit(a Activity, minutes int, label string) {
	b.items = append(b.items, Item{
		Order:           len(b.items),
		Activity:        a,
		StartTime:       FormatClock(b.clock),
		DurationMinutes: minutes,
		Label:           label,
	})
	b.clock += minutes
}

// sleep emits a sleep phase and, when mirrored, its your_time twin.
// The twin does not advance the clock.
func (b *builder) sleep(napIndex, minutes int, mirrored bool) {
	start := b.clock
	b.emit(ActivitySleep, minutes, b.labels.Sleep(napIndex))
	if !mirrored {
		return
	}
	b.pairs++
	b.items[len(b.items)-1].PairID = b.pairs
	b.items = append(b.items, Item{
		Order:           len(b.items),
		Activity:        ActivityYourTime,
		StartTime:       FormatClock(start),
		DurationMinutes: minutes,
		Label:           b.labels.YourTime(),
		PairID:          b.pairs,
	})
}

func (b *builder) standard(rule Rule, wake int) {
	naps := rule.NapMinutes
	if rule.ThirdNapDropWakeThreshold > 0 && wake >= rule.ThirdNapDropWakeThreshold && len(naps) > 0 {
		naps = naps[:len(naps)-1]
	}
	for i, nap := range naps {
		if i == 0 && rule.MorningNapCapMinutes > 0 && nap > rule.MorningNapCapMinutes {
			nap = rule.MorningNapCapMinutes
		}
		b.emit(ActivityEat, rule.FeedMinutes, b.labels.Eat())
		b.emit(ActivityPlay, wake, b.labels.Activity())
		b.sleep(i, nap, true)
	}
}

func (b *builder) toddler(rule Rule, wake int) {
	morning := rule.Activity.Clamp(wake)
	afternoon := morning
	if rule.AfternoonActivity != nil {
		afternoon = rule.AfternoonActivity.Clamp(wake)
	}
	midday := 0
	if len(rule.NapMinutes) > 0 {
		midday = rule.NapMinutes[0]
	}

	b.emit(ActivityEat, rule.FeedMinutes, b.labels.Eat())
	b.emit(ActivityPlay, morning, b.labels.Activity())
	if midday > 0 {
		b.sleep(0, midday, true)
	}
	b.emit(ActivityEat, rule.FeedMinutes, b.labels.Eat())
	b.emit(ActivityPlay, afternoon, b.labels.Activity())
	b.emit(ActivityEat, rule.FeedMinutes, b.labels.Eat())
	if rule.BedtimeRoutineMinutes > 0 {
		b.emit(ActivityPlay, rule.BedtimeRoutineMinutes, b.labels.Activity())
	}
	if rule.NightSleepMinutes > 0 {
		b.sleep(NightSleepIndex, rule.NightSleepMinutes, false)
	}
}
