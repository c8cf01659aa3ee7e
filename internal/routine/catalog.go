package routine

import "slices"

// Rule is an age-banded formula.
//
// A rule covers ages [MinWeeks, MaxWeeks). MaxWeeks is nil only for the oldest,
// open-ended band. Optional fields are zero/nil when not configured.
type Rule struct {
	ID          string `json:"id"`
	MinWeeks    int    `json:"minWeeks"`
	MaxWeeks    *int   `json:"maxWeeks,omitempty"`
	FeedMinutes int    `json:"feedMinutes"`
	NapMinutes  []int  `json:"napMinutes"`
	Activity    Range  `json:"activityRange"`

	// ThirdNapDropWakeThreshold drops the last nap once the clamped wake window
	// reaches this many minutes.
	ThirdNapDropWakeThreshold int    `json:"thirdNapDropWakeThreshold,omitempty"`
	MorningNapCapMinutes      int    `json:"morningNapCapMinutes,omitempty"`
	AfternoonActivity         *Range `json:"afternoonActivityRange,omitempty"`
	NightSleepMinutes         int    `json:"nightSleepMinutes,omitempty"`
	BedtimeRoutineMinutes     int    `json:"bedtimeRoutineMinutes,omitempty"`
}

// clone returns r with its slice and pointer fields copied.
func (r Rule) clone() Rule {
	r.NapMinutes = slices.Clone(r.NapMinutes)
	if r.MaxWeeks != nil {
		v := *r.MaxWeeks
		r.MaxWeeks = &v
	}
	if r.AfternoonActivity != nil {
		v := *r.AfternoonActivity
		r.AfternoonActivity = &v
	}
	return r
}

// OpenEnded reports whether r is the oldest band (toddler strategy).
func (r Rule) OpenEnded() bool { return r.MaxWeeks == nil }

// Contains reports whether weeks falls into r's band.
func (r Rule) Contains(weeks int) bool {
	if weeks < r.MinWeeks {
		return false
	}
	return r.MaxWeeks == nil || weeks < *r.MaxWeeks
}

func weeks(n int) *int { return &n }

// NewbornRuleID is the fallback rule for unknown ages and unknown ids.
const NewbornRuleID = "newborn"

// catalog is ordered by MinWeeks; bands are contiguous from 0 and the last is open.
var catalog = []Rule{
	{
		ID:          NewbornRuleID,
		MinWeeks:    0,
		MaxWeeks:    weeks(6),
		FeedMinutes: 35,
		NapMinutes:  []int{90, 90, 90, 90, 60},
		Activity:    Range{Min: 45, Max: 75},
	},
	{
		ID:          "three_hour",
		MinWeeks:    6,
		MaxWeeks:    weeks(12),
		FeedMinutes: 30,
		NapMinutes:  []int{90, 90, 90, 60},
		Activity:    Range{Min: 60, Max: 90},
	},
	{
		ID:                   "three_half_hour",
		MinWeeks:             12,
		MaxWeeks:             weeks(16),
		FeedMinutes:          30,
		NapMinutes:           []int{120, 90, 90, 45},
		Activity:             Range{Min: 75, Max: 105},
		MorningNapCapMinutes: 105,
	},
	{
		ID:                        "four_hour",
		MinWeeks:                  16,
		MaxWeeks:                  weeks(26),
		FeedMinutes:               30,
		NapMinutes:                []int{120, 120, 45},
		Activity:                  Range{Min: 105, Max: 150},
		ThirdNapDropWakeThreshold: 135,
		MorningNapCapMinutes:      120,
	},
	{
		ID:                        "six_month",
		MinWeeks:                  26,
		MaxWeeks:                  weeks(40),
		FeedMinutes:               30,
		NapMinutes:                []int{90, 120, 30},
		Activity:                  Range{Min: 150, Max: 180},
		ThirdNapDropWakeThreshold: 165,
		MorningNapCapMinutes:      90,
	},
	{
		ID:                   "nine_month",
		MinWeeks:             40,
		MaxWeeks:             weeks(56),
		FeedMinutes:          30,
		NapMinutes:           []int{90, 90},
		Activity:             Range{Min: 180, Max: 240},
		MorningNapCapMinutes: 90,
	},
	{
		ID:                    "toddler",
		MinWeeks:              56,
		FeedMinutes:           30,
		NapMinutes:            []int{120},
		Activity:              Range{Min: 240, Max: 330},
		AfternoonActivity:     &Range{Min: 210, Max: 270},
		NightSleepMinutes:     660,
		BedtimeRoutineMinutes: 30,
	},
}

// wakeWindowSteps maps inclusive age upper bounds (weeks) to a seed wake window.
var wakeWindowSteps = []struct {
	upToWeeks int
	minutes   int
}{
	{4, 50},
	{8, 60},
	{12, 75},
	{16, 90},
	{24, 120},
	{32, 150},
	{40, 180},
	{56, 210},
	{78, 270},
}

const oldestWakeWindow = 300

// Rules returns a copy of the catalog in band order.
func Rules() []Rule {
	out := make([]Rule, len(catalog))
	for i, r := range catalog {
		out[i] = r.clone()
	}
	return out
}

// RuleForAge returns the rule whose band contains weeks.
// A nil or negative age resolves to the newborn rule.
func RuleForAge(weeks *int) Rule {
	if weeks == nil || *weeks < 0 {
		return catalog[0].clone()
	}
	for _, r := range catalog {
		if r.Contains(*weeks) {
			return r.clone()
		}
	}
	// unreachable while the last band is open-ended
	return catalog[len(catalog)-1].clone()
}

// RuleByID returns the rule with the given id, or the newborn rule if unknown.
func RuleByID(id string) Rule {
	r, ok := LookupRule(id)
	if !ok {
		return catalog[0].clone()
	}
	return r
}

// LookupRule is RuleByID without the fallback.
func LookupRule(id string) (Rule, bool) {
	for _, r := range catalog {
		if r.ID == id {
			return r.clone(), true
		}
	}
	return Rule{}, false
}

// EstimateWakeWindow returns the seed wake window for an age in weeks.
// The result is non-decreasing in weeks.
func EstimateWakeWindow(weeks int) int {
	for _, s := range wakeWindowSteps {
		if weeks <= s.upToWeeks {
			return s.minutes
		}
	}
	return oldestWakeWindow
}
