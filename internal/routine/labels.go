package routine

import (
	"fmt"
	"strings"
)

// NightSleepIndex is passed to LabelProvider.Sleep for the overnight sleep phase.
const NightSleepIndex = -1

// LabelProvider supplies display text for generated phases.
// napIndex is 0-based; NightSleepIndex marks the overnight sleep.
type LabelProvider interface {
	Eat() string
	Activity() string
	Sleep(napIndex int) string
	YourTime() string
}

// Labels is a LabelProvider backed by fixed strings.
// NapFormat receives the 1-based nap number.
type Labels struct {
	EatText      string `json:"eat,omitempty"`
	ActivityText string `json:"activity,omitempty"`
	NapFormat    string `json:"nap_format,omitempty"`
	NightText    string `json:"night,omitempty"`
	YourTimeText string `json:"your_time,omitempty"`
}

func (l Labels) Eat() string      { return l.EatText }
func (l Labels) Activity() string { return l.ActivityText }
func (l Labels) YourTime() string { return l.YourTimeText }

func (l Labels) Sleep(napIndex int) string {
	if napIndex == NightSleepIndex {
		return l.NightText
	}
	if strings.Contains(l.NapFormat, "%d") {
		return fmt.Sprintf(l.NapFormat, napIndex+1)
	}
	return l.NapFormat
}

// Merge returns l with every empty field taken from def.
func (l Labels) Merge(def Labels) Labels {
	if l.EatText == "" {
		l.EatText = def.EatText
	}
	if l.ActivityText == "" {
		l.ActivityText = def.ActivityText
	}
	if l.NapFormat == "" {
		l.NapFormat = def.NapFormat
	}
	if l.NightText == "" {
		l.NightText = def.NightText
	}
	if l.YourTimeText == "" {
		l.YourTimeText = def.YourTimeText
	}
	return l
}

var builtinLabels = map[string]Labels{
	"en": {
		EatText:      "Eat",
		ActivityText: "Activity",
		NapFormat:    "Nap %d",
		NightText:    "Night sleep",
		YourTimeText: "Your time",
	},
	"id": {
		EatText:      "Makan",
		ActivityText: "Aktivitas",
		NapFormat:    "Tidur siang %d",
		NightText:    "Tidur malam",
		YourTimeText: "Waktu Anda",
	},
}

// BuiltinLabels returns the compiled-in labels for a locale ("en" when unknown).
func BuiltinLabels(locale string) Labels {
	l := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(l, "-_"); i > 0 {
		l = l[:i]
	}
	if v, ok := builtinLabels[l]; ok {
		return v
	}
	return builtinLabels["en"]
}
