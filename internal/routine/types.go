package routine

import (
	"time"
)

// Activity is the kind of a phase.
type Activity string

const (
	ActivityEat      Activity = "eat"
	ActivityPlay     Activity = "activity"
	ActivitySleep    Activity = "sleep"
	ActivityYourTime Activity = "your_time"
)

// Item is one phase of a day.
//
// StartTime is a day-relative "HH:MM" clock string; phases after midnight wrap.
// A sleep phase and its your_time mirror share a non-zero PairID.
type Item struct {
	Order           int      `json:"order"`
	Activity        Activity `json:"activityType"`
	StartTime       string   `json:"startTime"`
	DurationMinutes int      `json:"durationMinutes"`
	Label           string   `json:"label"`
	PairID          int      `json:"pairId,omitempty"`
}

// Range is an inclusive [Min, Max] band in minutes.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Clamp returns v bounded into r.
func (r Range) Clamp(v int) int {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// DayOverride is a fully materialized phase list for one baby and one calendar date.
// It supersedes generation for that date only.
type DayOverride struct {
	ID           string    `json:"id"`
	BabyID       string    `json:"babyId"`
	Date         string    `json:"date"`
	SourceRuleID string    `json:"sourceRuleId"`
	Items        []Item    `json:"scheduleItems"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AutoRuleID stored as a baby's rule selects the rule by age, overriding any
// rule pinned in configuration.
const AutoRuleID = "auto"

// BabySettings are the persisted, user-editable parts of a profile.
// Empty fields defer to configuration.
type BabySettings struct {
	BabyID        string    `json:"babyId"`
	FirstWakeTime string    `json:"firstWakeTime,omitempty"`
	RuleID        string    `json:"ruleId,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Overlay returns p with the non-empty settings applied.
func (s BabySettings) Overlay(p Profile) Profile {
	if s.FirstWakeTime != "" {
		p.FirstWakeTime = s.FirstWakeTime
	}
	switch s.RuleID {
	case "":
	case AutoRuleID:
		p.RuleID = ""
	default:
		p.RuleID = s.RuleID
	}
	return p
}

// AuditEntry records a mutating operation.
type AuditEntry struct {
	At       time.Time `json:"at"`
	Actor    string    `json:"actor,omitempty"`
	BabyID   string    `json:"babyId"`
	Date     string    `json:"date,omitempty"`
	Action   string    `json:"action"`
	Target   string    `json:"target,omitempty"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	MetaJSON string    `json:"meta,omitempty"`
}

// Profile is everything the engine needs to know about one baby.
type Profile struct {
	BabyID        string
	Name          string
	BirthDate     time.Time // zero when unknown
	FirstWakeTime string
	RuleID        string // explicit rule selection; empty = infer from age
	Locale        string
	Chats         []int64
}

// AgeWeeks returns the completed weeks of age on the given day, or nil when the
// birth date is unknown. Days before birth count as week 0.
func (p Profile) AgeWeeks(on time.Time) *int {
	if p.BirthDate.IsZero() {
		return nil
	}
	b := time.Date(p.BirthDate.Year(), p.BirthDate.Month(), p.BirthDate.Day(), 0, 0, 0, 0, time.UTC)
	d := time.Date(on.Year(), on.Month(), on.Day(), 0, 0, 0, 0, time.UTC)
	days := int(d.Sub(b).Hours() / 24)
	w := 0
	if days > 0 {
		w = days / 7
	}
	return &w
}
