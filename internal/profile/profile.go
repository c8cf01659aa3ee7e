// Package profile resolves baby profiles from configuration overlaid with the
// settings users change at runtime (first wake time, explicit rule).
package profile

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"routinebot/internal/config"
	"routinebot/internal/routine"
)

// DefaultFirstWakeTime applies when neither config nor settings name one.
const DefaultFirstWakeTime = "07:00"

// SettingsReader is the subset of storage the registry needs.
type SettingsReader interface {
	GetBabySettings(ctx context.Context, babyID string) (routine.BabySettings, bool, error)
}

// Registry is a routine.ProfileSource. Replace swaps the configured babies
// atomically on config reload.
type Registry struct {
	settings SettingsReader

	mu       sync.RWMutex
	babies   map[string]routine.Profile
	order    []string
	byChat   map[int64][]string
	defaults string
}

func NewRegistry(settings SettingsReader) *Registry {
	return &Registry{settings: settings, babies: map[string]routine.Profile{}, byChat: map[int64][]string{}}
}

// Replace installs the babies from rc. Invalid birth dates are ignored
// (config validation rejects them before they get here).
func (r *Registry) Replace(rc config.RoutineConfig) {
	def := strings.TrimSpace(rc.DefaultFirstWakeTime)
	if def == "" {
		def = DefaultFirstWakeTime
	}
	babies := make(map[string]routine.Profile, len(rc.Babies))
	order := make([]string, 0, len(rc.Babies))
	byChat := map[int64][]string{}
	for _, b := range rc.Babies {
		id := strings.TrimSpace(b.ID)
		if id == "" {
			continue
		}
		p := routine.Profile{
			BabyID:        id,
			Name:          strings.TrimSpace(b.Name),
			FirstWakeTime: routine.FormatClockString(strings.TrimSpace(b.FirstWakeTime)),
			RuleID:        strings.TrimSpace(b.RuleID),
			Locale:        firstNonEmpty(b.Locale, rc.Locale),
			Chats:         append([]int64(nil), b.Chats...),
		}
		if p.Name == "" {
			p.Name = id
		}
		if p.FirstWakeTime == "" {
			p.FirstWakeTime = def
		}
		if bd := strings.TrimSpace(b.BirthDate); bd != "" {
			if t, err := routine.ParseDate(bd, time.UTC); err == nil {
				p.BirthDate = t
			}
		}
		babies[id] = p
		order = append(order, id)
		for _, c := range p.Chats {
			byChat[c] = append(byChat[c], id)
		}
	}

	r.mu.Lock()
	r.babies, r.order, r.byChat, r.defaults = babies, order, byChat, def
	r.mu.Unlock()
}

// Profile returns the configured profile with stored settings applied.
func (r *Registry) Profile(ctx context.Context, babyID string) (routine.Profile, error) {
	r.mu.RLock()
	p, ok := r.babies[strings.TrimSpace(babyID)]
	r.mu.RUnlock()
	if !ok {
		return routine.Profile{}, fmt.Errorf("%w: baby %q", routine.ErrNotFound, babyID)
	}
	p.Chats = append([]int64(nil), p.Chats...)
	if r.settings == nil {
		return p, nil
	}
	st, found, err := r.settings.GetBabySettings(ctx, p.BabyID)
	if err != nil {
		return routine.Profile{}, fmt.Errorf("load settings for %q: %w", p.BabyID, err)
	}
	if found {
		p = st.Overlay(p)
	}
	return p, nil
}

// IDs returns configured baby ids in config order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// ForChat returns the babies that list chatID, in config order.
func (r *Registry) ForChat(chatID int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.byChat[chatID])
}

// Chats returns the chats subscribed to babyID.
func (r *Registry) Chats(babyID string) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.babies[babyID].Chats)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
