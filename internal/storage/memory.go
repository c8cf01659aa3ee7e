package storage

import (
	"context"
	"sync"

	"routinebot/internal/routine"
)

// Memory is a process-local Store. The file driver embeds it as its index.
type Memory struct {
	mu        sync.RWMutex
	overrides map[overrideKey]routine.DayOverride
	settings  map[string]routine.BabySettings
	audit     []routine.AuditEntry
	keepAudit int
}

// NewMemory returns an empty in-memory store keeping the last 1000 audit entries.
func NewMemory() *Memory {
	return &Memory{
		overrides: map[overrideKey]routine.DayOverride{},
		settings:  map[string]routine.BabySettings{},
		keepAudit: 1000,
	}
}

func (m *Memory) GetDayOverride(_ context.Context, babyID, date string) (routine.DayOverride, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.overrides[keyOf(babyID, date)]
	if !ok {
		return routine.DayOverride{}, false, nil
	}
	return cloneOverride(o), true, nil
}

func (m *Memory) PutDayOverride(_ context.Context, o routine.DayOverride) error {
	m.mu.Lock()
	m.overrides[keyOf(o.BabyID, o.Date)] = cloneOverride(o)
	m.mu.Unlock()
	return nil
}

func (m *Memory) DeleteDayOverride(_ context.Context, babyID, date string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := keyOf(babyID, date)
	_, ok := m.overrides[k]
	delete(m.overrides, k)
	return ok, nil
}

func (m *Memory) PruneDayOverrides(_ context.Context, before string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.overrides {
		if k.date < before {
			delete(m.overrides, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) GetBabySettings(_ context.Context, babyID string) (routine.BabySettings, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[babyID]
	return s, ok, nil
}

func (m *Memory) PutBabySettings(_ context.Context, s routine.BabySettings) error {
	m.mu.Lock()
	m.settings[s.BabyID] = s
	m.mu.Unlock()
	return nil
}

func (m *Memory) AppendAudit(_ context.Context, e routine.AuditEntry) error {
	m.mu.Lock()
	m.audit = append(m.audit, e)
	if m.keepAudit > 0 && len(m.audit) > m.keepAudit {
		m.audit = append([]routine.AuditEntry(nil), m.audit[len(m.audit)-m.keepAudit:]...)
	}
	m.mu.Unlock()
	return nil
}

// Audit returns a copy of the retained audit entries, oldest first.
func (m *Memory) Audit() []routine.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]routine.AuditEntry(nil), m.audit...)
}

func (m *Memory) Close() error { return nil }
