package storage

import (
	"context"
	"errors"
	"time"

	"routinebot/internal/routine"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the routine engine and background jobs.
type Store interface {
	routine.Store

	// PruneDayOverrides deletes overrides dated strictly before the given
	// "YYYY-MM-DD" key and reports how many were removed.
	PruneDayOverrides(ctx context.Context, before string) (int, error)
	Close() error
}

type overrideKey struct{ baby, date string }

func keyOf(babyID, date string) overrideKey { return overrideKey{baby: babyID, date: date} }

func cloneOverride(o routine.DayOverride) routine.DayOverride {
	o.Items = append([]routine.Item(nil), o.Items...)
	return o
}
