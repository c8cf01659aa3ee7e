package routine

import "errors"

var (
	// ErrMissingLabels is returned when generation is attempted without a label provider.
	ErrMissingLabels = errors.New("routine: label provider is required")

	// ErrNotFound is returned when a baby or its source rule cannot be resolved.
	ErrNotFound = errors.New("routine: not found")

	ErrInvalidClock = errors.New("routine: invalid clock time (want HH:MM)")
	ErrInvalidDate  = errors.New("routine: invalid date (want YYYY-MM-DD)")

	// ErrInvalidRange is returned when an adjusted phase would end at or before its
	// start. Both times are read on the same day, so an edit cannot end at or past midnight.
	ErrInvalidRange = errors.New("routine: end time must be after start time on the same day")
)

// IsInputError reports whether err was caused by malformed caller input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidClock) || errors.Is(err, ErrInvalidDate) || errors.Is(err, ErrInvalidRange)
}
