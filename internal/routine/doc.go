// Package routine implements the daily routine schedule engine.
//
// A day is a sequence of phases (eat, activity, sleep, your_time) derived from a
// baby's age band and a single first-wake-time anchor.
//
//   - catalog.go: compiled-in, age-banded formula rules and wake-window estimates
//   - builder.go: pure generation of the phase list from a rule and an anchor
//   - timing.go:  projection of durations onto absolute minute spans,
//     midnight-crossing detection and "now" classification
//   - cascade.go: single-phase edits that cascade forward through the same day
//   - engine.go:  resolution of a day's list (override or regenerated) and the
//     persisted mutation paths (phase edit, anchor edit, reset)
//
// Everything except Engine is synchronous and side-effect free.
//
// A your_time phase never occupies time of its own: it mirrors the sleep phase it is
// paired with (same start, same duration) and represents the caregiver's free window
// while the baby sleeps.
package routine
