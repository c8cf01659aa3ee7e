package app

// StopReason is logged by Stop to tell signal shutdowns from fatal errors.
type StopReason string

const (
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
)
