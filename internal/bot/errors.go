package bot

import (
	"context"
	"errors"
	"strings"

	"routinebot/internal/routine"
)

// usageError is a user mistake; its text is shown verbatim.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(msg string) error { return usageError{msg: msg} }

// userMessage maps an error to text that is safe to show in chat.
func userMessage(err error) string {
	var ue usageError
	switch {
	case errors.As(err, &ue):
		return ue.msg
	case errors.Is(err, routine.ErrNotFound):
		return "Not found: " + strings.TrimPrefix(err.Error(), routine.ErrNotFound.Error()+": ")
	case errors.Is(err, routine.ErrInvalidClock):
		return "Times must look like HH:MM (24h)."
	case errors.Is(err, routine.ErrInvalidRange):
		return "The end time must be after the start time on the same day. Phases cannot be edited across midnight."
	case errors.Is(err, routine.ErrInvalidDate):
		return "Dates must look like YYYY-MM-DD."
	case errors.Is(err, context.DeadlineExceeded):
		return "That took too long, try again."
	default:
		return "Something went wrong."
	}
}

func (r *Request) replyError(ctx context.Context, err error) {
	if r.bot == nil || r.bot.adapter == nil {
		return
	}
	// The handler's ctx may already be past its deadline.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	_, _ = r.bot.adapter.SendText(ctx, r.Chat, userMessage(err), nil)
}
