package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"routinebot/internal/routine"
	logx "routinebot/pkg/logx"
)

const (
	PruneJobName  = "prune_overrides"
	DigestJobName = "daily_digest"
)

// Pruner deletes day overrides dated before a "YYYY-MM-DD" key.
type Pruner interface {
	PruneDayOverrides(ctx context.Context, before string) (int, error)
}

// PruneJob removes overrides older than retainDays, counted back from now's date.
// retainDays <= 0 keeps everything and the job does nothing.
func PruneJob(sched cron.Schedule, store Pruner, retainDays int, now func() time.Time, log logx.Logger) Job {
	return Job{
		Name:     PruneJobName,
		Schedule: sched,
		Timeout:  time.Minute,
		Run: func(ctx context.Context) error {
			if retainDays <= 0 {
				return nil
			}
			before := PruneCutoff(now(), retainDays)
			n, err := store.PruneDayOverrides(ctx, before)
			if err != nil {
				return fmt.Errorf("prune before %s: %w", before, err)
			}
			if n > 0 {
				log.Info("pruned day overrides", logx.String("before", before), logx.Int("removed", n))
			}
			return nil
		},
	}
}

// PruneCutoff returns the first date key that is kept.
func PruneCutoff(now time.Time, retainDays int) string {
	return routine.FormatDate(now.AddDate(0, 0, -retainDays))
}

// DigestJob calls post for every baby returned by babies. Failures for one baby
// do not stop the rest; they are joined into the returned error.
func DigestJob(sched cron.Schedule, babies func() []string, post func(ctx context.Context, babyID string) error, log logx.Logger) Job {
	return Job{
		Name:     DigestJobName,
		Schedule: sched,
		Timeout:  2 * time.Minute,
		Run: func(ctx context.Context) error {
			var errs []error
			sent := 0
			for _, id := range babies() {
				if err := ctx.Err(); err != nil {
					errs = append(errs, err)
					break
				}
				if err := post(ctx, id); err != nil {
					errs = append(errs, fmt.Errorf("baby %s: %w", id, err))
					continue
				}
				sent++
			}
			log.Debug("digest posted", logx.Int("babies", sent), logx.Int("failed", len(errs)))
			return errors.Join(errs...)
		},
	}
}
