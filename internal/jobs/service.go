package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "routinebot/pkg/logx"
)

// Job is one named, scheduled task.
type Job struct {
	Name     string
	Schedule cron.Schedule
	Timeout  time.Duration // 0 means 5m
	Run      func(ctx context.Context) error
}

// Service owns one cron instance. Apply rebuilds it with a new job set.
type Service struct {
	log logx.Logger

	mu   sync.Mutex
	c    *cron.Cron
	loc  *time.Location
	jobs []Job
	ids  map[string]cron.EntryID
	ctx  context.Context
}

func New(log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{log: log, loc: time.Local, ctx: context.Background()}
}

// Start begins triggering. ctx bounds every job run.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	if s.c != nil {
		return
	}
	s.startLocked()
}

// Apply replaces the jobs and location, restarting triggers if running.
func (s *Service) Apply(loc *time.Location, jobs []Job) {
	if loc == nil {
		loc = time.Local
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loc = loc
	s.jobs = append([]Job(nil), jobs...)
	if s.c == nil {
		return
	}
	old := s.c
	s.startLocked()
	go old.Stop()
}

func (s *Service) startLocked() {
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
	)
	ids := make(map[string]cron.EntryID, len(s.jobs))
	for _, j := range s.jobs {
		if j.Schedule == nil || j.Run == nil {
			continue
		}
		ids[j.Name] = c.Schedule(j.Schedule, cron.FuncJob(s.wrap(j)))
	}
	c.Start()
	s.ids = ids
	s.c = c
	s.log.Info("jobs started", logx.String("tz", s.loc.String()), logx.Int("jobs", len(s.jobs)))
}

func (s *Service) wrap(j Job) func() {
	return func() {
		s.mu.Lock()
		parent := s.ctx
		s.mu.Unlock()
		if _, err := s.run(parent, j); err != nil {
			s.log.Warn("job failed", logx.String("job", j.Name), logx.Err(err))
		}
	}
}

func (s *Service) run(parent context.Context, j Job) (time.Duration, error) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	start := time.Now()
	err := j.Run(ctx)
	took := time.Since(start)
	s.log.Debug("job finished", logx.String("job", j.Name), logx.Duration("took", took), logx.Bool("ok", err == nil))
	return took, err
}

// RunNow runs the named job synchronously, outside its schedule.
func (s *Service) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var job *Job
	for i := range s.jobs {
		if s.jobs[i].Name == name {
			j := s.jobs[i]
			job = &j
			break
		}
	}
	s.mu.Unlock()
	if job == nil {
		return fmt.Errorf("unknown job %q", name)
	}
	_, err := s.run(ctx, *job)
	return err
}

// Next reports the next trigger time per job name while running.
func (s *Service) Next() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]time.Time{}
	if s.c == nil {
		return out
	}
	for name, id := range s.ids {
		out[name] = s.c.Entry(id).Next
	}
	return out
}

// Stop halts triggering and waits for running jobs, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("jobs stopped")
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
