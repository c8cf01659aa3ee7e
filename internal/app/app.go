package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"routinebot/internal/bot"
	"routinebot/internal/config"
	"routinebot/internal/eventbus"
	"routinebot/internal/httpapi"
	"routinebot/internal/jobs"
	"routinebot/internal/profile"
	"routinebot/internal/routine"
	rtsup "routinebot/internal/runtime/supervisor"
	"routinebot/internal/storage"
	kit "routinebot/internal/transport"
	"routinebot/internal/transport/telegram"
	logx "routinebot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store    storage.Store
	profiles *profile.Registry
	engine   *routine.Engine
	labels   atomic.Pointer[map[string]routine.Labels]

	// adapter and bot are nil when telegram.token is empty.
	adapter *telegram.Adapter
	bot     *bot.Bot

	jobs *jobs.Service
	http *httpapi.Server

	updates chan kit.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.Component("telegram"))

	var ad *telegram.Adapter
	if strings.TrimSpace(cfg.Telegram.Token) != "" {
		pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		ad, err = telegram.New(telegram.Config{
			Token:       cfg.Telegram.Token,
			PollTimeout: pollTimeout,
		}, bootLog)
		if err != nil {
			return nil, err
		}
	}

	var send logx.SendFunc
	if ad != nil {
		send = func(ctx context.Context, chatID int64, threadID int, text string) error {
			_, err := ad.SendText(ctx, kit.ChatTarget{ChatID: chatID, ThreadID: threadID}, text, nil)
			return err
		}
	}
	logSvc, log := logx.New(mapLogConfig(cfg), send)
	appLog := log.With(logx.Component("app"))
	if cfg.Logging.Telegram.Enabled && (ad == nil || cfg.Telegram.LogChatID == 0) {
		appLog.Warn("logging.telegram is enabled but telegram.token or telegram.log_chat_id is missing")
	}

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.Component("storage")))
	if err != nil {
		return nil, err
	}
	appLog.Info("storage ready", logx.String("driver", sc.Driver))

	loc, err := cfg.Location()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{
		cfgm:    cfgm,
		log:     appLog,
		logs:    logSvc,
		bus:     eventbus.New(),
		store:   store,
		adapter: ad,
		jobs:    jobs.New(log.With(logx.Component("jobs"))),
		http:    httpapi.NewServer(log.With(logx.Component("http"))),
		updates: make(chan kit.Update, 256),
	}
	a.setLabels(cfg.Routine.Labels)

	a.profiles = profile.NewRegistry(store)
	a.profiles.Replace(cfg.Routine)

	a.engine = routine.NewEngine(store, a.profiles,
		routine.WithBus(a.bus),
		routine.WithLogger(log.With(logx.Component("routine"))),
		routine.WithLocation(loc),
		routine.WithLabels(a.labelsFor),
	)

	if ad != nil {
		a.bot = bot.New(mapBotConfig(cfg), ad, a.engine, a.profiles, log.With(logx.Component("bot")))
	} else {
		appLog.Info("telegram.token is empty; chat front end disabled")
	}
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.Component("config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return a.validate(cfg) })

	cfg := a.cfgm.Get()

	if a.adapter != nil {
		if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
			return err
		}
		a.sup.Go("bot.dispatch", func(c context.Context) error {
			return a.bot.Dispatch(c, a.updates)
		})
		a.sup.Go("bot.announce", func(c context.Context) error {
			return a.bot.Announce(c, a.bus)
		})
		a.sup.Go0("bot.menu", func(c context.Context) {
			mctx, cancel := context.WithTimeout(c, 15*time.Second)
			defer cancel()
			if err := a.bot.UpdateMenu(mctx); err != nil {
				a.log.Warn("command menu update failed", logx.Err(err))
			}
		})
	}

	list, err := a.jobsFor(cfg)
	if err != nil {
		return err
	}
	a.jobs.Apply(a.engine.Location(), list)
	a.jobs.Start(a.sup.Context())

	if err := a.applyHTTP(a.sup.Context(), cfg); err != nil {
		return fmt.Errorf("http: %w", err)
	}

	// Debug-level event log; components subscribe for themselves.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}

	a.log.Info("app started",
		logx.Int("babies", len(a.profiles.IDs())),
		logx.String("tz", a.engine.Location().String()),
		logx.Bool("telegram", a.adapter != nil),
		logx.String("http", a.http.Addr()),
	)
	return nil
}

// validate runs on every reload before the new config is committed.
func (a *App) validate(cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if raw := strings.TrimSpace(cfg.Scheduler.PruneCron); raw != "" {
		if _, err := jobs.ParseSchedule(raw); err != nil {
			return fmt.Errorf("%w: scheduler.prune_cron: %v", config.ErrInvalid, err)
		}
	}
	if _, _, err := mapHTTPConfig(cfg); err != nil {
		return err
	}
	_, err := mapStorageConfig(cfg)
	return err
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		switch s {
		case "storage":
			a.log.Warn("storage config changed; restart required for changes to take effect")
		case "telegram":
			if strings.TrimSpace(oldCfg.Telegram.Token) != strings.TrimSpace(newCfg.Telegram.Token) ||
				oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout {
				a.log.Warn("telegram token or poll timeout changed; restart required")
			}
		}
	}

	a.logs.Apply(mapLogConfig(newCfg))

	a.setLabels(newCfg.Routine.Labels)
	a.profiles.Replace(newCfg.Routine)
	if loc, err := newCfg.Location(); err == nil {
		a.engine.SetLocation(loc)
	}

	if a.bot != nil {
		a.bot.Apply(mapBotConfig(newCfg))
	}

	if list, err := a.jobsFor(newCfg); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous jobs", logx.Err(err))
	} else {
		a.jobs.Apply(a.engine.Location(), list)
	}

	if err := a.applyHTTP(ctx, newCfg); err != nil {
		a.log.Warn("http apply failed", logx.Err(err))
	}

	a.log.Info("config reloaded", fields...)
}

func (a *App) applyHTTP(ctx context.Context, cfg *config.Config) error {
	sc, opt, err := mapHTTPConfig(cfg)
	if err != nil {
		return err
	}
	opt.Log = a.log.With(logx.Component("http"))
	return a.http.Apply(ctx, sc, httpapi.NewHandler(a.engine, a.profiles, opt))
}

// jobsFor builds the housekeeping jobs for cfg; none when the scheduler is off.
func (a *App) jobsFor(cfg *config.Config) ([]jobs.Job, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	raw := strings.TrimSpace(cfg.Scheduler.PruneCron)
	if raw == "" {
		raw = "@daily"
	}
	pruneAt, err := jobs.ParseSchedule(raw)
	if err != nil {
		return nil, fmt.Errorf("scheduler.prune_cron: %w", err)
	}
	log := a.log.With(logx.Component("jobs"))
	list := []jobs.Job{jobs.PruneJob(pruneAt, a.store, retainDays(cfg), a.engine.Now, log)}

	if at := strings.TrimSpace(cfg.Scheduler.DigestTime); at != "" {
		if a.bot == nil {
			a.log.Warn("scheduler.digest_time is set but telegram is disabled; digest skipped")
			return list, nil
		}
		digestAt, err := jobs.DailyAt(at)
		if err != nil {
			return nil, fmt.Errorf("scheduler.digest_time: %w", err)
		}
		list = append(list, jobs.DigestJob(digestAt, a.profiles.IDs, a.bot.PostDigest, log))
	}
	return list, nil
}

func (a *App) setLabels(m map[string]routine.Labels) {
	norm := make(map[string]routine.Labels, len(m))
	for k, v := range m {
		norm[labelKey(k)] = v
	}
	a.labels.Store(&norm)
}

// labelsFor merges configured label overrides over the built-in set.
func (a *App) labelsFor(locale string) routine.LabelProvider {
	base := routine.BuiltinLabels(locale)
	if m := a.labels.Load(); m != nil {
		if l, ok := (*m)[labelKey(locale)]; ok {
			return l.Merge(base)
		}
	}
	return base
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// step runs one shutdown action bounded by max so a stuck component cannot stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				err := <-done
				a.log.Info("stop step finished after deadline",
					logx.String("name", name), logx.Bool("ok", err == nil), logx.Duration("took", time.Since(start)))
			}()
		}
	}

	step("http", 5*time.Second, func(c context.Context) error { a.http.Stop(c); return nil })
	step("jobs", 3*time.Second, func(c context.Context) error { a.jobs.Stop(c); return nil })
	if a.adapter != nil {
		step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	}
	step("supervisor", 2*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}
