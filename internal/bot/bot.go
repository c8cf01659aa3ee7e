package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"routinebot/internal/routine"
	rtsup "routinebot/internal/runtime/supervisor"
	kit "routinebot/internal/transport"
	logx "routinebot/pkg/logx"
)

// Routines is the slice of *routine.Engine the bot drives.
type Routines interface {
	DaySchedule(ctx context.Context, babyID, date string) (routine.Day, error)
	AdjustPhaseTiming(ctx context.Context, babyID, date string, order int, newStart, newEnd string) (string, error)
	SetFirstWakeTime(ctx context.Context, babyID, date, anchor string) error
	SelectRule(ctx context.Context, babyID, ruleID string) error
	ResetDay(ctx context.Context, babyID, date string) (bool, error)
	Now() time.Time
}

// Directory maps babies to chats. *profile.Registry implements it.
type Directory interface {
	Profile(ctx context.Context, babyID string) (routine.Profile, error)
	IDs() []string
	ForChat(chatID int64) []string
	Chats(babyID string) []int64
}

// Config is the hot-swappable part of the bot's behavior.
type Config struct {
	Owners             []int64
	Workers            int     // default 4; read once by Dispatch
	RatePerChat        float64 // commands per second per chat; default 1
	OwnerOnlyMutations bool
	Announce           bool
}

// Access controls who may run a command.
type Access int

const (
	AccessEveryone Access = iota
	AccessMutation        // owners, or chat members unless OwnerOnlyMutations
)

type Command struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	Access      Access
	Timeout     time.Duration
	Handle      HandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	Payload string // callback payload
	ReqID   string
	Log     logx.Logger

	bot *Bot
}

func (r *Request) isOwner() bool { return r.bot.isOwner(r.FromID) }

// actor identifies the requester in audit records and change events.
func (r *Request) actor() string { return fmt.Sprintf("tg:%d:%d", r.Chat.ChatID, r.FromID) }

// Bot routes updates to command handlers.
type Bot struct {
	log     logx.Logger
	adapter kit.Adapter
	engine  Routines
	dir     Directory
	cfg     atomic.Pointer[Config]

	cmds    []Command
	byName  map[string]int
	actions map[string]callbackFunc

	limMu    sync.Mutex
	limiters map[int64]*rate.Limiter

	jobs    chan func()
	enqueue func(fn func()) bool
}

type callbackFunc func(ctx context.Context, req *Request) error

func New(cfg Config, adapter kit.Adapter, engine Routines, dir Directory, log logx.Logger) *Bot {
	if log.IsZero() {
		log = logx.Nop()
	}
	b := &Bot{
		log:      log,
		adapter:  adapter,
		engine:   engine,
		dir:      dir,
		limiters: map[int64]*rate.Limiter{},
		jobs:     make(chan func(), 256),
	}
	b.enqueue = b.tryEnqueue
	b.Apply(cfg)
	b.register(b.commands())
	return b
}

// Apply swaps the runtime config. Rate limiters are rebuilt lazily.
func (b *Bot) Apply(cfg Config) {
	cfg.Owners = slices.Clone(cfg.Owners)
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RatePerChat <= 0 {
		cfg.RatePerChat = 1
	}
	old := b.cfg.Swap(&cfg)
	if old != nil && old.RatePerChat != cfg.RatePerChat {
		b.limMu.Lock()
		b.limiters = map[int64]*rate.Limiter{}
		b.limMu.Unlock()
	}
}

func (b *Bot) config() *Config { return b.cfg.Load() }

func (b *Bot) isOwner(id int64) bool { return slices.Contains(b.config().Owners, id) }

func (b *Bot) register(cmds []Command) {
	b.cmds = cmds
	b.byName = map[string]int{}
	for i, c := range cmds {
		b.byName[c.Name] = i
		for _, a := range c.Aliases {
			if _, exists := b.byName[a]; !exists {
				b.byName[a] = i
			}
		}
	}
	b.actions = b.callbacks()
}

// Commands returns the registered commands in menu order.
func (b *Bot) Commands() []Command { return slices.Clone(b.cmds) }

func (b *Bot) allow(chatID int64) bool {
	cfg := b.config()
	b.limMu.Lock()
	lim, ok := b.limiters[chatID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerChat), 3)
		b.limiters[chatID] = lim
	}
	b.limMu.Unlock()
	return lim.Allow()
}

// tryEnqueue never blocks; a full queue rejects the job.
func (b *Bot) tryEnqueue(fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	select {
	case b.jobs <- fn:
		return true
	default:
		return false
	}
}

// UpdateMenu publishes the command list to the platform, when supported.
func (b *Bot) UpdateMenu(ctx context.Context) error {
	up, ok := b.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return nil
	}
	menu := make([]kit.BotCommand, 0, len(b.cmds))
	for _, c := range b.cmds {
		menu = append(menu, kit.BotCommand{Command: c.Name, Description: c.Description})
	}
	return up.UpdateMenuCommands(ctx, menu)
}

// Dispatch consumes updates until ctx ends or updates closes, running
// handlers on a fixed worker pool.
func (b *Bot) Dispatch(ctx context.Context, updates <-chan kit.Update) error {
	workers := b.config().Workers
	sup := rtsup.New(ctx,
		rtsup.WithLogger(b.log.With(logx.Component("bot.dispatch"))),
		rtsup.WithCancelOnError(false),
	)
	b.log.Info("command dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(b.jobs)))

	for i := range workers {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-b.jobs:
					b.runJob(idx, job)
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	defer func() {
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = sup.Stop(wctx)
		b.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			b.route(ctx, up)
		}
	}
}

func (b *Bot) runJob(worker int, job func()) {
	if job == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	job()
}

func (b *Bot) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		b.routeMessage(ctx, up)
	case kit.UpdateCallback:
		b.routeCallback(ctx, up)
	}
}

func (b *Bot) newRequest(up kit.Update, chat kit.ChatTarget, from int64, cmd string) *Request {
	rid := newReqID()
	return &Request{
		Update:  up,
		Chat:    chat,
		FromID:  from,
		Command: cmd,
		ReqID:   rid,
		Log: b.log.With(
			logx.String("rid", rid),
			logx.Chat(chat.ChatID),
			logx.Int64("from_id", from),
			logx.String("cmd", cmd),
		),
		bot: b,
	}
}

func (b *Bot) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	name, args, ok := parseCommand(msg.Text)
	if !ok {
		return
	}
	chat := msg.Chat
	idx, ok := b.byName[name]
	if !ok {
		_, _ = b.adapter.SendText(ctx, chat, "Unknown command. Try /help", nil)
		return
	}
	if !b.allow(chat.ChatID) {
		b.log.Debug("command rate limited", logx.Chat(chat.ChatID), logx.String("cmd", name))
		return
	}
	cmd := b.cmds[idx]
	req := b.newRequest(up, chat, msg.FromID, cmd.Name)
	req.Args = args

	if cmd.Access == AccessMutation && !b.mayMutate(req) {
		_, _ = b.adapter.SendText(ctx, chat, "Only owners can change routines here.", nil)
		return
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	final := Chain(cmd.Handle, MWPanicRecover(), MWRequestLog(), MWReplyError(), MWTimeout(timeout))
	if !b.enqueue(func() { _ = final(ctx, req) }) {
		_, _ = b.adapter.SendText(ctx, chat, "Busy, try again.", nil)
	}
}

func (b *Bot) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	ns, action, payload, ok := parseCallback(cb.Data)
	if !ok || ns != callbackNS {
		return
	}
	h, ok := b.actions[action]
	if !ok {
		_ = b.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	req := b.newRequest(up, cb.Chat, cb.FromID, "cb:"+action)
	req.Payload = payload

	final := Chain(HandlerFunc(h), MWPanicRecover(), MWRequestLog(), MWTimeout(15*time.Second))
	if !b.enqueue(func() {
		err := final(ctx, req)
		note := ""
		if err != nil {
			note = userMessage(err)
		}
		_ = b.adapter.AnswerCallback(ctx, cb.ID, note)
	}) {
		_ = b.adapter.AnswerCallback(ctx, cb.ID, "busy")
	}
}

func (b *Bot) mayMutate(req *Request) bool {
	return req.isOwner() || !b.config().OwnerOnlyMutations
}
