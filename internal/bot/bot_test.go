package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"routinebot/internal/config"
	"routinebot/internal/eventbus"
	"routinebot/internal/profile"
	"routinebot/internal/routine"
	"routinebot/internal/storage"
	kit "routinebot/internal/transport"
	logx "routinebot/pkg/logx"
)

const owner = 1

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type sent struct {
	To   kit.ChatTarget
	Text string
	Opt  *kit.SendOptions
}

type fakeAdapter struct {
	mu      sync.Mutex
	sent    []sent
	edits   []kit.MessageRef
	answers []string
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{To: to, Text: text, Opt: opt})
	return kit.MessageRef{ChatTarget: to, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) EditText(_ context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, ref)
	f.sent = append(f.sent, sent{To: ref.ChatTarget, Text: text, Opt: opt})
	return nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeAdapter) last(t *testing.T) sent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return f.sent[len(f.sent)-1]
}

type harness struct {
	bot    *Bot
	ad     *fakeAdapter
	engine *routine.Engine
	bus    eventbus.Bus
	store  *storage.Memory
	reg    *profile.Registry
	ctx    context.Context
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	store := storage.NewMemory()
	reg := profile.NewRegistry(store)
	reg.Replace(config.RoutineConfig{Babies: []config.BabyConfig{
		{ID: "ada", Name: "Ada", RuleID: routine.NewbornRuleID, Chats: []int64{100, 101}},
		{ID: "bo", Name: "Bo", RuleID: routine.NewbornRuleID, FirstWakeTime: "06:00", Chats: []int64{200}},
	}})
	bus := eventbus.New()
	eng := routine.NewEngine(store, reg,
		routine.WithBus(bus),
		routine.WithClock(func() time.Time { return testNow }),
		routine.WithLocation(time.UTC),
	)
	if cfg.Owners == nil {
		cfg.Owners = []int64{owner}
	}
	cfg.RatePerChat = 1000
	ad := &fakeAdapter{}
	b := New(cfg, ad, eng, reg, logx.Nop())
	b.enqueue = func(fn func()) bool { fn(); return true }
	return &harness{bot: b, ad: ad, engine: eng, bus: bus, store: store, reg: reg, ctx: context.Background()}
}

func (h *harness) say(chat, from int64, text string) {
	h.bot.route(h.ctx, kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{Chat: kit.ChatTarget{ChatID: chat}, FromID: from, Text: text}})
}

func (h *harness) click(chat, from int64, data string) {
	h.bot.route(h.ctx, kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{Chat: kit.ChatTarget{ChatID: chat}, ID: "cb", FromID: from, MessageID: 7, Data: data}})
}

func TestTodayRendersLinkedBaby(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	h.say(100, 5, "/today")

	got := h.ad.last(t)
	if got.To.ChatID != 100 || got.Opt == nil || got.Opt.ParseMode != "HTML" {
		t.Fatalf("reply %+v", got)
	}
	for _, want := range []string{
		"<b>Ada</b> · 2026-03-01",
		"✅ <code>#0</code> 07:00–07:35 Eat",
		"▶️ <code>#2</code> 08:25–09:55 Nap 1",
		"↳ <i>Your time</i>",
	} {
		if !strings.Contains(got.Text, want) {
			t.Fatalf("reply lacks %q:\n%s", want, got.Text)
		}
	}
	if len(got.Opt.Keyboard) != 1 || len(got.Opt.Keyboard[0]) != 1 || got.Opt.Keyboard[0][0].Data != "rt:refresh:ada|2026-03-01" {
		t.Fatalf("keyboard = %+v", got.Opt.Keyboard)
	}
}

func TestTodayScoping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		chat     int64
		from     int64
		text     string
		contains string
	}{
		{"member cannot address other chat's baby", 100, 5, "/today bo", "Unexpected arguments: bo"},
		{"unlinked chat", 300, 5, "/today", "No baby is linked"},
		{"owner must choose in unlinked chat", 300, owner, "/today", "Which baby? Add one of: ada, bo"},
		{"owner picks by name", 300, owner, "/today Bo", "<b>Bo</b>"},
		{"date argument", 100, 5, "/today 2026-03-02", "2026-03-02"},
		{"bot suffix", 200, 5, "/today@RoutineBot", "<b>Bo</b>"},
		{"unknown command", 100, 5, "/dance", "Unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, Config{})
			h.say(tt.chat, tt.from, tt.text)
			if got := h.ad.last(t).Text; !strings.Contains(got, tt.contains) {
				t.Fatalf("reply %q does not contain %q", got, tt.contains)
			}
		})
	}
}

func TestAdjustPersistsAndAnnounces(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{Announce: true})
	events, unsubscribe := h.bus.Subscribe(4, "routine.")
	defer unsubscribe()

	h.say(100, 5, "/adjust 1 07:35 08:35")
	reply := h.ad.last(t).Text
	if !strings.Contains(reply, "(edited)") || !strings.Contains(reply, "08:35–10:05 Nap 1") {
		t.Fatalf("reply:\n%s", reply)
	}

	d, err := h.engine.DaySchedule(h.ctx, "ada", "2026-03-01")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Overridden || d.Items[2].StartTime != "08:35" {
		t.Fatalf("day not persisted: %+v", d)
	}

	var ev eventbus.Event
	select {
	case ev = <-events:
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
	if ce := ev.Data.(routine.ChangeEvent); ce.Actor != "tg:100:5" || ce.Order != 1 {
		t.Fatalf("event %+v", ce)
	}

	before := len(h.ad.sent)
	h.bot.announce(h.ctx, ev)
	h.ad.mu.Lock()
	announced := h.ad.sent[before:]
	h.ad.mu.Unlock()
	if len(announced) != 1 || announced[0].To.ChatID != 101 {
		t.Fatalf("announcements = %+v, want one to chat 101", announced)
	}
	if !strings.Contains(announced[0].Text, "phase #1 on 2026-03-01 was adjusted") {
		t.Fatalf("announcement %q", announced[0].Text)
	}
}

func TestAdjustRejectsBadInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text     string
		contains string
	}{
		{"/adjust", "Usage: /adjust"},
		{"/adjust x 08:00 09:00", "Usage: /adjust"},
		{"/adjust 1 8:00 09:00", "Usage: /adjust"},
		{"/adjust 99 08:00 09:00", "Phase #99 is not part of 2026-03-01"},
		{"/adjust 1 09:00 08:00", "end time must be after"},
		{"/adjust 1 23:30 00:00", "across midnight"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, Config{})
			h.say(100, 5, tt.text)
			if got := h.ad.last(t).Text; !strings.Contains(got, tt.contains) {
				t.Fatalf("reply %q does not contain %q", got, tt.contains)
			}
			if _, ok, _ := h.store.GetDayOverride(h.ctx, "ada", "2026-03-01"); ok {
				t.Fatal("override persisted after rejected adjust")
			}
		})
	}
}

func TestOwnerOnlyMutations(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{OwnerOnlyMutations: true})
	h.say(100, 5, "/wake 06:30")
	if got := h.ad.last(t).Text; !strings.Contains(got, "Only owners") {
		t.Fatalf("reply %q", got)
	}
	h.say(100, owner, "/wake 06:30")
	if got := h.ad.last(t).Text; !strings.Contains(got, "06:30–07:05 Eat") {
		t.Fatalf("owner reply:\n%s", got)
	}
	st, ok, err := h.store.GetBabySettings(h.ctx, "ada")
	if err != nil || !ok || st.FirstWakeTime != "06:30" {
		t.Fatalf("settings = %+v, %v, %v", st, ok, err)
	}
}

func TestRuleCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	h.say(200, 5, "/rule bogus")
	if got := h.ad.last(t).Text; !strings.HasPrefix(got, "Not found") {
		t.Fatalf("reply %q", got)
	}
	h.say(200, 5, "/rule toddler")
	if got := h.ad.last(t).Text; got != "Rule set to toddler." {
		t.Fatalf("reply %q", got)
	}
	p, err := h.reg.Profile(h.ctx, "bo")
	if err != nil || p.RuleID != "toddler" {
		t.Fatalf("profile %+v, %v", p, err)
	}
}

func TestResetButton(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	h.say(100, 5, "/adjust 0 07:00 07:20")
	last := h.ad.last(t)
	if row := last.Opt.Keyboard[0]; len(row) != 2 || row[1].Data != "rt:reset:ada|2026-03-01" {
		t.Fatalf("keyboard %+v", last.Opt.Keyboard)
	}

	h.click(200, 5, "rt:reset:ada|2026-03-01")
	if _, ok, _ := h.store.GetDayOverride(h.ctx, "ada", "2026-03-01"); !ok {
		t.Fatal("a chat outside the baby's scope reset the day")
	}

	h.click(100, 5, "rt:reset:ada|2026-03-01")
	if _, ok, _ := h.store.GetDayOverride(h.ctx, "ada", "2026-03-01"); ok {
		t.Fatal("override still present after reset")
	}
	h.ad.mu.Lock()
	defer h.ad.mu.Unlock()
	if len(h.ad.edits) != 1 || h.ad.edits[0].MessageID != 7 {
		t.Fatalf("edits = %+v", h.ad.edits)
	}
	if len(h.ad.answers) != 2 || h.ad.answers[0] != "forbidden" || h.ad.answers[1] != "" {
		t.Fatalf("answers = %q", h.ad.answers)
	}
}

func TestNowCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	h.say(100, 5, "/now")
	got := h.ad.last(t).Text
	for _, want := range []string{"Now: <b>Nap 1</b> 08:25–09:55 <i>(55 min left)</i>", "Next: <b>Eat</b> at 09:55 <i>(in 55 min)</i>"} {
		if !strings.Contains(got, want) {
			t.Fatalf("reply lacks %q:\n%s", want, got)
		}
	}
}

func TestPostDigest(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	if err := h.bot.PostDigest(h.ctx, "ada"); err != nil {
		t.Fatal(err)
	}
	h.ad.mu.Lock()
	defer h.ad.mu.Unlock()
	if len(h.ad.sent) != 2 || h.ad.sent[0].To.ChatID != 100 || h.ad.sent[1].To.ChatID != 101 {
		t.Fatalf("digest sent to %+v", h.ad.sent)
	}
}

func TestHelpListsCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	h.say(100, 5, "/help")
	got := h.ad.last(t).Text
	for _, c := range h.bot.Commands() {
		if !strings.Contains(got, c.Description) {
			t.Fatalf("help lacks %q", c.Description)
		}
	}
}
