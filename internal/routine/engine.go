package routine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"routinebot/internal/eventbus"
	logx "routinebot/pkg/logx"
)

// Store persists day overrides, per-baby settings and the audit trail.
type Store interface {
	GetDayOverride(ctx context.Context, babyID, date string) (DayOverride, bool, error)
	// PutDayOverride creates or replaces the record for (BabyID, Date).
	PutDayOverride(ctx context.Context, o DayOverride) error
	DeleteDayOverride(ctx context.Context, babyID, date string) (bool, error)

	GetBabySettings(ctx context.Context, babyID string) (BabySettings, bool, error)
	PutBabySettings(ctx context.Context, s BabySettings) error

	AppendAudit(ctx context.Context, e AuditEntry) error
}

// ProfileSource resolves babies. Unknown ids return an error wrapping ErrNotFound.
type ProfileSource interface {
	Profile(ctx context.Context, babyID string) (Profile, error)
}

// Event types published on the bus after a successful mutation.
const (
	EventAdjusted      = "routine.adjusted"
	EventAnchorChanged = "routine.anchor_changed"
	EventReset         = "routine.reset"
	EventRuleChanged   = "routine.rule_changed"
)

// ChangeEvent is the payload of every routine.* event.
type ChangeEvent struct {
	BabyID     string `json:"babyId"`
	Date       string `json:"date,omitempty"`
	Actor      string `json:"actor,omitempty"`
	Order      int    `json:"order,omitempty"`
	OverrideID string `json:"overrideId,omitempty"`
	Value      string `json:"value,omitempty"`
}

// Day is the resolved phase list for one baby and date.
type Day struct {
	BabyID     string     `json:"babyId"`
	Name       string     `json:"name,omitempty"`
	Date       string     `json:"date"`
	RuleID     string     `json:"ruleId"`
	Overridden bool       `json:"overridden"`
	OverrideID string     `json:"overrideId,omitempty"`
	Items      []Item     `json:"items"`
	Projection Projection `json:"projection"`
}

type actorKey struct{}

// WithActor tags ctx with the identity performing a mutation (for the audit trail).
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) string {
	s, _ := ctx.Value(actorKey{}).(string)
	return s
}

// Engine resolves days and applies the persisted mutation paths.
//
// There is no locking around the read-then-write of an override: concurrent
// adjustments of the same day race and the last write wins in full.
type Engine struct {
	store    Store
	profiles ProfileSource
	labels   func(locale string) LabelProvider
	bus      eventbus.Bus
	log      logx.Logger
	now      func() time.Time
	loc      atomic.Pointer[time.Location]
}

type EngineOption func(*Engine)

func WithBus(bus eventbus.Bus) EngineOption       { return func(e *Engine) { e.bus = bus } }
func WithLogger(log logx.Logger) EngineOption     { return func(e *Engine) { e.log = log } }
func WithClock(now func() time.Time) EngineOption { return func(e *Engine) { e.now = now } }
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) { e.SetLocation(loc) }
}

// WithLabels sets the label provider factory. The default uses BuiltinLabels.
func WithLabels(fn func(locale string) LabelProvider) EngineOption {
	return func(e *Engine) { e.labels = fn }
}

func NewEngine(store Store, profiles ProfileSource, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		profiles: profiles,
		now:      time.Now,
	}
	e.loc.Store(time.Local)
	for _, o := range opts {
		o(e)
	}
	if e.log.IsZero() {
		e.log = logx.Nop()
	}
	if e.labels == nil {
		e.labels = func(locale string) LabelProvider { return BuiltinLabels(locale) }
	}
	return e
}

// SetLocation changes the timezone used for date keys. Safe for concurrent use.
func (e *Engine) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	e.loc.Store(loc)
}

// Location returns the timezone used for date keys.
func (e *Engine) Location() *time.Location { return e.loc.Load() }

// Now returns the engine clock in its configured location.
func (e *Engine) Now() time.Time { return e.now().In(e.Location()) }

// Today returns today's date key.
func (e *Engine) Today() string { return FormatDate(e.Now()) }

// DateOf returns the date key of t in the engine's location.
func (e *Engine) DateOf(t time.Time) string { return FormatDate(t.In(e.Location())) }

// resolve loads the profile and its source rule.
func (e *Engine) resolve(ctx context.Context, babyID string, day time.Time) (Profile, Rule, error) {
	if e.profiles == nil {
		return Profile{}, Rule{}, fmt.Errorf("%w: no profile source", ErrNotFound)
	}
	p, err := e.profiles.Profile(ctx, babyID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, Rule{}, err
		}
		return Profile{}, Rule{}, fmt.Errorf("%w: baby %q: %v", ErrNotFound, babyID, err)
	}
	if p.RuleID != "" {
		return p, RuleByID(p.RuleID), nil
	}
	if p.BirthDate.IsZero() {
		return Profile{}, Rule{}, fmt.Errorf("%w: baby %q has neither a birth date nor a selected rule", ErrNotFound, babyID)
	}
	return p, RuleForAge(p.AgeWeeks(day)), nil
}

func (e *Engine) generate(p Profile, rule Rule, day time.Time) ([]Item, error) {
	age := p.AgeWeeks(day)
	return Build(rule, p.FirstWakeTime, WakeWindow(rule, age), e.labels(p.Locale))
}

// baseItems returns the override for (baby, date) if any, else a freshly generated list.
func (e *Engine) baseItems(ctx context.Context, p Profile, rule Rule, date string, day time.Time) ([]Item, DayOverride, bool, error) {
	if e.store != nil {
		o, ok, err := e.store.GetDayOverride(ctx, p.BabyID, date)
		if err != nil {
			return nil, DayOverride{}, false, fmt.Errorf("load override: %w", err)
		}
		if ok {
			return o.Items, o, true, nil
		}
	}
	items, err := e.generate(p, rule, day)
	if err != nil {
		return nil, DayOverride{}, false, err
	}
	return items, DayOverride{}, false, nil
}

// DaySchedule resolves the phase list for a baby on a date.
// An existing override is returned verbatim; otherwise the day is generated.
func (e *Engine) DaySchedule(ctx context.Context, babyID, date string) (Day, error) {
	day, err := ParseDate(date, e.Location())
	if err != nil {
		return Day{}, err
	}
	p, rule, err := e.resolve(ctx, babyID, day)
	if err != nil {
		return Day{}, err
	}
	items, o, overridden, err := e.baseItems(ctx, p, rule, date, day)
	if err != nil {
		return Day{}, err
	}
	proj, err := Project(items)
	if err != nil {
		return Day{}, err
	}
	d := Day{
		BabyID:     p.BabyID,
		Name:       p.Name,
		Date:       date,
		RuleID:     rule.ID,
		Overridden: overridden,
		Items:      items,
		Projection: proj,
	}
	if overridden {
		d.OverrideID = o.ID
		d.RuleID = o.SourceRuleID
	}
	return d, nil
}

// AdjustPhaseTiming edits one phase of one day and cascades the change forward,
// persisting the result as that day's override. It returns the override id.
//
// An order that is not part of the day is a silent no-op: nothing is persisted and
// the existing override id (or "") is returned.
func (e *Engine) AdjustPhaseTiming(ctx context.Context, babyID, date string, order int, newStart, newEnd string) (string, error) {
	log := e.log.With(logx.Baby(babyID), logx.Date(date), logx.Int("order", order), logx.Actor(actorFrom(ctx)))

	day, err := ParseDate(date, e.Location())
	if err != nil {
		return "", err
	}
	if e.store == nil {
		return "", errors.New("routine: no store configured")
	}
	p, rule, err := e.resolve(ctx, babyID, day)
	if err != nil {
		e.audit(ctx, babyID, date, "adjust", fmt.Sprint(order), err, nil)
		return "", err
	}
	base, existing, overridden, err := e.baseItems(ctx, p, rule, date, day)
	if err != nil {
		return "", err
	}

	items, found, err := Cascade(base, order, newStart, newEnd)
	if err != nil {
		e.audit(ctx, babyID, date, "adjust", fmt.Sprint(order), err, nil)
		return "", err
	}
	if !found {
		log.Debug("adjust ignored: order not in day", logx.Int("items", len(base)))
		return existing.ID, nil
	}

	now := e.now()
	o := existing
	if !overridden {
		o = DayOverride{
			ID:           uuid.NewString(),
			BabyID:       p.BabyID,
			Date:         date,
			SourceRuleID: rule.ID,
			CreatedAt:    now,
		}
	}
	o.Items = items
	o.UpdatedAt = now

	if err := e.store.PutDayOverride(ctx, o); err != nil {
		e.audit(ctx, babyID, date, "adjust", fmt.Sprint(order), err, nil)
		return "", fmt.Errorf("save override: %w", err)
	}

	e.audit(ctx, babyID, date, "adjust", fmt.Sprint(order), nil, map[string]any{
		"start": newStart, "end": newEnd, "override_id": o.ID, "created": !overridden,
	})
	e.publish(EventAdjusted, ChangeEvent{BabyID: p.BabyID, Date: date, Actor: actorFrom(ctx), Order: order, OverrideID: o.ID})
	log.Info("phase adjusted", logx.String("start", newStart), logx.String("end", newEnd), logx.Bool("created", !overridden))
	return o.ID, nil
}

// SetFirstWakeTime changes the baby's global anchor. The override for date (if any)
// is dropped so that the whole day regenerates, uniformly shifted.
func (e *Engine) SetFirstWakeTime(ctx context.Context, babyID, date, anchor string) error {
	if _, err := ParseClock(anchor); err != nil {
		return err
	}
	if _, err := ParseDate(date, e.Location()); err != nil {
		return err
	}
	if e.store == nil {
		return errors.New("routine: no store configured")
	}
	p, err := e.profile(ctx, babyID)
	if err != nil {
		return err
	}
	st, err := e.settings(ctx, p.BabyID)
	if err != nil {
		return err
	}
	st.FirstWakeTime = FormatClockString(anchor)
	st.UpdatedAt = e.now()
	if err := e.store.PutBabySettings(ctx, st); err != nil {
		e.audit(ctx, babyID, date, "wake", anchor, err, nil)
		return fmt.Errorf("save settings: %w", err)
	}
	if _, err := e.store.DeleteDayOverride(ctx, p.BabyID, date); err != nil {
		return fmt.Errorf("drop override: %w", err)
	}
	e.audit(ctx, babyID, date, "wake", anchor, nil, nil)
	e.publish(EventAnchorChanged, ChangeEvent{BabyID: p.BabyID, Date: date, Actor: actorFrom(ctx), Value: st.FirstWakeTime})
	e.log.Info("first wake time changed", logx.Baby(babyID), logx.String("anchor", st.FirstWakeTime))
	return nil
}

// SelectRule pins an explicit rule for the baby. "" or "auto" returns to age
// inference, also when configuration pins a rule.
func (e *Engine) SelectRule(ctx context.Context, babyID, ruleID string) error {
	ruleID = strings.TrimSpace(ruleID)
	if ruleID == "" || strings.EqualFold(ruleID, AutoRuleID) {
		ruleID = AutoRuleID
	} else if _, ok := LookupRule(ruleID); !ok {
		return fmt.Errorf("%w: rule %q", ErrNotFound, ruleID)
	}
	if e.store == nil {
		return errors.New("routine: no store configured")
	}
	p, err := e.profile(ctx, babyID)
	if err != nil {
		return err
	}
	st, err := e.settings(ctx, p.BabyID)
	if err != nil {
		return err
	}
	st.RuleID = ruleID
	st.UpdatedAt = e.now()
	if err := e.store.PutBabySettings(ctx, st); err != nil {
		e.audit(ctx, babyID, "", "rule", ruleID, err, nil)
		return fmt.Errorf("save settings: %w", err)
	}
	e.audit(ctx, babyID, "", "rule", ruleID, nil, nil)
	e.publish(EventRuleChanged, ChangeEvent{BabyID: p.BabyID, Actor: actorFrom(ctx), Value: ruleID})
	return nil
}

// ResetDay removes the override for (baby, date). It reports whether one existed.
func (e *Engine) ResetDay(ctx context.Context, babyID, date string) (bool, error) {
	if _, err := ParseDate(date, e.Location()); err != nil {
		return false, err
	}
	if e.store == nil {
		return false, errors.New("routine: no store configured")
	}
	p, err := e.profile(ctx, babyID)
	if err != nil {
		return false, err
	}
	ok, err := e.store.DeleteDayOverride(ctx, p.BabyID, date)
	if err != nil {
		e.audit(ctx, babyID, date, "reset", "", err, nil)
		return false, fmt.Errorf("drop override: %w", err)
	}
	e.audit(ctx, babyID, date, "reset", "", nil, map[string]any{"existed": ok})
	if ok {
		e.publish(EventReset, ChangeEvent{BabyID: p.BabyID, Date: date, Actor: actorFrom(ctx)})
	}
	return ok, nil
}

func (e *Engine) profile(ctx context.Context, babyID string) (Profile, error) {
	if e.profiles == nil {
		return Profile{}, fmt.Errorf("%w: no profile source", ErrNotFound)
	}
	p, err := e.profiles.Profile(ctx, babyID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Profile{}, fmt.Errorf("%w: baby %q: %v", ErrNotFound, babyID, err)
	}
	return p, err
}

func (e *Engine) settings(ctx context.Context, babyID string) (BabySettings, error) {
	st, ok, err := e.store.GetBabySettings(ctx, babyID)
	if err != nil {
		return BabySettings{}, fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		st = BabySettings{BabyID: babyID}
	}
	return st, nil
}

func (e *Engine) publish(typ string, ev ChangeEvent) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(eventbus.Event{Type: typ, Time: e.now(), Data: ev})
}

// audit is best-effort; a failing audit write never fails the operation.
func (e *Engine) audit(ctx context.Context, babyID, date, action, target string, opErr error, meta map[string]any) {
	if e.store == nil {
		return
	}
	entry := AuditEntry{
		At:     e.now(),
		Actor:  actorFrom(ctx),
		BabyID: babyID,
		Date:   date,
		Action: action,
		Target: target,
		OK:     opErr == nil,
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			entry.MetaJSON = string(b)
		}
	}
	if err := e.store.AppendAudit(ctx, entry); err != nil {
		e.log.Debug("audit append failed", logx.Err(err), logx.String("action", action))
	}
}
