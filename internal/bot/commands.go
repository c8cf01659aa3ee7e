package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"routinebot/internal/routine"
	kit "routinebot/internal/transport"
	"routinebot/pkg/tgui"
)

const callbackNS = "rt"

func (b *Bot) commands() []Command {
	return []Command{
		{Name: "today", Aliases: []string{"t", "day"}, Usage: "/today [baby] [date]", Description: "show the routine for a day", Handle: b.cmdToday},
		{Name: "now", Aliases: []string{"n"}, Usage: "/now [baby]", Description: "what is happening now and next", Handle: b.cmdNow},
		{Name: "adjust", Aliases: []string{"a"}, Usage: "/adjust <#> <start> <end> [baby] [date]", Description: "change one phase; later phases follow", Access: AccessMutation, Handle: b.cmdAdjust},
		{Name: "wake", Aliases: []string{"w"}, Usage: "/wake <HH:MM> [baby] [date]", Description: "set the first wake time", Access: AccessMutation, Handle: b.cmdWake},
		{Name: "reset", Usage: "/reset [baby] [date]", Description: "drop the edits for a day", Access: AccessMutation, Handle: b.cmdReset},
		{Name: "rule", Usage: "/rule <id|auto> [baby]", Description: "pin a rule or follow age", Access: AccessMutation, Handle: b.cmdRule},
		{Name: "rules", Usage: "/rules", Description: "list the rules", Handle: b.cmdRules},
		{Name: "babies", Usage: "/babies", Description: "list the babies you can address", Handle: b.cmdBabies},
		{Name: "help", Aliases: []string{"h", "start"}, Usage: "/help", Description: "show this help", Handle: b.cmdHelp},
	}
}

func (b *Bot) callbacks() map[string]callbackFunc {
	return map[string]callbackFunc{
		"refresh": b.cbRefresh,
		"reset":   b.cbReset,
	}
}

func htmlOpts() *kit.SendOptions {
	return &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
}

func (r *Request) reply(ctx context.Context, text string, opt *kit.SendOptions) error {
	_, err := r.bot.adapter.SendText(ctx, r.Chat, text, opt)
	return err
}

// target resolves "[baby] [date]" style trailing arguments.
func (r *Request) target(ctx context.Context, args []string) (babyID, date string, rest []string, err error) {
	date, rest = splitDate(args, r.bot.engine.Now())
	if date == "" {
		date = routine.FormatDate(r.bot.engine.Now())
	}
	babyID, rest, err = r.pickBaby(ctx, rest)
	return babyID, date, rest, err
}

func noExtra(rest []string) error {
	if len(rest) > 0 {
		return usagef("Unexpected arguments: " + strings.Join(rest, " "))
	}
	return nil
}

func (b *Bot) cmdToday(ctx context.Context, req *Request) error {
	babyID, date, rest, err := req.target(ctx, req.Args)
	if err != nil {
		return err
	}
	if err := noExtra(rest); err != nil {
		return err
	}
	text, opt, err := b.dayMessage(ctx, babyID, date)
	if err != nil {
		return err
	}
	return req.reply(ctx, text, opt)
}

// dayMessage renders a day with refresh/reset buttons.
func (b *Bot) dayMessage(ctx context.Context, babyID, date string) (string, *kit.SendOptions, error) {
	d, err := b.engine.DaySchedule(ctx, babyID, date)
	if err != nil {
		return "", nil, err
	}
	now := b.engine.Now()
	var text string
	if date == routine.FormatDate(now) {
		text = renderDay(d, &now)
	} else {
		text = renderDay(d, nil)
	}
	opt := htmlOpts()
	opt.Keyboard = dayKeyboard(babyID, date, d.Overridden)
	return text, opt, nil
}

func dayKeyboard(babyID, date string, overridden bool) [][]kit.Button {
	payload := babyID + "|" + date
	refresh, err := tgui.Data(callbackNS, "refresh", payload)
	if err != nil {
		return nil
	}
	row := []kit.Button{{Text: "🔄 Refresh", Data: refresh}}
	if overridden {
		if reset, err := tgui.Data(callbackNS, "reset", payload); err == nil {
			row = append(row, kit.Button{Text: "↩️ Reset", Data: reset})
		}
	}
	return [][]kit.Button{row}
}

func parseCallback(data string) (ns, action, payload string, ok bool) {
	return tgui.ParseData(data)
}

func splitDayPayload(p string) (babyID, date string, err error) {
	babyID, date, ok := strings.Cut(p, "|")
	if !ok || babyID == "" || !isDate(date) {
		return "", "", usagef("stale button")
	}
	return babyID, date, nil
}

func (b *Bot) cmdNow(ctx context.Context, req *Request) error {
	babyID, rest, err := req.pickBaby(ctx, req.Args)
	if err != nil {
		return err
	}
	if err := noExtra(rest); err != nil {
		return err
	}
	now := b.engine.Now()
	minute := routine.MinuteOfDay(now)
	// Before the anchor on an overnight day, the phase in progress belongs to yesterday.
	prev, err := b.engine.DaySchedule(ctx, babyID, routine.FormatDate(now.AddDate(0, 0, -1)))
	if err == nil && prev.Projection.SpansOvernight && minute < prev.Projection.Anchor {
		if _, ok := prev.Projection.CurrentMinute(minute); ok {
			return req.reply(ctx, renderNow(prev, now), htmlOpts())
		}
	}
	d, err := b.engine.DaySchedule(ctx, babyID, routine.FormatDate(now))
	if err != nil {
		return err
	}
	return req.reply(ctx, renderNow(d, now), htmlOpts())
}

func (b *Bot) cmdAdjust(ctx context.Context, req *Request) error {
	const usage = "Usage: /adjust <#> <start> <end> [baby] [date], e.g. /adjust 2 08:10 09:40"
	if len(req.Args) < 3 {
		return usagef(usage)
	}
	order, err := strconv.Atoi(strings.TrimPrefix(req.Args[0], "#"))
	if err != nil || order < 0 {
		return usagef(usage)
	}
	start, end := req.Args[1], req.Args[2]
	if !isClock(start) || !isClock(end) {
		return usagef(usage)
	}
	babyID, date, rest, err := req.target(ctx, req.Args[3:])
	if err != nil {
		return err
	}
	if err := noExtra(rest); err != nil {
		return err
	}
	d, err := b.engine.DaySchedule(ctx, babyID, date)
	if err != nil {
		return err
	}
	if !hasOrder(d, order) {
		return usagef(fmt.Sprintf("Phase #%d is not part of %s. See /today.", order, date))
	}
	actx := routine.WithActor(ctx, req.actor())
	if _, err := b.engine.AdjustPhaseTiming(actx, babyID, date, order, start, end); err != nil {
		return err
	}
	text, opt, err := b.dayMessage(ctx, babyID, date)
	if err != nil {
		return err
	}
	return req.reply(ctx, text, opt)
}

func hasOrder(d routine.Day, order int) bool {
	for _, it := range d.Items {
		if it.Order == order {
			return true
		}
	}
	return false
}

func (b *Bot) cmdWake(ctx context.Context, req *Request) error {
	const usage = "Usage: /wake <HH:MM> [baby] [date]"
	if len(req.Args) < 1 || !isClock(req.Args[0]) {
		return usagef(usage)
	}
	anchor := req.Args[0]
	babyID, date, rest, err := req.target(ctx, req.Args[1:])
	if err != nil {
		return err
	}
	if err := noExtra(rest); err != nil {
		return err
	}
	if err := b.engine.SetFirstWakeTime(routine.WithActor(ctx, req.actor()), babyID, date, anchor); err != nil {
		return err
	}
	text, opt, err := b.dayMessage(ctx, babyID, date)
	if err != nil {
		return err
	}
	return req.reply(ctx, text, opt)
}

func (b *Bot) cmdReset(ctx context.Context, req *Request) error {
	babyID, date, rest, err := req.target(ctx, req.Args)
	if err != nil {
		return err
	}
	if err := noExtra(rest); err != nil {
		return err
	}
	existed, err := b.engine.ResetDay(routine.WithActor(ctx, req.actor()), babyID, date)
	if err != nil {
		return err
	}
	if !existed {
		return req.reply(ctx, "Nothing to reset: "+date+" has no edits.", nil)
	}
	text, opt, err := b.dayMessage(ctx, babyID, date)
	if err != nil {
		return err
	}
	return req.reply(ctx, text, opt)
}

func (b *Bot) cmdRule(ctx context.Context, req *Request) error {
	if len(req.Args) < 1 {
		return usagef("Usage: /rule <id|auto> [baby]. See /rules.")
	}
	ruleID := strings.ToLower(req.Args[0])
	babyID, rest, err := req.pickBaby(ctx, req.Args[1:])
	if err != nil {
		return err
	}
	if err := noExtra(rest); err != nil {
		return err
	}
	if err := b.engine.SelectRule(routine.WithActor(ctx, req.actor()), babyID, ruleID); err != nil {
		return err
	}
	msg := "Rule set to " + ruleID + "."
	if ruleID == "auto" {
		msg = "Rule now follows age."
	}
	return req.reply(ctx, msg, nil)
}

func (b *Bot) cmdRules(ctx context.Context, req *Request) error {
	return req.reply(ctx, renderRules(), htmlOpts())
}

func (b *Bot) cmdBabies(ctx context.Context, req *Request) error {
	_, allowed := req.babyScope()
	if len(allowed) == 0 {
		return usagef("No baby is linked to this chat.")
	}
	var doc tgui.Doc
	doc.Line(tgui.B("Babies"))
	for _, id := range allowed {
		p, err := b.dir.Profile(ctx, id)
		if err != nil {
			continue
		}
		line := []tgui.H{tgui.Code(id)}
		if p.Name != "" {
			line = append(line, tgui.Esc(p.Name))
		}
		rule := p.RuleID
		if rule == "" {
			rule = "auto"
		}
		line = append(line, tgui.I("wakes "+p.FirstWakeTime+", rule "+rule))
		doc.Line(line...)
	}
	return req.reply(ctx, doc.String(), htmlOpts())
}

func (b *Bot) cmdHelp(ctx context.Context, req *Request) error {
	return req.reply(ctx, renderHelp(b.cmds), htmlOpts())
}

func (b *Bot) cbRefresh(ctx context.Context, req *Request) error {
	babyID, date, err := splitDayPayload(req.Payload)
	if err != nil {
		return err
	}
	if !req.mayAddress(babyID) {
		return usagef("forbidden")
	}
	return b.editDay(ctx, req, babyID, date)
}

func (b *Bot) cbReset(ctx context.Context, req *Request) error {
	babyID, date, err := splitDayPayload(req.Payload)
	if err != nil {
		return err
	}
	if !req.mayAddress(babyID) || !b.mayMutate(req) {
		return usagef("forbidden")
	}
	if _, err := b.engine.ResetDay(routine.WithActor(ctx, req.actor()), babyID, date); err != nil {
		return err
	}
	return b.editDay(ctx, req, babyID, date)
}

func (b *Bot) editDay(ctx context.Context, req *Request, babyID, date string) error {
	text, opt, err := b.dayMessage(ctx, babyID, date)
	if err != nil {
		return err
	}
	return b.adapter.EditText(ctx, req.Update.Callback.Ref(), text, opt)
}
