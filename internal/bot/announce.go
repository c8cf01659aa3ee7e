package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"routinebot/internal/eventbus"
	"routinebot/internal/routine"
	kit "routinebot/internal/transport"
	logx "routinebot/pkg/logx"
)

// Announce forwards routine change events to the changed baby's chats until
// ctx ends. The chat a change was made from is skipped.
func (b *Bot) Announce(ctx context.Context, bus eventbus.Bus) error {
	events, unsubscribe := bus.Subscribe(64, "routine.")
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !b.config().Announce {
				continue
			}
			b.announce(ctx, ev)
		}
	}
}

func (b *Bot) announce(ctx context.Context, ev eventbus.Event) {
	ce, ok := ev.Data.(routine.ChangeEvent)
	if !ok {
		return
	}
	name := ""
	if p, err := b.dir.Profile(ctx, ce.BabyID); err == nil {
		name = p.Name
	}
	text := describeEvent(ce, ev.Type, name)
	if text == "" {
		return
	}
	origin, _ := originChat(ce.Actor)
	for _, chat := range b.dir.Chats(ce.BabyID) {
		if chat == origin {
			continue
		}
		if _, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: chat}, text, htmlOpts()); err != nil {
			b.log.Warn("announce failed", logx.Chat(chat), logx.String("event", ev.Type), logx.Err(err))
		}
	}
}

// originChat extracts the chat id from a "tg:<chat>:<user>" actor.
func originChat(actor string) (int64, bool) {
	rest, ok := strings.CutPrefix(actor, "tg:")
	if !ok {
		return 0, false
	}
	chat, _, _ := strings.Cut(rest, ":")
	id, err := strconv.ParseInt(chat, 10, 64)
	return id, err == nil
}

// PostDigest sends today's routine for babyID to each of its chats.
func (b *Bot) PostDigest(ctx context.Context, babyID string) error {
	chats := b.dir.Chats(babyID)
	if len(chats) == 0 {
		return nil
	}
	text, opt, err := b.dayMessage(ctx, babyID, routine.FormatDate(b.engine.Now()))
	if err != nil {
		return err
	}
	for _, chat := range chats {
		if _, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: chat}, text, opt); err != nil {
			return fmt.Errorf("chat %d: %w", chat, err)
		}
	}
	return nil
}
