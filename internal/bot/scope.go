package bot

import (
	"context"
	"slices"
	"strings"
)

// babyScope returns the babies linked to the chat and the babies the
// requester may address. Owners may address every configured baby.
func (r *Request) babyScope() (linked, allowed []string) {
	linked = r.bot.dir.ForChat(r.Chat.ChatID)
	if r.isOwner() {
		return linked, r.bot.dir.IDs()
	}
	return linked, linked
}

// pickBaby resolves the baby a command addresses. A token that names an
// allowed baby (by id or case-insensitive name) is consumed from args.
// Without one, the chat's only linked baby is used.
func (r *Request) pickBaby(ctx context.Context, args []string) (string, []string, error) {
	linked, allowed := r.babyScope()
	if len(allowed) == 0 {
		return "", args, usagef("No baby is linked to this chat.")
	}
	for i, a := range args {
		if id, ok := r.matchBaby(ctx, allowed, a); ok {
			rest := slices.Concat(args[:i], args[i+1:])
			return id, rest, nil
		}
	}
	switch {
	case len(linked) == 1:
		return linked[0], args, nil
	case len(allowed) == 1:
		return allowed[0], args, nil
	}
	return "", args, usagef("Which baby? Add one of: " + strings.Join(allowed, ", "))
}

func (r *Request) matchBaby(ctx context.Context, allowed []string, token string) (string, bool) {
	for _, id := range allowed {
		if strings.EqualFold(id, token) {
			return id, true
		}
	}
	for _, id := range allowed {
		p, err := r.bot.dir.Profile(ctx, id)
		if err == nil && p.Name != "" && strings.EqualFold(p.Name, token) {
			return id, true
		}
	}
	return "", false
}

// mayAddress reports whether the requester may act on babyID.
func (r *Request) mayAddress(babyID string) bool {
	_, allowed := r.babyScope()
	return slices.Contains(allowed, babyID)
}
