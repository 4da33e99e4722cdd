// Package authz computes the per-dispatch authorization flags of a sender.
package authz

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

// Input is everything Evaluate looks at. Ids may be given in any phone notation.
type Input struct {
	Sender      string
	Origin      string
	IsGroup     bool
	GroupAdmins []string
	BotID       string
	Owner       string
	Developers  []string
	Sudo        []string
}

// Evaluate is pure: the same Input always yields the same Flags. IsBanned is left
// false; ban lookups go through BanChecker.
func Evaluate(in Input) core.Flags {
	sender := wa.PhoneJID(in.Sender)
	bot := wa.PhoneJID(in.BotID)

	var f core.Flags
	if sender == "" {
		return f
	}
	f.IsDeveloper = contains(in.Developers, sender)
	f.IsPremium = f.IsDeveloper ||
		sender == wa.PhoneJID(in.Owner) ||
		contains(in.Sudo, sender) ||
		sender == bot

	if in.IsGroup {
		f.IsGroupAdmin = contains(in.GroupAdmins, sender)
		f.IsBotAdmin = bot != "" && contains(in.GroupAdmins, bot)
	}
	return f
}

func contains(ids []string, jid string) bool {
	for _, id := range ids {
		if wa.PhoneJID(id) == jid {
			return true
		}
	}
	return false
}

// BanStore is the subset of the ban repository the checker needs.
type BanStore interface {
	IsBanned(ctx context.Context, id string, typ core.BanType) (bool, error)
}

// BanChecker queries the ban table on every call; nothing is cached.
type BanChecker struct {
	Store BanStore
}

// Banned reports whether the sender, or the group when origin is one, is banned.
// The group is only queried when the sender is not.
func (c BanChecker) Banned(ctx context.Context, sender, origin string, isGroup bool) (bool, error) {
	if c.Store == nil {
		return false, nil
	}
	banned, err := c.Store.IsBanned(ctx, wa.NormalizeJID(sender), core.BanUser)
	if err != nil {
		return false, errors.Wrap(err, "check user ban")
	}
	if banned || !isGroup {
		return banned, nil
	}
	banned, err = c.Store.IsBanned(ctx, origin, core.BanGroup)
	if err != nil {
		return false, errors.Wrap(err, "check group ban")
	}
	return banned, nil
}
