package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/registry"
	"github.com/nekodylan/OVL-MD/internal/transport"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

// phoneTarget reads a user jid from a typed phone number.
func phoneTarget(arg string) string {
	return wa.PhoneJID(arg)
}

// userTarget resolves the member a command acts on: a mention, the quoted author,
// or a number given as first argument.
func userTarget(opts *registry.Options) string {
	if t := opts.Target(); t != "" {
		return t
	}
	if len(opts.Args) > 0 {
		return phoneTarget(opts.Args[0])
	}
	return ""
}

func tag(jid string) string {
	return "@" + wa.User(jid)
}

func (s *Set) ban(ctx context.Context, _ string, _ transport.Client, opts *registry.Options) error {
	target := userTarget(opts)
	if target == "" {
		return opts.Reply(ctx, msgNoTarget)
	}
	if target == opts.BotID {
		return opts.Reply(ctx, "*Impossible de bannir le bot.*")
	}
	added, err := s.d.Store.Bans().Add(ctx, target, core.BanUser)
	if err != nil {
		return err
	}
	if !added {
		return opts.Reply(ctx, fmt.Sprintf("*%s est déjà banni.*", tag(target)))
	}
	return opts.Reply(ctx, fmt.Sprintf("✅ *%s est banni du bot.*", tag(target)))
}

func (s *Set) unban(ctx context.Context, _ string, _ transport.Client, opts *registry.Options) error {
	target := userTarget(opts)
	if target == "" {
		return opts.Reply(ctx, msgNoTarget)
	}
	removed, err := s.d.Store.Bans().Remove(ctx, target, core.BanUser)
	if err != nil {
		return err
	}
	if !removed {
		return opts.Reply(ctx, fmt.Sprintf("*%s n'est pas banni.*", tag(target)))
	}
	return opts.Reply(ctx, fmt.Sprintf("✅ *%s peut de nouveau utiliser le bot.*", tag(target)))
}

func (s *Set) banGroup(ctx context.Context, origin string, _ transport.Client, opts *registry.Options) error {
	if !opts.IsGroup {
		return opts.Reply(ctx, msgGroupOnly)
	}
	added, err := s.d.Store.Bans().Add(ctx, origin, core.BanGroup)
	if err != nil {
		return err
	}
	if !added {
		return opts.Reply(ctx, "*Ce groupe est déjà banni.*")
	}
	return opts.Reply(ctx, "✅ *Groupe banni : le bot ignorera les commandes ici.*")
}

func (s *Set) unbanGroup(ctx context.Context, origin string, _ transport.Client, opts *registry.Options) error {
	if !opts.IsGroup {
		return opts.Reply(ctx, msgGroupOnly)
	}
	removed, err := s.d.Store.Bans().Remove(ctx, origin, core.BanGroup)
	if err != nil {
		return err
	}
	if !removed {
		return opts.Reply(ctx, "*Ce groupe n'est pas banni.*")
	}
	return opts.Reply(ctx, "✅ *Groupe débanni.*")
}

func (s *Set) addSudo(ctx context.Context, _ string, _ transport.Client, opts *registry.Options) error {
	target := userTarget(opts)
	if target == "" {
		return opts.Reply(ctx, msgNoTarget)
	}
	added, err := s.d.Store.Sudo().Add(ctx, target)
	if err != nil {
		return err
	}
	if !added {
		return opts.Reply(ctx, fmt.Sprintf("*%s est déjà sudo.*", tag(target)))
	}
	return opts.Reply(ctx, fmt.Sprintf("✅ *%s est maintenant sudo.*", tag(target)))
}

func (s *Set) delSudo(ctx context.Context, _ string, _ transport.Client, opts *registry.Options) error {
	target := userTarget(opts)
	if target == "" {
		return opts.Reply(ctx, msgNoTarget)
	}
	removed, err := s.d.Store.Sudo().Remove(ctx, target)
	if err != nil {
		return err
	}
	if !removed {
		return opts.Reply(ctx, fmt.Sprintf("*%s n'est pas sudo.*", tag(target)))
	}
	return opts.Reply(ctx, fmt.Sprintf("✅ *%s n'est plus sudo.*", tag(target)))
}

func (s *Set) sudoList(ctx context.Context, _ string, _ transport.Client, opts *registry.Options) error {
	ids, err := s.d.Store.Sudo().List(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return opts.Reply(ctx, "*Aucun utilisateur sudo.*")
	}
	var b strings.Builder
	b.WriteString("*👑 Utilisateurs sudo*")
	for i, id := range ids {
		fmt.Fprintf(&b, "\n%d. %s", i+1, tag(id))
	}
	return opts.Reply(ctx, b.String())
}
