package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nekodylan/OVL-MD/internal/observe"
	"github.com/nekodylan/OVL-MD/internal/registry"
	"github.com/nekodylan/OVL-MD/internal/transport"
)

func (s *Set) menu(ctx context.Context, _ string, _ transport.Client, opts *registry.Options) error {
	var b strings.Builder
	b.WriteString("╭────《 OVL-MD 》─────⊷\n")
	fmt.Fprintf(&b, "⫸  *Préfixe*       : %s\n", opts.Prefix)
	fmt.Fprintf(&b, "⫸  *Mode*          : %s\n", s.d.Mode)
	if s.d.Registry != nil {
		fmt.Fprintf(&b, "⫸  *Commandes*     : %d\n", s.d.Registry.Len())
		order, names := s.d.Registry.Categories()
		for _, cat := range order {
			fmt.Fprintf(&b, "\n*📂 %s*\n", cat)
			for _, name := range names[cat] {
				fmt.Fprintf(&b, "  ◦ %s%s\n", opts.Prefix, name)
			}
		}
	}
	return opts.Reply(ctx, strings.TrimRight(b.String(), "\n"))
}

func (s *Set) ping(ctx context.Context, _ string, _ transport.Client, opts *registry.Options) error {
	now := s.d.Now()
	text := "🏓 *Pong !*"
	if opts.Raw != nil && opts.Raw.Timestamp > 0 {
		latency := now.Sub(time.Unix(opts.Raw.Timestamp, 0))
		if latency < 0 {
			latency = 0
		}
		text += fmt.Sprintf("\n⏱️ Latence : %dms", latency.Milliseconds())
	}
	text += "\n⏳ En ligne depuis : " + formatUptime(now.Sub(s.d.Started))
	return opts.Reply(ctx, text)
}

func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	if days > 0 {
		return fmt.Sprintf("%dj %dh %dm %ds", days, h, m, sec)
	}
	return fmt.Sprintf("%dh %dm %ds", h, m, sec)
}

func (s *Set) rank(ctx context.Context, _ string, _ transport.Client, opts *registry.Options) error {
	target := opts.Target()
	if target == "" {
		target = opts.Sender
	}
	rec, err := s.d.Store.Ranks().Get(ctx, target)
	if err != nil {
		return err
	}
	if rec == nil {
		return opts.Reply(ctx, "*Aucune activité enregistrée pour cet utilisateur.*")
	}
	level := observe.Level(rec.Exp)
	next := (level + 1) * (level + 1) * 100
	return opts.Reply(ctx, fmt.Sprintf("*🏅 Rang de %s*\n⫸ Niveau : %d\n⫸ Expérience : %d/%d\n⫸ Messages : %d",
		rec.Name, level, rec.Exp, next, rec.Messages))
}

func (s *Set) topRanks(ctx context.Context, _ string, _ transport.Client, opts *registry.Options) error {
	recs, err := s.d.Store.Ranks().Top(ctx, 10)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return opts.Reply(ctx, "*Aucun classement disponible.*")
	}
	var b strings.Builder
	b.WriteString("*🏆 Classement*")
	for i, r := range recs {
		fmt.Fprintf(&b, "\n%d. %s : niveau %d (%d exp)", i+1, r.Name, r.Level, r.Exp)
	}
	return opts.Reply(ctx, b.String())
}
