package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/registry"
	"github.com/nekodylan/OVL-MD/internal/transport"
)

func onOff(on bool) string {
	if on {
		return "activé"
	}
	return "désactivé"
}

// policy configures one escalation policy: on, off, or an action (supp, kick, warn)
// which also enables it. Without argument it shows the current setting.
func (s *Set) policy(kind core.PolicyKind) registry.Handler {
	return func(ctx context.Context, _ string, _ transport.Client, opts *registry.Options) error {
		if allowed, err := requireGroupAdmin(ctx, opts); !allowed {
			return err
		}
		repo := s.d.Store.Policies()
		current, err := repo.Get(ctx, opts.Origin, kind)
		if err != nil {
			return err
		}
		setting := core.PolicySetting{GroupID: opts.Origin, Kind: kind, Action: core.ActionDelete}
		if current != nil {
			setting = *current
		}

		if len(opts.Args) == 0 {
			return opts.Reply(ctx, fmt.Sprintf("*%s* : %s (action : %s)\n*Utilisation :* `%s%s on|off|supp|kick|warn`",
				kind, onOff(setting.Enabled), setting.Action, opts.Prefix, kind))
		}

		arg := strings.ToLower(opts.Args[0])
		if on, ok := core.ParseSwitch(arg); ok {
			if on == setting.Enabled && current != nil {
				return opts.Reply(ctx, fmt.Sprintf("*%s est déjà %s.*", kind, onOff(on)))
			}
			setting.Enabled = on
		} else if action := core.ParsePolicyAction(arg); action.Known() {
			setting.Action = action
			setting.Enabled = true
		} else {
			return opts.Reply(ctx, fmt.Sprintf("*Option invalide.* Utilisez `%s%s on|off|supp|kick|warn`", opts.Prefix, kind))
		}

		if err := repo.Put(ctx, setting); err != nil {
			return err
		}
		return opts.Reply(ctx, fmt.Sprintf("✅ *%s %s* (action : %s)", kind, onOff(setting.Enabled), setting.Action))
	}
}

// groupEvent toggles one membership rule.
func (s *Set) groupEvent(name string) registry.Handler {
	return func(ctx context.Context, _ string, _ transport.Client, opts *registry.Options) error {
		if allowed, err := requireGroupAdmin(ctx, opts); !allowed {
			return err
		}
		repo := s.d.Store.GroupSettings()
		settings, err := repo.Get(ctx, opts.Origin)
		if err != nil {
			return err
		}
		if settings == nil {
			settings = &core.GroupSettings{GroupID: opts.Origin}
		}
		field := eventField(settings, name)

		if len(opts.Args) == 0 {
			return opts.Reply(ctx, fmt.Sprintf("*%s* : %s\n*Utilisation :* `%s%s on|off`", name, onOff(*field), opts.Prefix, name))
		}
		on, ok := core.ParseSwitch(opts.Args[0])
		if !ok {
			return opts.Reply(ctx, fmt.Sprintf("*Option invalide.* Utilisez `%s%s on|off`", opts.Prefix, name))
		}
		*field = on
		if err := repo.Put(ctx, *settings); err != nil {
			return err
		}
		return opts.Reply(ctx, fmt.Sprintf("✅ *%s %s*", name, onOff(on)))
	}
}

func eventField(s *core.GroupSettings, name string) *bool {
	switch name {
	case "goodbye":
		return &s.Goodbye
	case "antipromote":
		return &s.AntiPromote
	case "antidemote":
		return &s.AntiDemote
	}
	return &s.Welcome
}

// resetWarnings clears every warning a member holds in the group.
func (s *Set) resetWarnings(ctx context.Context, _ string, _ transport.Client, opts *registry.Options) error {
	if allowed, err := requireGroupAdmin(ctx, opts); !allowed {
		return err
	}
	target := userTarget(opts)
	if target == "" {
		return opts.Reply(ctx, msgNoTarget)
	}
	n, err := s.d.Store.Warnings().ResetMember(ctx, opts.Origin, target)
	if err != nil {
		return err
	}
	if n == 0 {
		return opts.Reply(ctx, "*Cet utilisateur n'a aucun avertissement.*")
	}
	return opts.Reply(ctx, fmt.Sprintf("✅ *Avertissements réinitialisés pour %s.*", tag(target)))
}
