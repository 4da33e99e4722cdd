package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nekodylan/OVL-MD/internal/registry"
	"github.com/nekodylan/OVL-MD/internal/render"
	"github.com/nekodylan/OVL-MD/internal/transport"
)

const msgRenderOff = "*Render n'est pas configuré (RENDER_API_KEY et RENDER_SERVICE_ID).*"

// renderFailure turns an API failure into the reply shown to the user.
func renderFailure(err error) string {
	if errors.Is(err, render.ErrNotConfigured) {
		return msgRenderOff
	}
	var apiErr *render.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return "*Erreur :* " + apiErr.Message
	}
	return "*Erreur :* " + err.Error()
}

func (s *Set) renderReady(ctx context.Context, opts *registry.Options) (bool, error) {
	if s.d.Render == nil || !s.d.Render.Configured() {
		return false, opts.Reply(ctx, msgRenderOff)
	}
	return true, nil
}

// splitAssignment parses "KEY = value" on the first '='.
func splitAssignment(args []string) (key, value string, ok bool) {
	key, value, found := strings.Cut(strings.Join(args, " "), "=")
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if !found || key == "" || value == "" {
		return "", "", false
	}
	return key, value, true
}

func (s *Set) setVar(ctx context.Context, _ string, _ transport.Client, opts *registry.Options) error {
	key, value, ok := splitAssignment(opts.Args)
	if !ok {
		return opts.Reply(ctx, "*Utilisation :* `setvar clé = valeur`")
	}
	if ready, err := s.renderReady(ctx, opts); !ready {
		return err
	}
	if _, err := s.d.Render.SetVar(ctx, key, value); err != nil {
		return opts.Reply(ctx, renderFailure(err))
	}
	return opts.Reply(ctx, fmt.Sprintf("✨ *Variable définie avec succès !*\n📌 *Clé :* `%s`\n📥 *Valeur :* `%s`", key, value))
}

func (s *Set) getVar(ctx context.Context, _ string, _ transport.Client, opts *registry.Options) error {
	if len(opts.Args) == 0 {
		return opts.Reply(ctx, "*Utilisation :* `getvar clé` pour une variable ou `getvar all` pour toutes les variables.")
	}
	if ready, err := s.renderReady(ctx, opts); !ready {
		return err
	}
	key := opts.Args[0]
	if strings.EqualFold(key, "all") {
		vars, err := s.d.Render.EnvVars(ctx)
		if err != nil {
			return opts.Reply(ctx, renderFailure(err))
		}
		if len(vars) == 0 {
			return opts.Reply(ctx, "📭 *Aucune variable disponible.*")
		}
		lines := make([]string, 0, len(vars))
		for _, v := range vars {
			lines = append(lines, fmt.Sprintf("📌 *%s* : `%s`", v.Key, v.Value))
		}
		return opts.Reply(ctx, "✨ *Liste des variables d'environnement :*\n\n"+strings.Join(lines, "\n"))
	}

	value, found, err := s.d.Render.Lookup(ctx, key)
	if err != nil {
		return opts.Reply(ctx, renderFailure(err))
	}
	if !found {
		return opts.Reply(ctx, fmt.Sprintf("*Variable introuvable :* `%s`", key))
	}
	return opts.Reply(ctx, fmt.Sprintf("📌 *%s* : `%s`", key, value))
}

func (s *Set) delVar(ctx context.Context, _ string, _ transport.Client, opts *registry.Options) error {
	if len(opts.Args) == 0 {
		return opts.Reply(ctx, "*Utilisation :* `delvar clé`")
	}
	if ready, err := s.renderReady(ctx, opts); !ready {
		return err
	}
	key := opts.Args[0]
	removed, err := s.d.Render.DeleteVar(ctx, key)
	if err != nil {
		return opts.Reply(ctx, renderFailure(err))
	}
	if !removed {
		return opts.Reply(ctx, fmt.Sprintf("*Variable introuvable :* `%s`", key))
	}
	return opts.Reply(ctx, fmt.Sprintf("✅ *Variable supprimée avec succès !*\n📌 *Clé :* `%s`", key))
}

func (s *Set) redeploy(ctx context.Context, _ string, _ transport.Client, opts *registry.Options) error {
	if ready, err := s.renderReady(ctx, opts); !ready {
		return err
	}
	id, err := s.d.Render.Redeploy(ctx)
	if err != nil {
		return opts.Reply(ctx, renderFailure(err))
	}
	return opts.Reply(ctx, fmt.Sprintf("🚀 *Redéploiement lancé.*\n🆔 `%s`", id))
}
