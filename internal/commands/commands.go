// Package commands implements the built-in bot commands and ships the manifests
// that register them.
package commands

import (
	"context"
	"embed"
	"io/fs"
	"time"

	"github.com/nekodylan/OVL-MD/internal/registry"
	"github.com/nekodylan/OVL-MD/internal/render"
	"github.com/nekodylan/OVL-MD/internal/store"
)

//go:embed manifests/*.yaml
var manifestFS embed.FS

// Manifests returns the built-in command manifests.
func Manifests() fs.FS {
	sub, err := fs.Sub(manifestFS, "manifests")
	if err != nil {
		panic(err)
	}
	return sub
}

// RenderAPI is the subset of the Render client the configuration commands use.
type RenderAPI interface {
	Configured() bool
	EnvVars(ctx context.Context) ([]render.EnvVar, error)
	Lookup(ctx context.Context, key string) (string, bool, error)
	SetVar(ctx context.Context, key, value string) (bool, error)
	DeleteVar(ctx context.Context, key string) (bool, error)
	Redeploy(ctx context.Context) (string, error)
}

type Deps struct {
	Store    *store.DB
	Render   RenderAPI
	Registry *registry.Registry
	Mode     string
	Started  time.Time
	Now      func() time.Time
}

type Set struct {
	d Deps
}

func New(d Deps) *Set {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Started.IsZero() {
		d.Started = d.Now()
	}
	return &Set{d: d}
}

// Catalog maps the handler keys used by the manifests onto handlers.
func (s *Set) Catalog() registry.Catalog {
	return registry.Catalog{
		"menu": s.menu,
		"ping": s.ping,
		"rank": s.rank,
		"top":  s.topRanks,

		"antilink": s.policy("antilink"),
		"antitag":  s.policy("antitag"),
		"antibot":  s.policy("antibot"),

		"welcome":     s.groupEvent("welcome"),
		"goodbye":     s.groupEvent("goodbye"),
		"antipromote": s.groupEvent("antipromote"),
		"antidemote":  s.groupEvent("antidemote"),
		"resetwarn":   s.resetWarnings,

		"ban":        s.ban,
		"unban":      s.unban,
		"bangroup":   s.banGroup,
		"unbangroup": s.unbanGroup,
		"addsudo":    s.addSudo,
		"delsudo":    s.delSudo,
		"sudolist":   s.sudoList,

		"setvar":   s.setVar,
		"getvar":   s.getVar,
		"delvar":   s.delVar,
		"redeploy": s.redeploy,
	}
}

// Load registers the built-in manifests and, when dir is set, the manifests found
// there.
func Load(l *registry.Loader, dir string) (int, error) {
	n, err := l.LoadFS(Manifests(), "builtin")
	if err != nil {
		return n, err
	}
	more, err := l.LoadDir(dir)
	return n + more, err
}

const (
	msgGroupOnly = "*Cette commande ne fonctionne que dans les groupes.*"
	msgAdminOnly = "*Seuls les administrateurs du groupe peuvent utiliser cette commande.*"
	msgNoTarget  = "*Mentionnez un utilisateur, répondez à son message ou donnez son numéro.*"
)

// requireGroupAdmin replies and returns false unless the sender may configure the
// group.
func requireGroupAdmin(ctx context.Context, opts *registry.Options) (bool, error) {
	if !opts.IsGroup {
		return false, opts.Reply(ctx, msgGroupOnly)
	}
	if !opts.IsGroupAdmin && !opts.IsPremium {
		return false, opts.Reply(ctx, msgAdminOnly)
	}
	return true, nil
}
