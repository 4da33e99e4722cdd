// Package registry holds the command table the dispatcher resolves invocations
// against. A Registry is built once at startup and passed to the dispatcher; it only
// grows afterwards.
package registry

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nekodylan/OVL-MD/internal/transport"
)

// ErrDuplicate is returned by Register when the primary name is already taken.
var ErrDuplicate = errors.New("registry: duplicate command name")

// Handler runs one command. origin is the chat the invocation came from.
type Handler func(ctx context.Context, origin string, client transport.Client, opts *Options) error

type Descriptor struct {
	Name        string
	Aliases     []string
	React       string
	Category    string
	Description string
	// PremiumOnly handlers answer non-premium senders with a refusal and do nothing else.
	PremiumOnly bool
	Handler     Handler
	// Source names the manifest the command was loaded from, if any.
	Source string
}

// Registry maps lower-cased names and aliases onto descriptors. Lookups scan in
// registration order, so the first registered match wins.
type Registry struct {
	log *zap.Logger

	mu    sync.RWMutex
	items []*Descriptor
}

func New(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{log: log.Named("registry")}
}

// Register appends d. A name already registered as a primary name is rejected with
// ErrDuplicate. Aliases colliding with earlier commands are kept but logged, since
// the earlier command shadows them.
func (r *Registry) Register(d Descriptor) error {
	name := strings.ToLower(strings.TrimSpace(d.Name))
	if name == "" {
		return errors.New("registry: command name is required")
	}
	if d.Handler == nil {
		return errors.Errorf("registry: command %q has no handler", name)
	}
	d.Name = name
	aliases := make([]string, 0, len(d.Aliases))
	for _, a := range d.Aliases {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" && a != name {
			aliases = append(aliases, a)
		}
	}
	d.Aliases = aliases

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Name == name {
			r.log.Warn("duplicate command rejected",
				zap.String("name", name),
				zap.String("source", d.Source),
				zap.String("registered_from", existing.Source),
			)
			return errors.Wrapf(ErrDuplicate, "%q", name)
		}
	}
	for _, alias := range append([]string{name}, aliases...) {
		if owner := r.matchLocked(alias); owner != nil {
			r.log.Warn("alias shadowed by earlier command",
				zap.String("alias", alias),
				zap.String("command", name),
				zap.String("shadowed_by", owner.Name),
			)
		}
	}
	cp := d
	r.items = append(r.items, &cp)
	return nil
}

// Lookup resolves a name or alias, case-insensitively.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d := r.matchLocked(name)
	return d, d != nil
}

func (r *Registry) matchLocked(name string) *Descriptor {
	for _, d := range r.items {
		if d.Name == name {
			return d
		}
		for _, a := range d.Aliases {
			if a == name {
				return d
			}
		}
	}
	return nil
}

// List returns the descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.items))
	for _, d := range r.items {
		out = append(out, *d)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// DefaultCategory holds commands that declare no category.
const DefaultCategory = "Divers"

// CategoryOf returns d's category, or DefaultCategory.
func CategoryOf(d Descriptor) string {
	if d.Category == "" {
		return DefaultCategory
	}
	return d.Category
}

// Categories groups command names by category, in registration order.
func (r *Registry) Categories() (order []string, names map[string][]string) {
	names = make(map[string][]string)
	for _, d := range r.List() {
		cat := CategoryOf(d)
		if _, ok := names[cat]; !ok {
			order = append(order, cat)
		}
		names[cat] = append(names[cat], d.Name)
	}
	return order, names
}
