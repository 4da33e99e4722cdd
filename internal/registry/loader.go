package registry

import (
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Manifest is one YAML command file. A file declares a category and the commands
// it contributes; each command names a handler from the loader's catalog.
type Manifest struct {
	Category string          `yaml:"category"`
	Commands []ManifestEntry `yaml:"commands"`
}

type ManifestEntry struct {
	Name        string   `yaml:"name"`
	Aliases     []string `yaml:"aliases"`
	React       string   `yaml:"react"`
	Category    string   `yaml:"category"`
	Description string   `yaml:"description"`
	Handler     string   `yaml:"handler"`
	Premium     bool     `yaml:"premium"`
}

// Catalog maps handler keys used in manifests onto compiled handlers.
type Catalog map[string]Handler

// Loader registers manifest commands into a Registry.
type Loader struct {
	Registry *Registry
	Catalog  Catalog
	Log      *zap.Logger
}

func (l *Loader) logger() *zap.Logger {
	if l.Log == nil {
		return zap.NewNop()
	}
	return l.Log.Named("loader")
}

// LoadFS registers every *.yaml / *.yml manifest at the root of fsys, in name order.
// A manifest that fails to parse is logged and skipped. It returns the number of
// commands added.
func (l *Loader) LoadFS(fsys fs.FS, label string) (int, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return 0, errors.Wrapf(err, "read manifests %s", label)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && IsManifest(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	added := 0
	for _, name := range names {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			l.logger().Error("manifest read failed", zap.String("file", name), zap.Error(err))
			continue
		}
		n, err := l.LoadManifest(raw, path.Join(label, name))
		if err != nil {
			l.logger().Error("manifest skipped", zap.String("file", name), zap.Error(err))
			continue
		}
		added += n
	}
	return added, nil
}

// LoadDir loads manifests from a directory on disk. An empty dir is a no-op.
func (l *Loader) LoadDir(dir string) (int, error) {
	if strings.TrimSpace(dir) == "" {
		return 0, nil
	}
	return l.LoadFS(os.DirFS(dir), dir)
}

// LoadFile loads a single manifest from disk.
func (l *Loader) LoadFile(file string) (int, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return 0, errors.Wrap(err, "read manifest")
	}
	return l.LoadManifest(raw, file)
}

// LoadManifest parses raw and registers its commands. Commands naming an unknown
// handler, or rejected by the registry, are logged and skipped. Reloading a manifest
// whose commands are already registered from the same source is a no-op.
func (l *Loader) LoadManifest(raw []byte, source string) (int, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return 0, errors.Wrap(err, "parse manifest")
	}
	if len(m.Commands) == 0 {
		return 0, errors.New("manifest declares no commands")
	}

	log := l.logger()
	added := 0
	for _, c := range m.Commands {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if existing, ok := l.Registry.Lookup(name); ok && existing.Name == name && existing.Source == source {
			continue
		}
		key := c.Handler
		if key == "" {
			key = name
		}
		h, ok := l.Catalog[key]
		if !ok {
			log.Warn("unknown handler", zap.String("command", name), zap.String("handler", key), zap.String("source", source))
			continue
		}
		category := c.Category
		if category == "" {
			category = m.Category
		}
		err := l.Registry.Register(Descriptor{
			Name:        name,
			Aliases:     c.Aliases,
			React:       c.React,
			Category:    category,
			Description: c.Description,
			PremiumOnly: c.Premium,
			Handler:     h,
			Source:      source,
		})
		if err != nil {
			log.Warn("command not registered", zap.String("command", name), zap.String("source", source), zap.Error(err))
			continue
		}
		added++
	}
	log.Debug("manifest loaded", zap.String("source", source), zap.Int("added", added))
	return added, nil
}

// IsManifest reports whether a file name looks like a command manifest.
func IsManifest(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return (ext == ".yaml" || ext == ".yml") && !strings.HasPrefix(path.Base(name), ".")
}
