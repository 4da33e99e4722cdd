package registry

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const watchDebounce = 250 * time.Millisecond

// Watch loads manifests created or rewritten in dir while ctx is alive. Events are
// debounced so an editor's write burst loads a file once.
func (l *Loader) Watch(ctx context.Context, dir string) error {
	if dir == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "watcher")
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return errors.Wrapf(err, "watch %s", dir)
	}

	log := l.logger()
	go func() {
		defer w.Close()
		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}
		dirty := make(map[string]struct{})
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !IsManifest(ev.Name) || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				dirty[filepath.Clean(ev.Name)] = struct{}{}
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(watchDebounce)
			case <-debounce.C:
				for file := range dirty {
					n, err := l.LoadFile(file)
					if err != nil {
						log.Error("manifest reload failed", zap.String("file", file), zap.Error(err))
						continue
					}
					if n > 0 {
						log.Info("commands added", zap.String("file", file), zap.Int("count", n))
					}
				}
				clear(dirty)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("watch error", zap.Error(err))
			}
		}
	}()
	return nil
}
