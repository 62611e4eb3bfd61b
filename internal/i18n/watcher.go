package i18n

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the bundled locale files whenever a YAML file in the directory changes.
// It blocks until ctx is canceled.
func (r *Resolver) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create locale watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("watch locale dir %s: %w", r.dir, err)
	}

	r.log.Info("watching locale files", slog.String("dir", r.dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isYAMLName(event.Name) || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
				continue
			}
			if err := r.Reload(); err != nil {
				r.log.Error("failed to reload locale files", slog.String("file", event.Name), slog.Any("error", err))
				continue
			}
			r.log.Info("locale files reloaded", slog.String("file", event.Name))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Error("locale watcher error", slog.Any("error", err))
		}
	}
}
