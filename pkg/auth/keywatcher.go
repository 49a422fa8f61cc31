package auth

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the keyring whenever its backing file changes on disk,
// so keys can be rotated without a restart. It blocks until ctx is
// canceled and is meant to run in its own goroutine.
func (k *Keyring) Watch(ctx context.Context) error {
	if k.path == "" {
		return fmt.Errorf("keyring has no backing file to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create key file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory rather than the file: most tooling replaces
	// the file on save, which would orphan a file-level watch.
	if err := watcher.Add(filepath.Dir(k.path)); err != nil {
		return fmt.Errorf("failed to watch key file directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(k.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := k.Reload(); err != nil {
				k.logger.Warn("keyring reload failed, previous keys stay active", "error", err)
				continue
			}
			k.logger.Info("keyring reloaded", "keys", k.Size())

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			k.logger.Warn("key file watcher error", "error", err)
		}
	}
}
