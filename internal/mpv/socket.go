package mpv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WaitForSocket blocks until path exists or ctx is done. mpv creates its
// IPC socket only once it has started, so a daemon launched alongside it
// waits here instead of polling.
func WaitForSocket(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create socket watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	// The socket may have appeared between the first check and Add.
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for mpv socket %s: %w", path, ctx.Err())
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("socket watcher closed")
			}
			if filepath.Clean(ev.Name) == target && ev.Has(fsnotify.Create) {
				return nil
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("socket watcher closed")
			}
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
}
