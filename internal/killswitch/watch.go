package killswitch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch signals once on the returned channel when the sentinel appears.
// It only observes; callers still abort at their next RequireAlive check.
// The channel closes without a signal when ctx ends.
func (s *Switch) Watch(ctx context.Context) (<-chan struct{}, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("watch kill switch: %w", err)
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	fired := make(chan struct{}, 1)
	go s.run(ctx, fsWatcher, fired)
	return fired, nil
}

func (s *Switch) run(ctx context.Context, w *fsnotify.Watcher, fired chan struct{}) {
	defer close(fired)
	defer w.Close()

	// Sentinel may have been created before the watch was registered.
	if s.IsKilled() {
		fired <- struct{}{}
		return
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			select {
			case fired <- struct{}{}:
			default:
			}
			return

		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}
