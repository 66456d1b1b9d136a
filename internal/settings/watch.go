package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses the burst of events an editor or an atomic
// rename produces into a single reload.
const watchDebounce = 250 * time.Millisecond

// Watch reloads the store whenever the settings file changes on disk and
// then calls onChange with the reload result.
//
// The parent directory is watched rather than the file itself so that
// atomic replacements (write temp file, rename over) are seen. Watch returns
// once the watcher is running; it stops when ctx is cancelled.
//
// Parameters:
//   - ctx: Controls the lifetime of the watcher
//   - onChange: Called after each debounced reload; err is the Reload error
//
// Returns:
//   - error: ErrWatchFailed if the watcher cannot be started
func (s *Store) Watch(ctx context.Context, onChange func(err error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWatchFailed, err)
	}

	file := filepath.Clean(s.path)
	dir := filepath.Dir(file)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("%w: %s: %w", ErrWatchFailed, dir, err)
	}

	go s.watchLoop(ctx, watcher, file, onChange)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, file string, onChange func(error)) {
	defer watcher.Close()

	debounce := time.NewTimer(watchDebounce)
	debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			debounce.Stop()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != file {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			debounce.Reset(watchDebounce)

		case <-debounce.C:
			err := s.Reload()
			if onChange != nil {
				onChange(err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if onChange != nil {
				onChange(fmt.Errorf("%w: %w", ErrWatchFailed, err))
			}
		}
	}
}
