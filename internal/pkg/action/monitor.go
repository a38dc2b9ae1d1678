package action

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gethiox/kinesix/internal/pkg/logger"
)

// DetectBindingChanges notifies when the bindings file is written or replaced.
// The parent directory is watched, editors often save by renaming a temporary file over the bound one.
// Bursts of events within settle are reported once.
func DetectBindingChanges(ctx context.Context, path string, settle time.Duration) (<-chan struct{}, error) {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cannot create watcher: %w", err)
	}
	err = watcher.Add(filepath.Dir(path))
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("cannot watch \"%s\": %w", filepath.Dir(path), err)
	}

	change := make(chan struct{}, 1)

	go func() {
		defer close(change)
		defer func() {
			err := watcher.Close()
			if err != nil {
				log.Info(fmt.Sprintf("closing watcher failed: %v", err), logger.Debug)
			}
		}()

		timer := time.NewTimer(settle)
		if !timer.Stop() {
			<-timer.C
		}

	root:
		for {
			select {
			case <-ctx.Done():
				break root
			case event, ok := <-watcher.Events:
				if !ok {
					break root
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				timer.Reset(settle)
			case err, ok := <-watcher.Errors:
				if !ok {
					break root
				}
				log.Info(fmt.Sprintf("binding watcher error: %v", err), logger.Debug)
			case <-timer.C:
				log.Info(fmt.Sprintf("bindings change detected: %s", path), logger.Info)
				select {
				case change <- struct{}{}:
				default:
				}
			}
		}
	}()

	return change, nil
}
