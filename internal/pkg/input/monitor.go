package input

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gethiox/kinesix/internal/pkg/logger"
	"go.uber.org/zap"
)

// MonitorDevices reports device nodes appearing or disappearing under root.
// Bursts of changes are merged, a signal is sent once nothing changed for the stabilization period,
// which also gives udev time to fix up node permissions.
func MonitorDevices(ctx context.Context, root string, stabilization time.Duration) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cannot create watcher: %w", err)
	}
	err = watcher.Add(root)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("cannot watch \"%s\": %w", root, err)
	}

	var changes = make(chan struct{}, 1)

	go func() {
		defer close(changes)
		defer func() {
			err := watcher.Close()
			if err != nil {
				log.Info(fmt.Sprintf("closing watcher failed: %v", err), logger.Debug)
			}
		}()

		var settle <-chan time.Time
		log.Info("Device monitor engaged", zap.String("device_path", root), logger.Debug)
	root:
		for {
			select {
			case <-ctx.Done():
				break root
			case event, ok := <-watcher.Events:
				if !ok {
					break root
				}
				if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Chmod) == 0 {
					continue
				}
				log.Info(fmt.Sprintf("device node change: %s", event.Op), zap.String("device_path", event.Name), logger.Debug)
				settle = time.After(stabilization)
			case err, ok := <-watcher.Errors:
				if !ok {
					break root
				}
				log.Info(fmt.Sprintf("device monitor error: %v", err), logger.Warning)
			case <-settle:
				settle = nil
				select {
				case changes <- struct{}{}:
				default:
				}
			}
		}
		log.Info("Device monitor disengaged", logger.Debug)
	}()

	return changes, nil
}
