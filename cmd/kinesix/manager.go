package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gethiox/kinesix/internal/pkg/action"
	"github.com/gethiox/kinesix/internal/pkg/gesture"
	"github.com/gethiox/kinesix/internal/pkg/input"
	"github.com/gethiox/kinesix/internal/pkg/kinesix"
	"github.com/gethiox/kinesix/internal/pkg/logger"
	"github.com/gethiox/kinesix/internal/pkg/mainloop"
	"go.uber.org/zap"
)

const statusInterval = time.Second

// matchDevice finds the preferred device by exact path first, then by a case-insensitive name fragment.
// An empty preference picks the first device.
func matchDevice(devices []input.Device, preferred string) (input.Device, bool) {
	if len(devices) == 0 {
		return input.Device{}, false
	}
	if preferred == "" {
		return devices[0], true
	}
	if i, ok := input.FindByPath(devices, preferred); ok {
		return devices[i], true
	}
	fragment := strings.ToLower(preferred)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), fragment) {
			return d, true
		}
	}
	return input.Device{}, false
}

// deviceBackend is the part of kinesix.Backend the manager drives.
type deviceBackend interface {
	GetValidDeviceList() ([]input.Device, error)
	ClearDeviceList()
	ActiveDevice() (input.Device, bool)
	SetActiveDevice(d input.Device) error
}

// selectDevice keeps the active device when it is still valid, otherwise binds the preferred one
// or falls back to the first valid device.
func selectDevice(b deviceBackend, preferred string) error {
	devices, err := b.GetValidDeviceList()
	if err != nil {
		return err
	}
	if _, ok := b.ActiveDevice(); ok {
		return nil
	}
	if len(devices) == 0 {
		log.Info("No gesture capable device available", logger.Debug)
		return nil
	}

	d, ok := matchDevice(devices, preferred)
	if !ok {
		log.Info(fmt.Sprintf("Preferred device \"%s\" not found, using the first one", preferred), logger.Warning)
		d = devices[0]
	}
	log.Info("Selecting device", zap.String("device_name", d.Name), zap.String("device_path", d.Path), logger.Debug)
	return b.SetActiveDevice(d)
}

func publish(st *status, b deviceBackend) {
	devices, err := b.GetValidDeviceList()
	if err != nil {
		devices = nil
	}
	active, ok := b.ActiveDevice()
	st.set(devices, active, ok)
}

// pushRecord hands a gesture over without stalling the main loop.
func pushRecord(records chan<- action.Record, rec action.Record) {
	select {
	case records <- rec:
	default:
		log.Info(fmt.Sprintf("gesture record dropped: %s", rec.Result()), logger.Debug)
	}
}

// runManager runs the gesture engine on the calling goroutine until ctx is done.
// The returned error is fatal, such as a device that cannot be opened.
func runManager(ctx context.Context, cfg kinesix.KinesixConfig, preferred string, st *status, records chan<- action.Record) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := mainloop.New()

	b, err := kinesix.New(
		func(direction gesture.SwipeDirection, fingers int) {
			pushRecord(records, action.SwipeRecord(direction, fingers))
		},
		func(pinch gesture.PinchType, fingers int) {
			pushRecord(records, action.PinchRecord(pinch, fingers))
		},
		append(cfg.Options(), kinesix.WithScheduler(loop))...,
	)
	if err != nil {
		return err
	}
	defer func() {
		err := b.Close()
		if err != nil {
			log.Info(fmt.Sprintf("closing backend failed: %v", err), logger.Warning)
		}
	}()

	var fatal error
	refresh := func() {
		err := selectDevice(b, preferred)
		publish(st, b)
		if err != nil && fatal == nil {
			fatal = err
			cancel()
		}
	}

	refresh()
	if fatal != nil {
		return fatal
	}
	if _, ok := b.ActiveDevice(); !ok {
		log.Info("No gesture capable device found, waiting for one to appear", logger.Warning)
	}
	b.StartPolling()

	// the backend drops a removed active device on its own, pick a replacement
	loop.TimeoutAdd(statusInterval, func() bool {
		refresh()
		return true
	})

	hotplug, err := input.MonitorDevices(ctx, cfg.Kinesix.DevicesPath, cfg.Kinesix.StabilizationPeriod)
	if err != nil {
		log.Info(fmt.Sprintf("device hotplug disabled: %v", err), logger.Warning)
	} else {
		go func() {
			for range hotplug {
				loop.Invoke(func() {
					log.Info("Device change detected, rescanning", logger.Debug)
					b.ClearDeviceList()
					refresh()
				})
			}
		}()
	}

	log.Info("Run manager", logger.Debug)
	loop.Run(ctx)
	log.Info("Exit manager", logger.Debug)
	return fatal
}

// watchBindings reloads bindings on change, a broken file keeps the previous bindings active.
func watchBindings(ctx context.Context, path string, runner *action.Runner) {
	changes, err := action.DetectBindingChanges(ctx, path, time.Millisecond*200)
	if err != nil {
		log.Info(fmt.Sprintf("bindings reload disabled: %v", err), logger.Warning)
		return
	}
	for range changes {
		bindings, err := action.LoadBindings(path)
		if err != nil {
			log.Info(fmt.Sprintf("bindings reload failed, keeping previous ones: %v", err), logger.Warning)
			continue
		}
		runner.SetBindings(bindings)
		log.Info(fmt.Sprintf("%d bindings loaded", len(bindings)), logger.Info)
	}
}
