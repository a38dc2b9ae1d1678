package kinesix

import (
	"errors"
	"fmt"
	"time"

	"github.com/gethiox/kinesix/internal/pkg/gesture"
	"github.com/gethiox/kinesix/internal/pkg/input"
	"github.com/gethiox/kinesix/internal/pkg/logger"
	"github.com/gethiox/kinesix/internal/pkg/mainloop"
	"github.com/gethiox/kinesix/internal/pkg/source"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	DefaultTickInterval = time.Millisecond * 200
	DefaultPollTimeout  = time.Millisecond * 500
)

var ErrClosed = errors.New("backend is closed")

// EventSource is what the backend needs from source.Context.
type EventSource interface {
	input.Prober
	Fd() int
	Dispatch() error
	NextEvent() *source.Event
	AddDevice(path string) (*source.Device, error)
	RemoveDevice(d *source.Device)
	Close() error
}

// DeviceRegistry lists gesture capable devices sorted by path.
type DeviceRegistry interface {
	Scan() ([]input.Device, error)
}

// Scheduler calls fn every interval on the goroutine that owns the backend, until fn returns false.
type Scheduler interface {
	TimeoutAdd(interval time.Duration, fn func() bool) mainloop.SourceID
}

type options struct {
	source     EventSource
	registry   DeviceRegistry
	root       string
	scheduler  Scheduler
	tick       time.Duration
	poll       time.Duration
	delta      float64
	thresholds source.Thresholds
}

type Option func(o *options)

func WithSource(s EventSource) Option {
	return func(o *options) { o.source = s }
}

func WithRegistry(r DeviceRegistry) Option {
	return func(o *options) { o.registry = r }
}

func WithDevicesRoot(root string) Option {
	return func(o *options) { o.root = root }
}

func WithScheduler(s Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

func WithTickInterval(d time.Duration) Option {
	return func(o *options) { o.tick = d }
}

func WithPollTimeout(d time.Duration) Option {
	return func(o *options) { o.poll = d }
}

func WithGestureDelta(delta float64) Option {
	return func(o *options) { o.delta = delta }
}

func WithThresholds(t source.Thresholds) Option {
	return func(o *options) { o.thresholds = t }
}

// Backend owns the event source, the active device and the gesture pipeline.
// Every method except the poller internals must be called from one goroutine, usually the main loop.
type Backend struct {
	source    EventSource
	registry  DeviceRegistry
	scheduler Scheduler
	tick      time.Duration
	poll      time.Duration

	devices []input.Device
	scanned bool

	// active is a copy of the bound list entry, its ID and path form the lookup key
	active       input.Device
	activeHandle *source.Device

	classifier *gesture.Classifier
	dispatcher *gesture.Dispatcher

	poller  *poller
	ticking bool
	closed  bool
}

func New(swipe gesture.SwipeHandler, pinch gesture.PinchHandler, opts ...Option) (*Backend, error) {
	o := options{
		root:  input.DefaultRoot,
		tick:  DefaultTickInterval,
		poll:  DefaultPollTimeout,
		delta: gesture.DefaultDelta,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.source == nil {
		ctx, err := source.NewPathContext(source.DefaultInterface{}, source.WithThresholds(o.thresholds))
		if err != nil {
			return nil, fmt.Errorf("cannot create event source: %w", err)
		}
		o.source = ctx
	}
	if o.registry == nil {
		o.registry = input.NewRegistry(o.root, o.source, input.NewSequence())
	}

	return &Backend{
		source:     o.source,
		registry:   o.registry,
		scheduler:  o.scheduler,
		tick:       o.tick,
		poll:       o.poll,
		classifier: gesture.NewClassifier(o.delta),
		dispatcher: gesture.NewDispatcher(swipe, pinch),
	}, nil
}

// GetValidDeviceList scans once and serves the cached list until ClearDeviceList.
func (b *Backend) GetValidDeviceList() ([]input.Device, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if !b.scanned {
		devices, err := b.registry.Scan()
		if err != nil {
			return nil, fmt.Errorf("device scan failed: %w", err)
		}
		b.devices = devices
		b.scanned = true
		b.refreshActive()
		log.Info(fmt.Sprintf("%d gesture device(s) available", len(devices)), logger.Debug)
	}

	list := make([]input.Device, len(b.devices))
	copy(list, b.devices)
	return list, nil
}

func (b *Backend) ClearDeviceList() {
	b.devices = nil
	b.scanned = false
}

// refreshActive moves the binding to the rescanned record of the same node, or drops it.
func (b *Backend) refreshActive() {
	if b.activeHandle == nil {
		return
	}
	i, ok := input.FindByPath(b.devices, b.active.Path)
	if ok && b.devices[i].Name == b.active.Name {
		b.active = b.devices[i]
		return
	}
	log.Info("Active device is gone", zap.String("device_path", b.active.Path), logger.Info)
	b.unbind()
}

func (b *Backend) ActiveDevice() (input.Device, bool) {
	if b.activeHandle == nil {
		return input.Device{}, false
	}
	return b.active, true
}

// SetActiveDevice binds d in place of the current device. Devices that are not on the valid list are ignored,
// binding the active device again does nothing.
func (b *Backend) SetActiveDevice(d input.Device) error {
	if _, err := b.GetValidDeviceList(); err != nil {
		return err
	}

	i, ok := input.FindByPath(b.devices, d.Path)
	if !ok || b.devices[i].ID != d.ID {
		log.Info("Ignoring device that is not on the valid list", zap.String("device_path", d.Path), logger.Debug)
		return nil
	}
	if b.activeHandle != nil && b.active.ID == d.ID {
		return nil
	}

	b.unbind()
	handle, err := b.source.AddDevice(d.Path)
	if err != nil {
		var openErr *source.OpenError
		if errors.As(err, &openErr) {
			return err
		}
		log.Info(fmt.Sprintf("cannot bind device: %v", err), zap.String("device_name", d.Name), logger.Warning)
		return nil
	}

	b.active = b.devices[i]
	b.activeHandle = handle
	b.classifier.Reset()
	log.Info("Device bound", zap.String("device_name", d.Name), zap.String("device_path", d.Path), logger.Info)
	return nil
}

func (b *Backend) unbind() {
	if b.activeHandle == nil {
		return
	}
	b.source.RemoveDevice(b.activeHandle)
	b.activeHandle = nil
	b.active = input.Device{}
}

func (b *Backend) Polling() bool {
	return b.poller != nil
}

// StartPolling spawns the poller and, once per backend, registers OnTick with the scheduler.
func (b *Backend) StartPolling() {
	if b.closed || b.poller != nil {
		return
	}
	b.poller = startPoller(b.source.Fd(), b.poll)

	if b.scheduler != nil && !b.ticking {
		b.scheduler.TimeoutAdd(b.tick, b.OnTick)
		b.ticking = true
	}
}

// StopPolling is idempotent.
func (b *Backend) StopPolling() {
	if b.poller == nil {
		return
	}
	b.poller.stop()
	b.poller = nil
}

// OnTick is the main loop side of the poller, it returns false once the backend is closed.
func (b *Backend) OnTick() bool {
	if b.closed {
		return false
	}
	p := b.poller
	if p == nil || p.cancellationRequested() {
		return true
	}
	if !p.takeReady() {
		return true
	}

	b.drain()
	p.markDrained()
	return true
}

func (b *Backend) drain() {
	err := b.source.Dispatch()
	if err != nil {
		log.Info(fmt.Sprintf("dispatch failed: %v", err), logger.Warning)
	}
	for ev := b.source.NextEvent(); ev != nil; ev = b.source.NextEvent() {
		b.handle(ev)
	}
}

func (b *Backend) handle(ev *source.Event) {
	if ev.Type == source.DeviceRemoved {
		if ev.Device != nil && ev.Device == b.activeHandle {
			log.Info("Active device removed", zap.String("device_name", ev.Device.Name()), logger.Warning)
			b.activeHandle = nil
			b.active = input.Device{}
			b.ClearDeviceList()
		}
		return
	}

	g, ok := translate(ev)
	if !ok {
		return
	}
	log.Info(ev.String(), zap.String("device_name", ev.Device.Name()), logger.Event)

	result, ok := b.classifier.Feed(g)
	if !ok {
		return
	}
	log.Info(fmt.Sprintf("Gesture: %s", result), zap.String("device_name", ev.Device.Name()), logger.Gesture)
	b.dispatcher.Dispatch(result)
}

func translate(ev *source.Event) (gesture.Event, bool) {
	g := gesture.Event{Fingers: ev.Fingers, Cancelled: ev.Cancelled}
	switch ev.Type {
	case source.GestureSwipeBegin:
		g.Kind, g.Phase = gesture.KindSwipe, gesture.PhaseBegin
	case source.GestureSwipeUpdate:
		g.Kind, g.Phase = gesture.KindSwipe, gesture.PhaseUpdate
		g.DX, g.DY = ev.DxUnaccelerated, ev.DyUnaccelerated
	case source.GestureSwipeEnd:
		g.Kind, g.Phase = gesture.KindSwipe, gesture.PhaseEnd
	case source.GesturePinchBegin:
		g.Kind, g.Phase = gesture.KindPinch, gesture.PhaseBegin
	case source.GesturePinchUpdate:
		g.Kind, g.Phase = gesture.KindPinch, gesture.PhaseUpdate
		g.Scale = ev.Scale
	case source.GesturePinchEnd:
		g.Kind, g.Phase = gesture.KindPinch, gesture.PhaseEnd
	default:
		return g, false
	}
	return g, true
}

// Close stops polling, releases the active device and the event source. OnTick returns false afterwards.
func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.StopPolling()
	b.unbind()
	b.closed = true
	return b.source.Close()
}
