package source

import (
	"errors"
	"fmt"

	"github.com/gethiox/kinesix/internal/pkg/input"
	"github.com/gethiox/kinesix/internal/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

var log = logger.GetLogger()

const openFlags = unix.O_RDONLY | unix.O_NONBLOCK | unix.O_CLOEXEC

// Interface opens and closes device nodes on behalf of the Context,
// callers decide how privileges are obtained.
type Interface interface {
	OpenRestricted(path string, flags int) (int, error)
	CloseRestricted(fd int)
}

type DefaultInterface struct{}

func (DefaultInterface) OpenRestricted(path string, flags int) (int, error) {
	return unix.Open(path, flags, 0)
}

func (DefaultInterface) CloseRestricted(fd int) {
	_ = unix.Close(fd)
}

// OpenError means a device node could not be opened at all, proceeding without it is not an option.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("cannot open \"%s\": %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// Context delivers gesture events of the devices added to it.
// It is not safe for concurrent use, only Fd may be polled from another goroutine.
type Context struct {
	iface      Interface
	epfd       int
	thresholds Thresholds

	devices map[int]*Device
	queue   []Event

	query func(path string) (*Device, error)
}

type Option func(c *Context)

func WithThresholds(t Thresholds) Option {
	return func(c *Context) {
		c.thresholds = t
	}
}

func NewPathContext(iface Interface, opts ...Option) (*Context, error) {
	if iface == nil {
		iface = DefaultInterface{}
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("cannot create epoll instance: %w", err)
	}

	c := &Context{
		iface:   iface,
		epfd:    epfd,
		devices: make(map[int]*Device),
		query:   queryDevice,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fd becomes readable whenever any added device has pending events.
func (c *Context) Fd() int {
	return c.epfd
}

func (c *Context) AddDevice(path string) (*Device, error) {
	return c.addDevice(path, true)
}

func (c *Context) addDevice(path string, notify bool) (*Device, error) {
	fd, err := c.iface.OpenRestricted(path, openFlags)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	d, err := c.query(path)
	if err != nil {
		c.iface.CloseRestricted(fd)
		return nil, err
	}
	d.fd = fd
	d.rec = newRecognizer(d, c.thresholds)

	err = unix.EpollCtl(c.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)})
	if err != nil {
		c.iface.CloseRestricted(fd)
		return nil, fmt.Errorf("cannot watch \"%s\": %w", path, err)
	}
	c.devices[fd] = d

	if notify {
		c.push(Event{Type: DeviceAdded, Device: d})
		log.Info("Device added", zap.String("device_name", d.name), zap.String("device_path", path), logger.Debug)
	}
	return d, nil
}

func (c *Context) RemoveDevice(d *Device) {
	c.removeDevice(d, true)
}

func (c *Context) removeDevice(d *Device, notify bool) {
	if d == nil {
		return
	}
	if _, ok := c.devices[d.fd]; !ok {
		return
	}
	_ = unix.EpollCtl(c.epfd, unix.EPOLL_CTL_DEL, d.fd, nil)
	c.iface.CloseRestricted(d.fd)
	delete(c.devices, d.fd)

	if notify {
		c.push(Event{Type: DeviceRemoved, Device: d})
		log.Info("Device removed", zap.String("device_name", d.name), zap.String("device_path", d.path), logger.Debug)
	}
}

// Probe adds the device just long enough to read its identity and capabilities.
// Nodes that are not evdev devices are reported as not capable, open failures are returned.
func (c *Context) Probe(path string) (input.Identity, bool, error) {
	d, err := c.addDevice(path, false)
	if err != nil {
		if errors.Is(err, ErrNotEvdev) {
			log.Info(fmt.Sprintf("skipping device: %v", err), zap.String("device_path", path), logger.Debug)
			return input.Identity{}, false, nil
		}
		return input.Identity{}, false, err
	}
	defer c.removeDevice(d, false)

	return input.Identity{
		Name:      d.Name(),
		VendorID:  d.VendorID(),
		ProductID: d.ProductID(),
	}, d.HasCapability(CapGesture), nil
}

func (c *Context) push(ev Event) {
	c.queue = append(c.queue, ev)
}

// Dispatch moves everything the kernel has for the added devices into the event queue, it never blocks.
func (c *Context) Dispatch() error {
	ready := make([]unix.EpollEvent, 8)
	for {
		n, err := unix.EpollWait(c.epfd, ready, 0)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("epoll wait failed: %w", err)
		}
		for _, ev := range ready[:n] {
			d, ok := c.devices[int(ev.Fd)]
			if !ok {
				continue
			}
			err := c.readDevice(d)
			if err != nil {
				return err
			}
		}
		if n < len(ready) {
			return nil
		}
	}
}

func (c *Context) readDevice(d *Device) error {
	events, pending, err := readPending(d.fd, d.pending)
	d.pending = pending
	for _, ev := range events {
		d.rec.feed(ev, c.push)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.ENODEV) {
		log.Info("Device disappeared", zap.String("device_name", d.name), zap.String("device_path", d.path), logger.Info)
		c.removeDevice(d, true)
		return nil
	}
	return fmt.Errorf("cannot read \"%s\": %w", d.path, err)
}

// NextEvent pops the oldest queued event, nil when the queue is empty.
func (c *Context) NextEvent() *Event {
	if len(c.queue) == 0 {
		return nil
	}
	ev := c.queue[0]
	c.queue[0] = Event{}
	c.queue = c.queue[1:]
	if len(c.queue) == 0 {
		c.queue = nil
	}
	return &ev
}

func (c *Context) Close() error {
	for _, d := range c.devices {
		c.removeDevice(d, false)
	}
	c.queue = nil
	if c.epfd < 0 {
		return nil
	}
	err := unix.Close(c.epfd)
	c.epfd = -1
	return err
}
