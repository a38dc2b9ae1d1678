package source

import (
	"errors"
	"os"
	"testing"

	"github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// pipeInterface hands out the read ends of pipes instead of device nodes.
type pipeInterface struct {
	fds    map[string]int
	closed []int
}

func (p *pipeInterface) OpenRestricted(path string, flags int) (int, error) {
	fd, ok := p.fds[path]
	if !ok {
		return -1, unix.ENOENT
	}
	return fd, nil
}

func (p *pipeInterface) CloseRestricted(fd int) {
	p.closed = append(p.closed, fd)
}

type testPipe struct {
	r, w int
}

func newTestPipe(t *testing.T) testPipe {
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return testPipe{r: fds[0], w: fds[1]}
}

func newTestContext(t *testing.T, paths map[string]testPipe) (*Context, *pipeInterface) {
	iface := &pipeInterface{fds: make(map[string]int)}
	for path, p := range paths {
		iface.fds[path] = p.r
	}
	c, err := NewPathContext(iface)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	c.query = func(path string) (*Device, error) {
		switch path {
		case "/dev/input/event3":
			return &Device{path: path, name: "USB Keyboard", vendorID: 0x1, productID: 0x2,
				caps: newCapabilitySet(fakeCapabilities{types: []evdev.EvType{evdev.EV_KEY}})}, nil
		case "/dev/input/js0":
			return nil, ErrNotEvdev
		case "/dev/input/event6":
			return nil, &OpenError{Path: path, Err: unix.EACCES}
		}
		return &Device{path: path, name: "Test Touchpad", vendorID: 0x6cb, productID: 0xcd8b,
			caps: newCapabilitySet(touchpadCapabilities())}, nil
	}
	return c, iface
}

func drainQueue(c *Context) []Event {
	var events []Event
	for ev := c.NextEvent(); ev != nil; ev = c.NextEvent() {
		events = append(events, *ev)
	}
	return events
}

func TestContextDeliversGestures(t *testing.T) {
	pipe := newTestPipe(t)
	c, _ := newTestContext(t, map[string]testPipe{"/dev/input/event7": pipe})

	d, err := c.AddDevice("/dev/input/event7")
	require.NoError(t, err)
	assert.Equal(t, "Test Touchpad", d.Name())
	assert.True(t, d.HasCapability(CapGesture))

	events := drainQueue(c)
	require.Equal(t, []EventType{DeviceAdded}, types(events))
	assert.Same(t, d, events[0].Device)

	assert.Nil(t, c.NextEvent())
	assert.NoError(t, c.Dispatch())
	assert.Nil(t, c.NextEvent())

	var raw []evdev.InputEvent
	for _, f := range [][]evdev.InputEvent{
		frame(touch(0, 1, 1000, 1000), touch(1, 2, 1200, 1000)),
		frame(move(0, 1000, 800), move(1, 1200, 800)),
		frame(lift(0), lift(1)),
	} {
		raw = append(raw, f...)
	}
	data := encodeEvents(t, raw...)
	_, err = unix.Write(pipe.w, data)
	require.NoError(t, err)

	fds := []unix.PollFd{{Fd: int32(c.Fd()), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, c.Dispatch())
	events = drainQueue(c)
	require.Equal(t, []EventType{GestureSwipeBegin, GestureSwipeUpdate, GestureSwipeEnd}, types(events))
	assert.InDelta(t, -200, events[1].DyUnaccelerated, 0.001)
	assert.Equal(t, 2, events[2].Fingers)

	n, err = unix.Poll(fds, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestContextPartialRecords(t *testing.T) {
	pipe := newTestPipe(t)
	c, _ := newTestContext(t, map[string]testPipe{"/dev/input/event7": pipe})
	_, err := c.AddDevice("/dev/input/event7")
	require.NoError(t, err)
	drainQueue(c)

	var raw []evdev.InputEvent
	for _, f := range [][]evdev.InputEvent{
		frame(touch(0, 1, 1000, 1000), touch(1, 2, 1200, 1000)),
		frame(move(0, 1000, 1200), move(1, 1200, 1200)),
	} {
		raw = append(raw, f...)
	}
	data := encodeEvents(t, raw...)
	split := len(data) - 7

	_, err = unix.Write(pipe.w, data[:split])
	require.NoError(t, err)
	require.NoError(t, c.Dispatch())
	assert.Empty(t, drainQueue(c))

	_, err = unix.Write(pipe.w, data[split:])
	require.NoError(t, err)
	require.NoError(t, c.Dispatch())
	assert.Equal(t, []EventType{GestureSwipeBegin, GestureSwipeUpdate}, types(drainQueue(c)))
}

func TestContextOpenError(t *testing.T) {
	c, _ := newTestContext(t, nil)

	d, err := c.AddDevice("/dev/input/event9")
	assert.Nil(t, d)
	var openErr *OpenError
	require.True(t, errors.As(err, &openErr))
	assert.Equal(t, "/dev/input/event9", openErr.Path)
	assert.ErrorIs(t, err, unix.ENOENT)
	assert.Nil(t, c.NextEvent())

	_, _, err = c.Probe("/dev/input/event9")
	assert.True(t, errors.As(err, &openErr))
}

func TestContextProbeQueryDenied(t *testing.T) {
	pipe := newTestPipe(t)
	c, iface := newTestContext(t, map[string]testPipe{"/dev/input/event6": pipe})

	_, ok, err := c.Probe("/dev/input/event6")
	assert.False(t, ok)
	var openErr *OpenError
	require.True(t, errors.As(err, &openErr))
	assert.ErrorIs(t, err, unix.EACCES)
	assert.Equal(t, []int{pipe.r}, iface.closed)
	assert.Empty(t, c.devices)

	_, err = c.AddDevice("/dev/input/event6")
	assert.True(t, errors.As(err, &openErr))
	assert.Nil(t, c.NextEvent())
}

func TestContextProbeReadOnlyNode(t *testing.T) {
	requireReadOnlyNode(t)
	c, err := NewPathContext(nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	_, ok, err := c.Probe(readOnlyNode)
	assert.False(t, ok)
	var openErr *OpenError
	require.True(t, errors.As(err, &openErr))
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestContextProbe(t *testing.T) {
	touchpad, keyboard, joystick := newTestPipe(t), newTestPipe(t), newTestPipe(t)
	c, iface := newTestContext(t, map[string]testPipe{
		"/dev/input/event7": touchpad,
		"/dev/input/event3": keyboard,
		"/dev/input/js0":    joystick,
	})

	id, ok, err := c.Probe("/dev/input/event7")
	assert.Equal(t, nil, err)
	assert.True(t, ok)
	assert.Equal(t, "Test Touchpad", id.Name)
	assert.Equal(t, uint32(0x6cb), id.VendorID)
	assert.Equal(t, uint32(0xcd8b), id.ProductID)

	_, ok, err = c.Probe("/dev/input/event3")
	assert.Equal(t, nil, err)
	assert.False(t, ok)

	_, ok, err = c.Probe("/dev/input/js0")
	assert.Equal(t, nil, err)
	assert.False(t, ok)

	assert.ElementsMatch(t, []int{touchpad.r, keyboard.r, joystick.r}, iface.closed)
	assert.Nil(t, c.NextEvent())
	assert.Empty(t, c.devices)
}

func TestContextRemoveDevice(t *testing.T) {
	pipe := newTestPipe(t)
	c, iface := newTestContext(t, map[string]testPipe{"/dev/input/event7": pipe})

	d, err := c.AddDevice("/dev/input/event7")
	require.NoError(t, err)
	c.RemoveDevice(d)
	c.RemoveDevice(d)

	assert.Equal(t, []EventType{DeviceAdded, DeviceRemoved}, types(drainQueue(c)))
	assert.Equal(t, []int{pipe.r}, iface.closed)

	_, err = unix.Write(pipe.w, encodeEvents(t, frame(touch(0, 1, 10, 10))...))
	require.NoError(t, err)
	assert.NoError(t, c.Dispatch())
	assert.Nil(t, c.NextEvent())
}

func TestContextClose(t *testing.T) {
	a, b := newTestPipe(t), newTestPipe(t)
	c, iface := newTestContext(t, map[string]testPipe{"/dev/input/event7": a, "/dev/input/event8": b})
	_, err := c.AddDevice("/dev/input/event7")
	require.NoError(t, err)
	_, err = c.AddDevice("/dev/input/event8")
	require.NoError(t, err)

	assert.NoError(t, c.Close())
	assert.ElementsMatch(t, []int{a.r, b.r}, iface.closed)
	assert.Nil(t, c.NextEvent())
	assert.NoError(t, c.Close())
}
