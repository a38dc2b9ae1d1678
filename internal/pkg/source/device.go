package source

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/holoplot/go-evdev"
)

var ErrNotEvdev = errors.New("not an evdev device")

type Capability int

const (
	CapPointer Capability = iota
	CapKeyboard
	CapTouch
	CapGesture
)

// Device is a device bound to a Context.
type Device struct {
	path      string
	fd        int
	name      string
	vendorID  uint16
	productID uint16
	caps      capabilitySet
	absInfos  map[evdev.EvCode]evdev.AbsInfo

	rec     *recognizer
	pending []byte
}

func (d *Device) Path() string {
	if d == nil {
		return ""
	}
	return d.path
}

func (d *Device) Name() string {
	if d == nil {
		return ""
	}
	return d.name
}

func (d *Device) VendorID() uint32 {
	if d == nil {
		return 0
	}
	return uint32(d.vendorID)
}

func (d *Device) ProductID() uint32 {
	if d == nil {
		return 0
	}
	return uint32(d.productID)
}

func (d *Device) HasCapability(c Capability) bool {
	if d == nil {
		return false
	}
	switch c {
	case CapPointer:
		return d.caps.hasType(evdev.EV_REL) || d.caps.hasGesture()
	case CapKeyboard:
		return d.caps.hasKey(evdev.KEY_A) && d.caps.hasKey(evdev.KEY_ENTER)
	case CapTouch:
		return d.caps.hasProp(evdev.INPUT_PROP_DIRECT) && d.caps.hasAbs(evdev.ABS_MT_POSITION_X)
	case CapGesture:
		return d.caps.hasGesture()
	}
	return false
}

func (d *Device) String() string {
	return fmt.Sprintf("%s (%s)", d.name, d.path)
}

type capabilities interface {
	CapableTypes() []evdev.EvType
	CapableEvents(t evdev.EvType) []evdev.EvCode
	Properties() []evdev.EvProp
}

type capabilitySet struct {
	types []evdev.EvType
	abs   []evdev.EvCode
	keys  []evdev.EvCode
	props []evdev.EvProp
}

func newCapabilitySet(c capabilities) capabilitySet {
	s := capabilitySet{
		types: c.CapableTypes(),
		props: c.Properties(),
	}
	if s.hasType(evdev.EV_ABS) {
		s.abs = c.CapableEvents(evdev.EV_ABS)
	}
	if s.hasType(evdev.EV_KEY) {
		s.keys = c.CapableEvents(evdev.EV_KEY)
	}
	return s
}

func (s capabilitySet) hasType(t evdev.EvType) bool {
	for _, x := range s.types {
		if x == t {
			return true
		}
	}
	return false
}

func hasCode(codes []evdev.EvCode, code evdev.EvCode) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func (s capabilitySet) hasAbs(code evdev.EvCode) bool {
	return hasCode(s.abs, code)
}

func (s capabilitySet) hasKey(code evdev.EvCode) bool {
	return hasCode(s.keys, code)
}

func (s capabilitySet) hasProp(p evdev.EvProp) bool {
	for _, x := range s.props {
		if x == p {
			return true
		}
	}
	return false
}

// hasGesture accepts indirect multitouch devices that can tell at least two fingers apart.
func (s capabilitySet) hasGesture() bool {
	if !s.hasType(evdev.EV_ABS) || !s.hasType(evdev.EV_KEY) {
		return false
	}
	if s.hasProp(evdev.INPUT_PROP_DIRECT) {
		return false
	}
	for _, code := range []evdev.EvCode{evdev.ABS_MT_SLOT, evdev.ABS_MT_POSITION_X, evdev.ABS_MT_POSITION_Y} {
		if !s.hasAbs(code) {
			return false
		}
	}
	return s.hasKey(evdev.BTN_TOOL_FINGER) && s.hasKey(evdev.BTN_TOOL_DOUBLETAP)
}

// queryDevice reads identity and capabilities through a separate evdev handle that is closed right away.
// go-evdev opens the node read-write, failing to open it is an OpenError, failing ioctls mean ErrNotEvdev.
func queryDevice(path string) (*Device, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return nil, &OpenError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("%w: %v", ErrNotEvdev, err)
	}
	defer dev.Close()

	name, err := dev.Name()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read name: %v", ErrNotEvdev, err)
	}
	id, err := dev.InputID()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read input id: %v", ErrNotEvdev, err)
	}

	d := &Device{
		path:      path,
		name:      strings.Trim(name, "\x00"),
		vendorID:  id.Vendor,
		productID: id.Product,
		caps:      newCapabilitySet(dev),
	}
	if d.caps.hasType(evdev.EV_ABS) {
		d.absInfos, err = dev.AbsInfos()
		if err != nil {
			return nil, fmt.Errorf("%w: cannot read axis info: %v", ErrNotEvdev, err)
		}
	}
	return d, nil
}
