package source

import (
	"fmt"
	"time"
)

// EventType numbering matches the platform gesture library so values read the same in logs.
type EventType int

const (
	None          EventType = 0
	DeviceAdded   EventType = 1
	DeviceRemoved EventType = 2

	GestureSwipeBegin  EventType = 800
	GestureSwipeUpdate EventType = 801
	GestureSwipeEnd    EventType = 802
	GesturePinchBegin  EventType = 803
	GesturePinchUpdate EventType = 804
	GesturePinchEnd    EventType = 805
)

func (t EventType) String() string {
	switch t {
	case DeviceAdded:
		return "DEVICE_ADDED"
	case DeviceRemoved:
		return "DEVICE_REMOVED"
	case GestureSwipeBegin:
		return "GESTURE_SWIPE_BEGIN"
	case GestureSwipeUpdate:
		return "GESTURE_SWIPE_UPDATE"
	case GestureSwipeEnd:
		return "GESTURE_SWIPE_END"
	case GesturePinchBegin:
		return "GESTURE_PINCH_BEGIN"
	case GesturePinchUpdate:
		return "GESTURE_PINCH_UPDATE"
	case GesturePinchEnd:
		return "GESTURE_PINCH_END"
	default:
		return fmt.Sprintf("EVENT(%d)", int(t))
	}
}

func (t EventType) IsGesture() bool {
	return t >= GestureSwipeBegin && t <= GesturePinchEnd
}

// Event is a queued event. Deltas are in device units normalized to 1000 dpi,
// this source applies no pointer acceleration so accelerated and unaccelerated deltas are equal.
type Event struct {
	Type   EventType
	Time   time.Time
	Device *Device

	Fingers   int
	Cancelled bool

	Dx, Dy                           float64
	DxUnaccelerated, DyUnaccelerated float64
	Scale                            float64
}

func (e Event) String() string {
	switch e.Type {
	case GestureSwipeUpdate:
		return fmt.Sprintf("%s fingers=%d dx=%.2f dy=%.2f", e.Type, e.Fingers, e.DxUnaccelerated, e.DyUnaccelerated)
	case GesturePinchUpdate:
		return fmt.Sprintf("%s fingers=%d scale=%.3f", e.Type, e.Fingers, e.Scale)
	case GestureSwipeEnd, GesturePinchEnd:
		return fmt.Sprintf("%s fingers=%d cancelled=%t", e.Type, e.Fingers, e.Cancelled)
	default:
		return fmt.Sprintf("%s fingers=%d", e.Type, e.Fingers)
	}
}
