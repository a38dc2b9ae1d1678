package source

import (
	"math"
	"syscall"
	"time"

	"github.com/holoplot/go-evdev"
)

const (
	DefaultSwipeThreshold = 100.0 // centroid travel before a swipe begins, about 2.5mm
	DefaultPinchThreshold = 150.0 // mean finger spread change before a pinch begins

	defaultSlots = 10
	mmPerInch    = 25.4
	targetDPI    = 1000.0
)

type Thresholds struct {
	Swipe float64
	Pinch float64
}

type recognizerState int

const (
	recIdle recognizerState = iota
	recPending
	recSwipe
	recPinch
	recLocked
)

type slot struct {
	active bool
	x, y   int32
	hasX   bool
	hasY   bool
}

type point struct {
	x, y float64
}

// recognizer turns a multitouch event stream into gesture events, one device each.
type recognizer struct {
	device     *Device
	thresholds Thresholds
	scaleX     float64
	scaleY     float64

	slots   []slot
	current int
	tools   [6]bool
	dropped bool

	state        recognizerState
	fingers      int
	origin       point
	last         point
	spreadOrigin float64
}

func newRecognizer(d *Device, t Thresholds) *recognizer {
	if t.Swipe <= 0 {
		t.Swipe = DefaultSwipeThreshold
	}
	if t.Pinch <= 0 {
		t.Pinch = DefaultPinchThreshold
	}

	r := &recognizer{
		device:     d,
		thresholds: t,
		scaleX:     1,
		scaleY:     1,
		slots:      make([]slot, defaultSlots),
	}
	if d == nil {
		return r
	}
	if info, ok := d.absInfos[evdev.ABS_MT_SLOT]; ok && info.Maximum >= 0 {
		r.slots = make([]slot, info.Maximum+1)
	}
	if info, ok := d.absInfos[evdev.ABS_MT_POSITION_X]; ok && info.Resolution > 0 {
		r.scaleX = targetDPI / mmPerInch / float64(info.Resolution)
	}
	if info, ok := d.absInfos[evdev.ABS_MT_POSITION_Y]; ok && info.Resolution > 0 {
		r.scaleY = targetDPI / mmPerInch / float64(info.Resolution)
	}
	return r
}

func toolFingers(code evdev.EvCode) int {
	switch code {
	case evdev.BTN_TOOL_FINGER:
		return 1
	case evdev.BTN_TOOL_DOUBLETAP:
		return 2
	case evdev.BTN_TOOL_TRIPLETAP:
		return 3
	case evdev.BTN_TOOL_QUADTAP:
		return 4
	case evdev.BTN_TOOL_QUINTTAP:
		return 5
	}
	return 0
}

func eventTime(ev evdev.InputEvent) time.Time {
	return time.Unix(0, syscall.TimevalToNsec(ev.Time))
}

func (r *recognizer) feed(ev evdev.InputEvent, emit func(Event)) {
	if r.dropped {
		if ev.Type == evdev.EV_SYN && ev.Code == evdev.SYN_REPORT {
			r.dropped = false
		}
		return
	}

	switch ev.Type {
	case evdev.EV_ABS:
		r.handleAbs(ev)
	case evdev.EV_KEY:
		if n := toolFingers(ev.Code); n > 0 {
			r.tools[n] = ev.Value != 0
		}
	case evdev.EV_SYN:
		switch ev.Code {
		case evdev.SYN_REPORT:
			r.frame(eventTime(ev), emit)
		case evdev.SYN_DROPPED:
			// state is unreliable until the next report, the gesture in progress cannot be trusted
			r.finish(eventTime(ev), true, emit)
			r.state = recLocked
			r.dropped = true
		}
	}
}

func (r *recognizer) handleAbs(ev evdev.InputEvent) {
	switch ev.Code {
	case evdev.ABS_MT_SLOT:
		r.current = int(ev.Value)
		if r.current >= len(r.slots) && r.current < 64 {
			r.slots = append(r.slots, make([]slot, r.current+1-len(r.slots))...)
		}
		return
	}

	if r.current < 0 || r.current >= len(r.slots) {
		return
	}
	s := &r.slots[r.current]
	switch ev.Code {
	case evdev.ABS_MT_TRACKING_ID:
		if ev.Value == -1 {
			*s = slot{}
		} else if !s.active {
			*s = slot{active: true}
		}
	case evdev.ABS_MT_POSITION_X:
		s.x, s.hasX = ev.Value, true
	case evdev.ABS_MT_POSITION_Y:
		s.y, s.hasY = ev.Value, true
	}
}

func (r *recognizer) fingerCount() int {
	var n int
	for _, s := range r.slots {
		if s.active {
			n++
		}
	}
	for i := len(r.tools) - 1; i > n; i-- {
		if r.tools[i] {
			return i
		}
	}
	return n
}

func (r *recognizer) points() []point {
	var pts []point
	for _, s := range r.slots {
		if s.active && s.hasX && s.hasY {
			pts = append(pts, point{x: float64(s.x) * r.scaleX, y: float64(s.y) * r.scaleY})
		}
	}
	return pts
}

func centroid(pts []point) point {
	var c point
	for _, p := range pts {
		c.x += p.x
		c.y += p.y
	}
	c.x /= float64(len(pts))
	c.y /= float64(len(pts))
	return c
}

// spread is the mean distance of the fingers from their centroid.
func spread(pts []point, c point) float64 {
	var sum float64
	for _, p := range pts {
		sum += math.Hypot(p.x-c.x, p.y-c.y)
	}
	return sum / float64(len(pts))
}

func (r *recognizer) gestureEvent(t EventType, ts time.Time) Event {
	return Event{Type: t, Time: ts, Device: r.device, Fingers: r.fingers, Scale: 1}
}

func (r *recognizer) startPending(n int, c point, s float64) {
	r.state = recPending
	r.fingers = n
	r.origin = c
	r.last = c
	r.spreadOrigin = s
}

func (r *recognizer) frame(ts time.Time, emit func(Event)) {
	n := r.fingerCount()
	pts := r.points()

	switch r.state {
	case recIdle:
		if n >= 2 && len(pts) >= 2 {
			c := centroid(pts)
			r.startPending(n, c, spread(pts, c))
		}

	case recPending:
		if n < 2 || len(pts) < 2 {
			r.state = recIdle
			return
		}
		c := centroid(pts)
		s := spread(pts, c)
		if n != r.fingers {
			r.startPending(n, c, s)
			return
		}

		move := math.Hypot(c.x-r.origin.x, c.y-r.origin.y)
		spreadChange := math.Abs(s - r.spreadOrigin)
		switch {
		case spreadChange > r.thresholds.Pinch && spreadChange > move && r.spreadOrigin > 0:
			r.state = recPinch
			emit(r.gestureEvent(GesturePinchBegin, ts))
			r.update(GesturePinchUpdate, ts, c, s, emit)
		case move > r.thresholds.Swipe:
			r.state = recSwipe
			r.last = r.origin
			emit(r.gestureEvent(GestureSwipeBegin, ts))
			r.update(GestureSwipeUpdate, ts, c, s, emit)
		}

	case recSwipe, recPinch:
		if n != r.fingers {
			increased := n > r.fingers
			r.finish(ts, increased, emit)
			if increased && len(pts) >= 2 {
				c := centroid(pts)
				r.startPending(n, c, spread(pts, c))
			} else if n > 0 {
				r.state = recLocked
			}
			return
		}
		if len(pts) < 2 {
			return
		}
		c := centroid(pts)
		if r.state == recSwipe {
			r.update(GestureSwipeUpdate, ts, c, 0, emit)
		} else {
			r.update(GesturePinchUpdate, ts, c, spread(pts, c), emit)
		}

	case recLocked:
		if n == 0 {
			r.state = recIdle
		}
	}
}

func (r *recognizer) update(t EventType, ts time.Time, c point, s float64, emit func(Event)) {
	ev := r.gestureEvent(t, ts)
	ev.Dx = c.x - r.last.x
	ev.Dy = c.y - r.last.y
	ev.DxUnaccelerated = ev.Dx
	ev.DyUnaccelerated = ev.Dy
	if t == GesturePinchUpdate && r.spreadOrigin > 0 {
		ev.Scale = s / r.spreadOrigin
	}
	r.last = c
	emit(ev)
}

// finish ends the gesture in progress, if any.
func (r *recognizer) finish(ts time.Time, cancelled bool, emit func(Event)) {
	var t EventType
	switch r.state {
	case recSwipe:
		t = GestureSwipeEnd
	case recPinch:
		t = GesturePinchEnd
	default:
		r.state = recIdle
		return
	}
	ev := r.gestureEvent(t, ts)
	ev.Cancelled = cancelled
	emit(ev)
	r.state = recIdle
}
