package gesture

import "math"

// DefaultDelta is the smallest peak unaccelerated delta that decides a swipe direction.
const DefaultDelta = 10.0

type State int

const (
	Idle State = iota
	Started
	Ongoing
)

func (s State) String() string {
	switch s {
	case Started:
		return "started"
	case Ongoing:
		return "ongoing"
	default:
		return "idle"
	}
}

// Accumulator keeps the peak deltas of the swipe in progress.
type Accumulator struct {
	MaxDX, MaxDY float64
}

func (a *Accumulator) add(dx, dy float64) {
	if math.Abs(dx) > math.Abs(a.MaxDX) {
		a.MaxDX = dx
	}
	if math.Abs(dy) > math.Abs(a.MaxDY) {
		a.MaxDY = dy
	}
}

// Classifier turns gesture phases into one Result per gesture.
//
// Swipe direction follows the peak delta seen so far and is never cleared by smaller samples.
// Pinch type follows the latest scale sample: any update with scale above or below 1 overwrites it.
type Classifier struct {
	delta float64

	state   State
	kind    Kind
	fingers int
	acc     Accumulator
	ongoing Classification
}

func NewClassifier(delta float64) *Classifier {
	if delta <= 0 {
		delta = DefaultDelta
	}
	return &Classifier{delta: delta}
}

func (c *Classifier) State() State {
	return c.state
}

func (c *Classifier) Accumulator() Accumulator {
	return c.acc
}

func (c *Classifier) Ongoing() Classification {
	return c.ongoing
}

// Reset drops the gesture in progress.
func (c *Classifier) Reset() {
	c.reset()
}

func (c *Classifier) reset() {
	c.state = Idle
	c.kind = KindUnknown
	c.fingers = 0
	c.acc = Accumulator{}
	c.ongoing = Classification{}
}

// Feed consumes one event, ok is true when a gesture was finalized.
func (c *Classifier) Feed(ev Event) (result Result, ok bool) {
	if ev.Kind != KindSwipe && ev.Kind != KindPinch {
		return Result{}, false
	}

	switch ev.Phase {
	case PhaseBegin:
		c.reset()
		c.state = Started
		c.kind = ev.Kind
		c.fingers = ev.Fingers

	case PhaseUpdate:
		if c.state == Idle || ev.Kind != c.kind {
			return Result{}, false
		}
		c.state = Ongoing
		if ev.Kind == KindSwipe {
			c.updateSwipe(ev.DX, ev.DY)
		} else {
			c.updatePinch(ev.Scale)
		}

	case PhaseEnd:
		if c.state == Idle || ev.Kind != c.kind {
			return Result{}, false
		}
		result = Result{Classification: c.ongoing, Fingers: c.fingers}
		if ev.Fingers > 0 {
			result.Fingers = ev.Fingers
		}
		ok = !ev.Cancelled && c.ongoing.Kind == c.kind
		c.reset()
		if !ok {
			return Result{}, false
		}
		return result, true
	}
	return Result{}, false
}

func (c *Classifier) updateSwipe(dx, dy float64) {
	c.acc.add(dx, dy)
	x, y := c.acc.MaxDX, c.acc.MaxDY

	switch {
	case math.Abs(y) > math.Abs(x):
		if y < -c.delta {
			c.ongoing = Classification{Kind: KindSwipe, Direction: Up}
		} else if y > c.delta {
			c.ongoing = Classification{Kind: KindSwipe, Direction: Down}
		}
	case math.Abs(x) > math.Abs(y):
		if x < -c.delta {
			c.ongoing = Classification{Kind: KindSwipe, Direction: Left}
		} else if x > c.delta {
			c.ongoing = Classification{Kind: KindSwipe, Direction: Right}
		}
	}
}

func (c *Classifier) updatePinch(scale float64) {
	switch {
	case scale > 1.0:
		c.ongoing = Classification{Kind: KindPinch, Pinch: PinchOut}
	case scale < 1.0:
		c.ongoing = Classification{Kind: KindPinch, Pinch: PinchIn}
	}
}
