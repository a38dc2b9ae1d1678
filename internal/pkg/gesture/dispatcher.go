package gesture

// SwipeHandler and PinchHandler run synchronously on the dispatching goroutine,
// they should hand work off instead of blocking.
type SwipeHandler func(direction SwipeDirection, fingers int)
type PinchHandler func(pinch PinchType, fingers int)

type Dispatcher struct {
	swipe SwipeHandler
	pinch PinchHandler
}

func NewDispatcher(swipe SwipeHandler, pinch PinchHandler) *Dispatcher {
	return &Dispatcher{swipe: swipe, pinch: pinch}
}

func (d *Dispatcher) Dispatch(r Result) {
	switch r.Kind {
	case KindSwipe:
		if d.swipe != nil {
			d.swipe(r.Direction, r.Fingers)
		}
	case KindPinch:
		if d.pinch != nil {
			d.pinch(r.Pinch, r.Fingers)
		}
	}
}
