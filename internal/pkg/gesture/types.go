package gesture

import (
	"fmt"
	"strings"
)

type SwipeDirection int

const (
	Up SwipeDirection = iota
	Down
	Left
	Right
)

func (d SwipeDirection) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

func ParseSwipeDirection(s string) (SwipeDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return 0, fmt.Errorf("unknown swipe direction \"%s\"", s)
}

type PinchType int

const (
	PinchIn PinchType = iota
	PinchOut
)

func (p PinchType) String() string {
	switch p {
	case PinchIn:
		return "in"
	case PinchOut:
		return "out"
	default:
		return fmt.Sprintf("pinch(%d)", int(p))
	}
}

func ParsePinchType(s string) (PinchType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in":
		return PinchIn, nil
	case "out":
		return PinchOut, nil
	}
	return 0, fmt.Errorf("unknown pinch type \"%s\"", s)
}

// Kind is the gesture family.
type Kind int

const (
	KindUnknown Kind = iota
	KindSwipe
	KindPinch
)

func (k Kind) String() string {
	switch k {
	case KindSwipe:
		return "swipe"
	case KindPinch:
		return "pinch"
	default:
		return "unknown"
	}
}

type Phase int

const (
	PhaseBegin Phase = iota
	PhaseUpdate
	PhaseEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseBegin:
		return "begin"
	case PhaseUpdate:
		return "update"
	case PhaseEnd:
		return "end"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Event is one phase of a gesture as delivered by the event source.
// DX and DY are meaningful for swipe updates, Scale for pinch updates, Cancelled for ends.
type Event struct {
	Kind      Kind
	Phase     Phase
	Fingers   int
	DX, DY    float64
	Scale     float64
	Cancelled bool
}

// Classification is the provisional decision for the gesture in progress.
type Classification struct {
	Kind      Kind
	Direction SwipeDirection
	Pinch     PinchType
}

func (c Classification) String() string {
	switch c.Kind {
	case KindSwipe:
		return fmt.Sprintf("swipe %s", c.Direction)
	case KindPinch:
		return fmt.Sprintf("pinch %s", c.Pinch)
	default:
		return "unknown"
	}
}

// Result is a finalized gesture.
type Result struct {
	Classification
	Fingers int
}

func (r Result) String() string {
	return fmt.Sprintf("%s (%d fingers)", r.Classification, r.Fingers)
}
