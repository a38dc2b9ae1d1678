package gesture

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func swipeBegin(fingers int) Event {
	return Event{Kind: KindSwipe, Phase: PhaseBegin, Fingers: fingers}
}

func swipeUpdate(dx, dy float64) Event {
	return Event{Kind: KindSwipe, Phase: PhaseUpdate, DX: dx, DY: dy}
}

func swipeEnd(cancelled bool) Event {
	return Event{Kind: KindSwipe, Phase: PhaseEnd, Cancelled: cancelled}
}

func pinchBegin(fingers int) Event {
	return Event{Kind: KindPinch, Phase: PhaseBegin, Fingers: fingers}
}

func pinchUpdate(scale float64) Event {
	return Event{Kind: KindPinch, Phase: PhaseUpdate, Scale: scale}
}

func pinchEnd(cancelled bool) Event {
	return Event{Kind: KindPinch, Phase: PhaseEnd, Cancelled: cancelled}
}

// feedAll returns every finalized result of the stream.
func feedAll(c *Classifier, events ...Event) []Result {
	var results []Result
	for _, ev := range events {
		if r, ok := c.Feed(ev); ok {
			results = append(results, r)
		}
	}
	return results
}

func TestClassifierSequences(t *testing.T) {
	for i, tc := range []struct {
		name     string
		events   []Event
		expected []Result
	}{
		{
			name:     "swipe up",
			events:   []Event{swipeBegin(3), swipeUpdate(-2, -15), swipeUpdate(-1, -20), swipeEnd(false)},
			expected: []Result{{Classification: Classification{Kind: KindSwipe, Direction: Up}, Fingers: 3}},
		},
		{
			name:   "cancelled swipe",
			events: []Event{swipeBegin(2), swipeUpdate(12, 3), swipeEnd(true)},
		},
		{
			name:     "pinch takes the latest scale",
			events:   []Event{pinchBegin(2), pinchUpdate(1.4), pinchUpdate(0.9), pinchEnd(false)},
			expected: []Result{{Classification: Classification{Kind: KindPinch, Pinch: PinchIn}, Fingers: 2}},
		},
		{
			name:     "pinch scale of one keeps previous type",
			events:   []Event{pinchBegin(2), pinchUpdate(1.2), pinchUpdate(1.0), pinchEnd(false)},
			expected: []Result{{Classification: Classification{Kind: KindPinch, Pinch: PinchOut}, Fingers: 2}},
		},
		{
			name:     "swipe down",
			events:   []Event{swipeBegin(4), swipeUpdate(3, 11), swipeEnd(false)},
			expected: []Result{{Classification: Classification{Kind: KindSwipe, Direction: Down}, Fingers: 4}},
		},
		{
			name:     "swipe left",
			events:   []Event{swipeBegin(3), swipeUpdate(-30, 4), swipeUpdate(-5, 1), swipeEnd(false)},
			expected: []Result{{Classification: Classification{Kind: KindSwipe, Direction: Left}, Fingers: 3}},
		},
		{
			name:     "swipe right",
			events:   []Event{swipeBegin(3), swipeUpdate(12, 3), swipeEnd(false)},
			expected: []Result{{Classification: Classification{Kind: KindSwipe, Direction: Right}, Fingers: 3}},
		},
		{
			name:   "delta exactly at threshold decides nothing",
			events: []Event{swipeBegin(3), swipeUpdate(10, 0), swipeUpdate(0, -10), swipeEnd(false)},
		},
		{
			name:   "equal axes decide nothing",
			events: []Event{swipeBegin(3), swipeUpdate(15, -15), swipeEnd(false)},
		},
		{
			name:   "begin without updates emits nothing",
			events: []Event{pinchBegin(2), pinchEnd(false)},
		},
		{
			name:   "updates before begin are ignored",
			events: []Event{swipeUpdate(-40, 0), swipeEnd(false), pinchUpdate(2.0), pinchEnd(false)},
		},
		{
			name:   "mismatched family is ignored",
			events: []Event{swipeBegin(3), pinchUpdate(1.5), pinchEnd(false), swipeUpdate(0, -3), swipeEnd(false)},
		},
		{
			name: "dominant axis moves to y",
			events: []Event{
				swipeBegin(3), swipeUpdate(12, 0), swipeUpdate(2, 25), swipeEnd(false),
			},
			expected: []Result{{Classification: Classification{Kind: KindSwipe, Direction: Down}, Fingers: 3}},
		},
		{
			name: "consecutive gestures",
			events: []Event{
				swipeBegin(3), swipeUpdate(0, -12), swipeEnd(false),
				pinchBegin(2), pinchUpdate(1.1), pinchEnd(false),
			},
			expected: []Result{
				{Classification: Classification{Kind: KindSwipe, Direction: Up}, Fingers: 3},
				{Classification: Classification{Kind: KindPinch, Pinch: PinchOut}, Fingers: 2},
			},
		},
		{
			name: "begin restarts accumulation",
			events: []Event{
				swipeBegin(3), swipeUpdate(-50, 0),
				swipeBegin(3), swipeUpdate(0, 12), swipeEnd(false),
			},
			expected: []Result{{Classification: Classification{Kind: KindSwipe, Direction: Down}, Fingers: 3}},
		},
	} {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			c := NewClassifier(DefaultDelta)
			results := feedAll(c, tc.events...)
			assert.Equal(t, tc.expected, results, tc.name)
			assert.Equal(t, Idle, c.State())
			assert.Equal(t, Accumulator{}, c.Accumulator())
			assert.Equal(t, Classification{}, c.Ongoing())
		})
	}
}

func TestClassifierStates(t *testing.T) {
	c := NewClassifier(DefaultDelta)
	assert.Equal(t, Idle, c.State())

	c.Feed(swipeBegin(3))
	assert.Equal(t, Started, c.State())

	c.Feed(swipeUpdate(1, 1))
	assert.Equal(t, Ongoing, c.State())
	assert.Equal(t, KindUnknown, c.Ongoing().Kind)

	c.Feed(swipeUpdate(0, -11))
	assert.Equal(t, Classification{Kind: KindSwipe, Direction: Up}, c.Ongoing())

	c.Feed(swipeEnd(false))
	assert.Equal(t, Idle, c.State())
}

func TestAccumulatorMonotonic(t *testing.T) {
	for i, updates := range [][][2]float64{
		{{1, 2}, {-3, 0}, {2, -8}, {0, 0}, {40, 1}, {-39, -2}},
		{{-15, 0.5}, {14.9, -0.7}, {-15.1, 0}, {3, 30}, {0, -29}},
		{{0, 0}, {0.1, -0.1}, {-0.2, 0.05}},
	} {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			c := NewClassifier(DefaultDelta)
			c.Feed(swipeBegin(3))
			var lastX, lastY float64
			for _, u := range updates {
				c.Feed(swipeUpdate(u[0], u[1]))
				acc := c.Accumulator()
				assert.GreaterOrEqual(t, math.Abs(acc.MaxDX), lastX)
				assert.GreaterOrEqual(t, math.Abs(acc.MaxDY), lastY)
				lastX, lastY = math.Abs(acc.MaxDX), math.Abs(acc.MaxDY)
			}
		})
	}
}

func TestSwipeDirectionSticky(t *testing.T) {
	c := NewClassifier(DefaultDelta)
	c.Feed(swipeBegin(3))
	c.Feed(swipeUpdate(-25, 2))
	assert.Equal(t, Classification{Kind: KindSwipe, Direction: Left}, c.Ongoing())

	for _, u := range [][2]float64{{5, 0}, {-3, 1}, {9, -9}, {0, 0}} {
		c.Feed(swipeUpdate(u[0], u[1]))
		assert.Equal(t, Classification{Kind: KindSwipe, Direction: Left}, c.Ongoing())
	}

	r, ok := c.Feed(swipeEnd(false))
	assert.True(t, ok)
	assert.Equal(t, Left, r.Direction)
}

func TestCancellationResets(t *testing.T) {
	for i, events := range [][]Event{
		{swipeBegin(3), swipeUpdate(0, -40), swipeEnd(true)},
		{pinchBegin(2), pinchUpdate(0.5), pinchEnd(true)},
		{swipeBegin(4), swipeEnd(true)},
	} {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			c := NewClassifier(DefaultDelta)
			assert.Empty(t, feedAll(c, events...))
			assert.Equal(t, Idle, c.State())
			assert.Equal(t, Accumulator{}, c.Accumulator())
			assert.Equal(t, Classification{}, c.Ongoing())
		})
	}
}

func TestEndFingerCountWins(t *testing.T) {
	c := NewClassifier(DefaultDelta)
	results := feedAll(c,
		swipeBegin(3),
		swipeUpdate(0, 20),
		Event{Kind: KindSwipe, Phase: PhaseEnd, Fingers: 4},
	)
	assert.Equal(t, []Result{{Classification: Classification{Kind: KindSwipe, Direction: Down}, Fingers: 4}}, results)
}

func TestCustomDelta(t *testing.T) {
	c := NewClassifier(50)
	assert.Empty(t, feedAll(c, swipeBegin(3), swipeUpdate(0, -40), swipeEnd(false)))
	assert.Len(t, feedAll(c, swipeBegin(3), swipeUpdate(0, -60), swipeEnd(false)), 1)

	c = NewClassifier(0)
	assert.Len(t, feedAll(c, swipeBegin(3), swipeUpdate(11, 0), swipeEnd(false)), 1)
}
