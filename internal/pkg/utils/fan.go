package utils

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/atomic"
)

// DynamicFanOut copies every input value to each spawned output.
// A full output skips the value rather than stalling the others. Outputs are closed once the input is.
type DynamicFanOut[T any] struct {
	input   <-chan T
	outCap  int
	dropped *atomic.Uint64

	mutex   sync.Mutex
	closed  bool
	outputs map[int64]chan T
	done    chan struct{}
}

func NewDynamicFanOut[T any](input <-chan T) *DynamicFanOut[T] {
	ocap := cap(input)
	if ocap == 0 {
		ocap = 1
	}
	f := &DynamicFanOut[T]{
		input:   input,
		outCap:  ocap,
		dropped: atomic.NewUint64(0),
		outputs: make(map[int64]chan T),
		done:    make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *DynamicFanOut[T]) run() {
	defer close(f.done)

	for e := range f.input {
		f.mutex.Lock()
		for _, o := range f.outputs {
			select {
			case o <- e:
			default:
				f.dropped.Inc()
			}
		}
		f.mutex.Unlock()
	}

	f.mutex.Lock()
	f.closed = true
	for id, o := range f.outputs {
		close(o)
		delete(f.outputs, id)
	}
	f.mutex.Unlock()
}

// SpawnOutput creates a new output channel and the ID for despawning it.
// Outputs are buffered like the input channel, with at least one slot.
func (f *DynamicFanOut[T]) SpawnOutput() (int64, <-chan T, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.closed {
		return 0, nil, fmt.Errorf("input channel is closed")
	}

	for id := int64(0); id < math.MaxInt64; id++ {
		if _, ok := f.outputs[id]; ok {
			continue
		}
		c := make(chan T, f.outCap)
		f.outputs[id] = c
		return id, c, nil
	}
	return 0, nil, fmt.Errorf("no space available")
}

// DespawnOutput closes and removes the output with the given ID.
func (f *DynamicFanOut[T]) DespawnOutput(id int64) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	c, ok := f.outputs[id]
	if !ok {
		return fmt.Errorf("output id %d not found", id)
	}
	close(c)
	delete(f.outputs, id)
	return nil
}

// Dropped counts values skipped because an output was full.
func (f *DynamicFanOut[T]) Dropped() uint64 {
	return f.dropped.Load()
}

// Done is closed after the input was drained and every output closed.
func (f *DynamicFanOut[T]) Done() <-chan struct{} {
	return f.done
}
