package mainloop

import (
	"context"
	"sort"
	"sync"
	"time"
)

type SourceID uint

type timeout struct {
	id       SourceID
	interval time.Duration
	next     time.Time
	fn       func() bool
}

// Loop runs periodic callbacks and queued functions on a single goroutine, the one calling Run.
type Loop struct {
	mu      sync.Mutex
	lastID  SourceID
	sources map[SourceID]*timeout
	invokes []func()

	wake chan struct{}
	now  func() time.Time
}

func New() *Loop {
	return &Loop{
		sources: make(map[SourceID]*timeout),
		wake:    make(chan struct{}, 1),
		now:     time.Now,
	}
}

func (l *Loop) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// TimeoutAdd calls fn every interval until it returns false or the source is removed.
func (l *Loop) TimeoutAdd(interval time.Duration, fn func() bool) SourceID {
	if interval <= 0 {
		interval = time.Millisecond
	}
	l.mu.Lock()
	l.lastID++
	id := l.lastID
	l.sources[id] = &timeout{id: id, interval: interval, next: l.now().Add(interval), fn: fn}
	l.mu.Unlock()
	l.notify()
	return id
}

func (l *Loop) Remove(id SourceID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.sources[id]
	delete(l.sources, id)
	return ok
}

// Invoke queues fn to run on the loop goroutine, it is safe to call from anywhere.
func (l *Loop) Invoke(fn func()) {
	l.mu.Lock()
	l.invokes = append(l.invokes, fn)
	l.mu.Unlock()
	l.notify()
}

func (l *Loop) runInvokes() {
	l.mu.Lock()
	queued := l.invokes
	l.invokes = nil
	l.mu.Unlock()

	for _, fn := range queued {
		fn()
	}
}

// dispatch runs due sources and returns how long the loop may sleep.
func (l *Loop) dispatch() time.Duration {
	now := l.now()

	l.mu.Lock()
	var due []*timeout
	for _, t := range l.sources {
		if !t.next.After(now) {
			due = append(due, t)
		}
	}
	l.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].next.Equal(due[j].next) {
			return due[i].id < due[j].id
		}
		return due[i].next.Before(due[j].next)
	})

	for _, t := range due {
		l.mu.Lock()
		_, alive := l.sources[t.id]
		l.mu.Unlock()
		if !alive {
			continue
		}

		keep := t.fn()

		l.mu.Lock()
		if !keep {
			delete(l.sources, t.id)
		} else {
			t.next = t.next.Add(t.interval)
			if !t.next.After(now) {
				t.next = now.Add(t.interval)
			}
		}
		l.mu.Unlock()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	wait := time.Hour
	now = l.now()
	for _, t := range l.sources {
		if d := t.next.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

// Run blocks until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

root:
	for {
		l.runInvokes()
		wait := l.dispatch()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			break root
		case <-l.wake:
		case <-timer.C:
		}
	}
	l.runInvokes()
}
