package kinesix

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/gethiox/kinesix/internal/pkg/logger"
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

const joinTimeoutFactor = 10

// poller waits for the event source fd on its own OS thread and tells the bridge when it became readable.
// Nothing but the ready, drained and cancel signals crosses between the poller and the bridge.
type poller struct {
	fd      int
	timeout time.Duration

	cancelled *atomic.Bool
	cancel    chan struct{}
	ready     chan struct{}
	drained   chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

func startPoller(fd int, timeout time.Duration) *poller {
	p := &poller{
		fd:        fd,
		timeout:   timeout,
		cancelled: atomic.NewBool(false),
		cancel:    make(chan struct{}),
		ready:     make(chan struct{}, 1),
		drained:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *poller) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(p.done)

	log.Info("Poller started", logger.Debug)
	defer log.Info("Poller stopped", logger.Debug)

	fds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	ms := int(p.timeout / time.Millisecond)
	if ms < 1 {
		ms = 1
	}

	for {
		select {
		case <-p.cancel:
			return
		default:
		}
		if p.cancelled.Load() {
			return
		}

		fds[0].Revents = 0
		n, err := unix.Poll(fds, ms)
		if err != nil {
			if !errors.Is(err, unix.EINTR) {
				log.Info(fmt.Sprintf("poll failed: %v", err), logger.Debug)
				if !p.sleep() {
					return
				}
			}
			continue
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			// POLLNVAL or POLLERR would be reported again immediately
			if fds[0].Revents&(unix.POLLNVAL|unix.POLLERR|unix.POLLHUP) != 0 && !p.sleep() {
				return
			}
			continue
		}

		select {
		case p.ready <- struct{}{}:
		default:
		}

		// the fd stays readable until the bridge dispatches, so wait for it instead of spinning
		select {
		case <-p.cancel:
			return
		case <-p.drained:
		}
	}
}

// sleep waits one poll interval, false when cancelled meanwhile.
func (p *poller) sleep() bool {
	select {
	case <-p.cancel:
		return false
	case <-time.After(p.timeout):
		return true
	}
}

// takeReady is the bridge side non-blocking receive.
func (p *poller) takeReady() bool {
	select {
	case <-p.ready:
		return true
	default:
		return false
	}
}

func (p *poller) markDrained() {
	select {
	case p.drained <- struct{}{}:
	default:
	}
}

func (p *poller) cancellationRequested() bool {
	return p.cancelled.Load()
}

// stop cancels the poller and joins it. A poller that does not finish within a few poll intervals
// means the cancellation protocol is broken.
func (p *poller) stop() {
	p.stopOnce.Do(func() {
		p.cancelled.Store(true)
		close(p.cancel)

		select {
		case <-p.done:
		case <-time.After(p.timeout * joinTimeoutFactor):
			panic(fmt.Sprintf("poller did not stop within %s", p.timeout*joinTimeoutFactor))
		}
	})
}
