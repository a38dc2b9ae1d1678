package action

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/gethiox/kinesix/internal/pkg/gesture"
	"github.com/gethiox/kinesix/internal/pkg/logger"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Record is a dispatched gesture on its way to the runner and the UI.
type Record struct {
	Gesture gesture.Classification
	Fingers int
	Time    time.Time
}

func SwipeRecord(direction gesture.SwipeDirection, fingers int) Record {
	return Record{
		Gesture: gesture.Classification{Kind: gesture.KindSwipe, Direction: direction},
		Fingers: fingers,
		Time:    time.Now(),
	}
}

func PinchRecord(pinch gesture.PinchType, fingers int) Record {
	return Record{
		Gesture: gesture.Classification{Kind: gesture.KindPinch, Pinch: pinch},
		Fingers: fingers,
		Time:    time.Now(),
	}
}

func (r Record) Result() gesture.Result {
	return gesture.Result{Classification: r.Gesture, Fingers: r.Fingers}
}

func (r Record) String() string {
	return fmt.Sprintf("%s %s", r.Time.Format("15:04:05.000"), r.Result())
}

// Executor starts the command and waits for it.
type Executor func(ctx context.Context, args []string) error

func ExecCommand(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	return cmd.Run()
}

// Runner executes the command bound to each incoming record. Bindings can be swapped while running.
type Runner struct {
	bindings atomic.Value
	exec     Executor
	wg       sync.WaitGroup
}

func NewRunner(bindings Bindings, exec Executor) *Runner {
	if exec == nil {
		exec = ExecCommand
	}
	r := &Runner{exec: exec}
	r.SetBindings(bindings)
	return r
}

func (r *Runner) SetBindings(b Bindings) {
	if b == nil {
		b = Bindings{}
	}
	r.bindings.Store(b)
}

func (r *Runner) Bindings() Bindings {
	return r.bindings.Load().(Bindings)
}

// Handle starts the bound command in the background, false when nothing is bound.
func (r *Runner) Handle(ctx context.Context, rec Record) bool {
	cmd, ok := r.Bindings().Lookup(rec.Result())
	if !ok {
		log.Info(fmt.Sprintf("no binding for %s", rec.Result()), logger.Debug)
		return false
	}

	log.Info(fmt.Sprintf("%s -> %s", rec.Result(), cmd.Line), logger.Info)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		start := time.Now()
		err := r.exec(ctx, cmd.Args)
		if err != nil {
			log.Info(fmt.Sprintf("command failed: %v", err), zap.String("command", cmd.Line), logger.Warning)
			return
		}
		log.Info(fmt.Sprintf("command finished in %s", time.Since(start)), zap.String("command", cmd.Line), logger.Debug)
	}()
	return true
}

// Run handles records until the channel is closed or ctx is done, then waits for started commands.
func (r *Runner) Run(ctx context.Context, records <-chan Record) {
	defer r.wg.Wait()

root:
	for {
		select {
		case <-ctx.Done():
			break root
		case rec, ok := <-records:
			if !ok {
				break root
			}
			r.Handle(ctx, rec)
		}
	}
}
