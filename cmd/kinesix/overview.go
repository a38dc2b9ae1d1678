package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/awesome-gocui/gocui"
	"github.com/gethiox/kinesix/internal/pkg/action"
	"github.com/gethiox/kinesix/internal/pkg/input"
	"github.com/gethiox/kinesix/internal/pkg/logger"
	"github.com/logrusorgru/aurora"
)

// status is the snapshot of backend state shown by the overview, written from the main loop.
type status struct {
	mu        sync.Mutex
	devices   []input.Device
	active    input.Device
	hasActive bool
}

func (s *status) set(devices []input.Device, active input.Device, hasActive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = devices
	s.active = active
	s.hasActive = hasActive
}

func (s *status) get() ([]input.Device, input.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices, s.active, s.hasActive
}

// logBuffer keeps the newest messages in a ring.
type logBuffer struct {
	mu    sync.Mutex
	data  [][]byte
	next  int
	count int
}

func newLogBuffer(size int) *logBuffer {
	if size < 1 {
		size = 1
	}
	return &logBuffer{data: make([][]byte, size)}
}

func (b *logBuffer) WriteMessage(msg []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[b.next] = msg
	b.next = (b.next + 1) % len(b.data)
	if b.count < len(b.data) {
		b.count++
	}
}

// ReadLastMessages returns up to n newest messages, oldest first.
func (b *logBuffer) ReadLastMessages(n int) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > b.count {
		n = b.count
	}
	if n <= 0 {
		return nil
	}
	out := make([][]byte, 0, n)
	start := (b.next - n + len(b.data)) % len(b.data)
	for i := 0; i < n; i++ {
		out = append(out, b.data[(start+i)%len(b.data)])
	}
	return out
}

func pad(s string, width int) string {
	free := width - rawStringLen(s)
	if free < 0 {
		free = 0
	}
	return s + strings.Repeat(" ", free)
}

func devicesLines(au aurora.Aurora, devices []input.Device, active input.Device, hasActive bool) []string {
	if len(devices) == 0 {
		return []string{au.Gray(12, "no gesture capable devices").String()}
	}
	var lines []string
	for _, d := range devices {
		marker := " "
		if hasActive && d.ID == active.ID && d.Path == active.Path {
			marker = au.Green("*").String()
		}
		lines = append(lines, fmt.Sprintf(
			"%s %2d %s %s [%04x:%04x]",
			marker, d.ID, d.Path, colorForString(au, d.Name), d.VendorID, d.ProductID,
		))
	}
	return lines
}

func gestureLines(au aurora.Aurora, history []action.Record, bindings action.Bindings) []string {
	var lines []string
	for i := len(history) - 1; i >= 0; i-- {
		rec := history[i]
		line := fmt.Sprintf("%s %s", au.Gray(14, rec.Time.Format("15:04:05")), colorForString(au, rec.Result().String()))
		if _, ok := bindings.Lookup(rec.Result()); !ok {
			line += au.Gray(10, " (unbound)").String()
		}
		lines = append(lines, line)
	}
	return lines
}

func writeLines(v *gocui.View, lines []string) {
	x, y := v.Size()
	v.Rewind()
	for i := 0; i < y; i++ {
		var line string
		if i < len(lines) {
			line = lines[i]
		}
		v.Write([]byte(pad(line, x)))
		v.Write([]byte{'\n'})
	}
}

func overviewView(ctx context.Context, g *gocui.Gui, colors bool, st *status, runner *action.Runner, records <-chan action.Record, rate time.Duration) {
	au := aurora.NewAurora(colors)
	var history []action.Record
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-records:
			if !ok {
				return
			}
			history = append(history, rec)
			if len(history) > 32 {
				history = history[1:]
			}
			continue
		case <-ticker.C:
		}

		devices, active, hasActive := st.get()
		dl := devicesLines(au, devices, active, hasActive)
		gl := gestureLines(au, history, runner.Bindings())

		g.Update(func(g *gocui.Gui) error {
			if v, err := g.View(ViewDevices); err == nil {
				writeLines(v, dl)
			}
			if v, err := g.View(ViewGestures); err == nil {
				writeLines(v, gl)
			}
			return nil
		})
	}
}

func logView(ctx context.Context, g *gocui.Gui, colors bool, logLevel, bufSize int, rate time.Duration) {
	buf := newLogBuffer(bufSize)
	au := aurora.NewAurora(colors)
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	var dirty bool
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-logger.Messages:
			if !ok {
				return
			}
			buf.WriteMessage(msg)
			dirty = true
		case <-ticker.C:
			if !dirty {
				continue
			}
			dirty = false
			g.Update(func(g *gocui.Gui) error {
				feeder, err := NewFeeder(g, ViewLogs, logLevel, au)
				if err != nil {
					return nil
				}
				feeder.view.Clear()
				_, y := feeder.view.Size()
				for _, msg := range buf.ReadLastMessages(y) {
					feeder.Write(msg)
				}
				return nil
			})
		}
	}
}
