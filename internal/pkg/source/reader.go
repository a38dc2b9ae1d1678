package source

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"
)

var eventSize = binary.Size(evdev.InputEvent{})

const readBatch = 64

// decodeEvents decodes whole input_event records and returns the bytes of a trailing partial record.
func decodeEvents(data []byte) ([]evdev.InputEvent, []byte, error) {
	n := len(data) / eventSize
	if n == 0 {
		return nil, data, nil
	}
	events := make([]evdev.InputEvent, n)
	err := binary.Read(bytes.NewReader(data[:n*eventSize]), binary.LittleEndian, events)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot decode input events: %w", err)
	}
	return events, data[n*eventSize:], nil
}

// readPending reads everything the kernel has queued for a non-blocking fd.
func readPending(fd int, pending []byte) ([]evdev.InputEvent, []byte, error) {
	var events []evdev.InputEvent
	buf := make([]byte, eventSize*readBatch)
	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, unix.EAGAIN) {
				return events, pending, nil
			}
			return events, pending, err
		}
		if n == 0 {
			return events, pending, nil
		}
		pending = append(pending, buf[:n]...)

		var batch []evdev.InputEvent
		batch, pending, err = decodeEvents(pending)
		if err != nil {
			return events, nil, err
		}
		events = append(events, batch...)
		if n < len(buf) {
			return events, pending, nil
		}
	}
}
