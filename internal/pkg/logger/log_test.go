package logger

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func drain() {
	for {
		select {
		case <-Messages:
		default:
			return
		}
	}
}

func TestGetLoggerEntry(t *testing.T) {
	drain()
	log := GetLogger()
	log.Info("device bound", zap.String("device_path", "/dev/input/event7"), Gesture)

	data := <-Messages
	var entry map[string]interface{}
	err := json.Unmarshal(data, &entry)
	assert.Equal(t, nil, err)
	assert.Equal(t, "device bound", entry["msg"])
	assert.Equal(t, float64(GestureLvl), entry["level"])
	assert.Equal(t, "/dev/input/event7", entry["device_path"])
	assert.Contains(t, entry, "caller")
}

func TestWriterDoesNotBlock(t *testing.T) {
	drain()
	before := Dropped.Load()
	log := GetLogger()

	total := cap(Messages) + 10
	for i := 0; i < total; i++ {
		log.Info(fmt.Sprintf("message %d", i), Debug)
	}

	assert.Equal(t, cap(Messages), len(Messages))
	assert.Equal(t, uint64(10), Dropped.Load()-before)
	drain()
}

func TestGetLoggerShared(t *testing.T) {
	assert.Same(t, GetLogger(), GetLogger())
}
