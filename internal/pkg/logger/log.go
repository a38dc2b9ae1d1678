package logger

import (
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Messages carries JSON encoded log entries to whatever renders them (console or terminal UI).
var Messages = make(chan []byte, 256)

// Dropped counts entries that did not fit into Messages.
var Dropped = atomic.NewUint64(0)

const (
	ErrorLvl   = 0
	WarningLvl = 1
	InfoLvl    = 2
	GestureLvl = 3 // classified gestures and executed bindings
	EventLvl   = 4 // raw gesture phases from the event source

	DebugLvl = 378
)

var (
	Error   = zap.Int("level", ErrorLvl)
	Warning = zap.Int("level", WarningLvl)
	Info    = zap.Int("level", InfoLvl)
	Gesture = zap.Int("level", GestureLvl)
	Event   = zap.Int("level", EventLvl)

	Debug = zap.Int("level", DebugLvl)
)

// chanWriter never blocks the caller, gesture dispatch runs on the same goroutine as logging.
type chanWriter struct {
	sync.Mutex
}

func (w *chanWriter) Write(p []byte) (n int, err error) {
	w.Lock()
	defer w.Unlock()

	var entry = make([]byte, len(p))
	copy(entry, p)
	select {
	case Messages <- entry:
	default:
		Dropped.Inc()
	}
	return len(p), nil
}

func (w *chanWriter) Sync() error {
	return nil
}

var (
	once   sync.Once
	shared *zap.Logger
)

func GetLogger() *zap.Logger {
	once.Do(func() {
		cfg := zap.NewProductionEncoderConfig()
		cfg.SkipLineEnding = true
		cfg.EncodeTime = zapcore.EpochNanosTimeEncoder
		cfg.LevelKey = ""
		encoder := zapcore.NewJSONEncoder(cfg)

		shared = zap.New(
			zapcore.NewCore(encoder, zapcore.Lock(&chanWriter{}), zap.DebugLevel),
			zap.AddCaller(),
		)
	})
	return shared
}
