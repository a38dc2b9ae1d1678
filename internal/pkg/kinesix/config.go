package kinesix

import (
	"fmt"
	"os"
	"time"

	"github.com/gethiox/kinesix/internal/pkg/gesture"
	"github.com/gethiox/kinesix/internal/pkg/input"
	"github.com/gethiox/kinesix/internal/pkg/source"
	"github.com/go-ini/ini"
)

type KinesixConfig struct {
	Kinesix struct {
		DevicesPath         string
		Device              string
		Bindings            string
		StabilizationPeriod time.Duration
	}

	Engine struct {
		TickInterval time.Duration
		PollTimeout  time.Duration
		GestureDelta float64
	}

	Recognizer source.Thresholds

	UI struct {
		LogViewRate   time.Duration
		LogBufferSize int
	}
}

func DefaultConfig() KinesixConfig {
	var c KinesixConfig
	c.Kinesix.DevicesPath = input.DefaultRoot
	c.Kinesix.Bindings = "kinesix-config/bindings.yaml"
	c.Kinesix.StabilizationPeriod = time.Millisecond * 500
	c.Engine.TickInterval = DefaultTickInterval
	c.Engine.PollTimeout = DefaultPollTimeout
	c.Engine.GestureDelta = gesture.DefaultDelta
	c.Recognizer = source.Thresholds{Swipe: source.DefaultSwipeThreshold, Pinch: source.DefaultPinchThreshold}
	c.UI.LogViewRate = time.Second / 30
	c.UI.LogBufferSize = 256
	return c
}

func LoadKinesixConfig(path string) (KinesixConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return KinesixConfig{}, fmt.Errorf("cannot read config: %w", err)
	}
	return ParseKinesixConfig(data)
}

// ParseKinesixConfig reads ini data, keys that are missing keep their defaults.
func ParseKinesixConfig(data []byte) (KinesixConfig, error) {
	cfg, err := ini.Load(data)
	if err != nil {
		return KinesixConfig{}, fmt.Errorf("cannot parse config: %w", err)
	}

	c := DefaultConfig()

	// [kinesix]
	kinesix := cfg.Section("kinesix")
	stringKey(kinesix, "devices_path", &c.Kinesix.DevicesPath)
	stringKey(kinesix, "device", &c.Kinesix.Device)
	stringKey(kinesix, "bindings", &c.Kinesix.Bindings)
	err = durationKey(kinesix, "stabilization_period", time.Millisecond, &c.Kinesix.StabilizationPeriod)
	if err != nil {
		return KinesixConfig{}, err
	}

	// [engine]
	engine := cfg.Section("engine")
	for _, k := range []struct {
		name string
		dst  *time.Duration
	}{
		{"tick_interval", &c.Engine.TickInterval},
		{"poll_timeout", &c.Engine.PollTimeout},
	} {
		err = durationKey(engine, k.name, time.Millisecond, k.dst)
		if err != nil {
			return KinesixConfig{}, err
		}
		if *k.dst <= 0 {
			return KinesixConfig{}, fmt.Errorf("[engine] %s has to be positive", k.name)
		}
	}
	err = floatKey(engine, "gesture_delta", &c.Engine.GestureDelta)
	if err != nil {
		return KinesixConfig{}, err
	}

	// [recognizer]
	recognizer := cfg.Section("recognizer")
	err = floatKey(recognizer, "swipe_threshold", &c.Recognizer.Swipe)
	if err != nil {
		return KinesixConfig{}, err
	}
	err = floatKey(recognizer, "pinch_threshold", &c.Recognizer.Pinch)
	if err != nil {
		return KinesixConfig{}, err
	}

	// [ui]
	ui := cfg.Section("ui")
	if key, err := ui.GetKey("log_view_rate"); err == nil {
		i, err := key.Int()
		if err != nil || i <= 0 {
			return KinesixConfig{}, fmt.Errorf("[ui] log_view_rate has to be a positive integer: \"%s\"", key.String())
		}
		c.UI.LogViewRate = time.Second / time.Duration(i)
	}
	if key, err := ui.GetKey("log_buffer_size"); err == nil {
		i, err := key.Int()
		if err != nil {
			return KinesixConfig{}, fmt.Errorf("[ui] log_buffer_size: %w", err)
		}
		c.UI.LogBufferSize = i
	}

	return c, nil
}

func stringKey(sec *ini.Section, name string, dst *string) {
	key, err := sec.GetKey(name)
	if err != nil {
		return
	}
	*dst = key.String()
}

func durationKey(sec *ini.Section, name string, unit time.Duration, dst *time.Duration) error {
	key, err := sec.GetKey(name)
	if err != nil {
		return nil
	}
	i, err := key.Int()
	if err != nil {
		return fmt.Errorf("[%s] %s: %w", sec.Name(), name, err)
	}
	*dst = unit * time.Duration(i)
	return nil
}

func floatKey(sec *ini.Section, name string, dst *float64) error {
	key, err := sec.GetKey(name)
	if err != nil {
		return nil
	}
	f, err := key.Float64()
	if err != nil {
		return fmt.Errorf("[%s] %s: %w", sec.Name(), name, err)
	}
	*dst = f
	return nil
}

// Options turns the engine related parts of the config into backend options.
func (c KinesixConfig) Options() []Option {
	return []Option{
		WithDevicesRoot(c.Kinesix.DevicesPath),
		WithTickInterval(c.Engine.TickInterval),
		WithPollTimeout(c.Engine.PollTimeout),
		WithGestureDelta(c.Engine.GestureDelta),
		WithThresholds(c.Recognizer),
	}
}
