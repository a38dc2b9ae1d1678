package action

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gethiox/kinesix/internal/pkg/gesture"
	"github.com/gethiox/kinesix/internal/pkg/logger"
	"github.com/mattn/go-shellwords"
	"gopkg.in/yaml.v3"
)

const (
	MinFingers = 2
	MaxFingers = 5
)

var ErrUnsupportedFormat = errors.New("unsupported bindings format")

type Format int

const (
	YAML Format = iota
	TOML
)

// FormatFromPath picks the decoder by file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	}
	return 0, fmt.Errorf("%w: \"%s\"", ErrUnsupportedFormat, path)
}

type fileBindings struct {
	Swipe []fileSwipe `yaml:"swipe" toml:"swipe"`
	Pinch []filePinch `yaml:"pinch" toml:"pinch"`
}

type fileSwipe struct {
	Direction string `yaml:"direction" toml:"direction"`
	Fingers   int    `yaml:"fingers" toml:"fingers"`
	Command   string `yaml:"command" toml:"command"`
}

type filePinch struct {
	Type    string `yaml:"type" toml:"type"`
	Fingers int    `yaml:"fingers" toml:"fingers"`
	Command string `yaml:"command" toml:"command"`
}

type Command struct {
	Line string
	Args []string
}

// Bindings maps a finished gesture to the command it triggers.
type Bindings map[gesture.Result]Command

func (b Bindings) Lookup(r gesture.Result) (Command, bool) {
	c, ok := b[r]
	return c, ok
}

// Keys returns bound gestures in a stable order, swipes first.
func (b Bindings) Keys() []gesture.Result {
	keys := make([]gesture.Result, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, c := keys[i], keys[j]
		if a.Kind != c.Kind {
			return a.Kind < c.Kind
		}
		if a.Direction != c.Direction {
			return a.Direction < c.Direction
		}
		if a.Pinch != c.Pinch {
			return a.Pinch < c.Pinch
		}
		return a.Fingers < c.Fingers
	})
	return keys
}

func LoadBindings(path string) (Bindings, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bindings failed: %w", err)
	}
	return ParseBindings(data, format)
}

func ParseBindings(data []byte, format Format) (Bindings, error) {
	var raw fileBindings
	switch format {
	case YAML:
		err := yaml.Unmarshal(data, &raw)
		if err != nil {
			return nil, fmt.Errorf("parsing yaml failed: %w", err)
		}
	case TOML:
		_, err := toml.Decode(string(data), &raw)
		if err != nil {
			return nil, fmt.Errorf("parsing toml failed: %w", err)
		}
	default:
		return nil, ErrUnsupportedFormat
	}

	bindings := make(Bindings)

	for i, s := range raw.Swipe {
		direction, err := gesture.ParseSwipeDirection(s.Direction)
		if err != nil {
			return nil, fmt.Errorf("swipe %d: %w", i, err)
		}
		key := gesture.Result{
			Classification: gesture.Classification{Kind: gesture.KindSwipe, Direction: direction},
			Fingers:        s.Fingers,
		}
		err = bindings.add(key, s.Command)
		if err != nil {
			return nil, fmt.Errorf("swipe %d: %w", i, err)
		}
	}

	for i, p := range raw.Pinch {
		pinch, err := gesture.ParsePinchType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("pinch %d: %w", i, err)
		}
		key := gesture.Result{
			Classification: gesture.Classification{Kind: gesture.KindPinch, Pinch: pinch},
			Fingers:        p.Fingers,
		}
		err = bindings.add(key, p.Command)
		if err != nil {
			return nil, fmt.Errorf("pinch %d: %w", i, err)
		}
	}

	return bindings, nil
}

func (b Bindings) add(key gesture.Result, line string) error {
	if key.Fingers < MinFingers || key.Fingers > MaxFingers {
		return fmt.Errorf("fingers has to be within %d-%d range: %d", MinFingers, MaxFingers, key.Fingers)
	}
	args, err := shellwords.Parse(line)
	if err != nil {
		return fmt.Errorf("cannot parse command \"%s\": %w", line, err)
	}
	if len(args) == 0 {
		return fmt.Errorf("empty command for %s", key)
	}
	if _, ok := b[key]; ok {
		log.Info(fmt.Sprintf("duplicated binding for %s, using the last one", key), logger.Warning)
	}
	b[key] = Command{Line: line, Args: args}
	return nil
}
