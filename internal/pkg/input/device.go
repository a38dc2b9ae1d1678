package input

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/gethiox/kinesix/internal/pkg/logger"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const DefaultRoot = "/dev/input/"

var ErrNotCharDevice = errors.New("not a character device")

// Identity is what the event source reports about an opened device.
type Identity struct {
	Name      string
	VendorID  uint32
	ProductID uint32
}

// Device is an immutable record of a gesture capable input device.
type Device struct {
	ID        uint32
	Path      string
	Name      string
	ProductID uint32
	VendorID  uint32
}

func (d Device) String() string {
	return fmt.Sprintf("%s (%s, %04x:%04x)", d.Name, d.Path, d.VendorID, d.ProductID)
}

// Sequence hands out device IDs. Every backend owns its own.
type Sequence struct {
	last *atomic.Uint32
}

func NewSequence() *Sequence {
	return &Sequence{last: atomic.NewUint32(0)}
}

func (s *Sequence) Next() uint32 {
	return s.last.Inc()
}

// Prober opens a device path and reports its identity and whether it delivers gestures.
// A returned error means the path could not be opened at all and is not meant to be skipped.
type Prober interface {
	Probe(path string) (Identity, bool, error)
}

type Registry struct {
	root   string
	prober Prober
	seq    *Sequence

	isCharDevice func(path string) (bool, error)
}

func NewRegistry(root string, prober Prober, seq *Sequence) *Registry {
	if root == "" {
		root = DefaultRoot
	}
	return &Registry{
		root:         root,
		prober:       prober,
		seq:          seq,
		isCharDevice: isCharDevice,
	}
}

func (r *Registry) Root() string {
	return r.root
}

func isCharDevice(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return info.Mode()&fs.ModeCharDevice != 0, nil
}

// ListCharacterDevices returns character device paths found directly under the registry root.
func (r *Registry) ListCharacterDevices() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("cannot read \"%s\" directory: %w", r.root, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(r.root, entry.Name())
		ok, err := r.isCharDevice(path)
		if err != nil {
			log.Info(fmt.Sprintf("cannot stat device: %v", err), zap.String("device_path", path), logger.Debug)
			continue
		}
		if ok {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// OpenAndCheckGestureCapability returns nil device without error when path does not deliver gestures.
func (r *Registry) OpenAndCheckGestureCapability(path string) (*Device, error) {
	ok, err := r.isCharDevice(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat \"%s\": %w", path, err)
	}
	if !ok {
		return nil, ErrNotCharDevice
	}

	id, capable, err := r.prober.Probe(path)
	if err != nil {
		return nil, err
	}
	if !capable {
		return nil, nil
	}

	return &Device{
		ID:        r.seq.Next(),
		Path:      path,
		Name:      id.Name,
		ProductID: id.ProductID,
		VendorID:  id.VendorID,
	}, nil
}

// Scan lists every gesture capable device under the root, sorted by path.
func (r *Registry) Scan() ([]Device, error) {
	paths, err := r.ListCharacterDevices()
	if err != nil {
		return nil, err
	}

	var devices []Device
	for _, path := range paths {
		d, err := r.OpenAndCheckGestureCapability(path)
		if err != nil {
			if errors.Is(err, ErrNotCharDevice) || errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		if d == nil {
			continue
		}
		log.Info("Gesture device found", zap.String("device_name", d.Name), zap.String("device_path", d.Path), logger.Debug)
		devices = append(devices, *d)
	}

	SortByPath(devices)
	return devices, nil
}

func SortByPath(devices []Device) {
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Path < devices[j].Path
	})
}

// FindByPath does a binary search over devices sorted by path.
func FindByPath(devices []Device, path string) (int, bool) {
	i := sort.Search(len(devices), func(i int) bool {
		return devices[i].Path >= path
	})
	if i < len(devices) && devices[i].Path == path {
		return i, true
	}
	return i, false
}
