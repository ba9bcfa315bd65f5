// Package volctl reads and sets the operating system's master audio volume.
//
// The volume calls are made by a native library that is embedded into
// the binary. On construction the library is written to a directory on
// disk (the temp directory by default) and loaded into the process.
//
// # Multiple instances
//
// By default every VolumeControl shares one library file,
// <dir>/<name>.<ext>. A stale file left behind by an earlier run is
// replaced. A file that can't be replaced, typically because another
// process has it loaded, is reused as is.
//
// With WithMultiInstance(true) every VolumeControl writes its own file
// with a random suffix. These files are never removed: a loaded library
// can't be unloaded for the rest of the process's life.
package volctl

import (
	"fmt"
	"io/fs"

	"github.com/vmorsell/volctl/internal/native"
	"github.com/vmorsell/volctl/internal/resource"
	"github.com/vmorsell/volctl/pkg/model"
	"go.uber.org/zap"
)

const (
	// MinVolume is the lowest volume SetVolume accepts.
	MinVolume = model.MinVolume
	// MaxVolume is the highest volume SetVolume accepts.
	MaxVolume = model.MaxVolume
)

var (
	// ErrInvalidVolume is returned for a volume outside [MinVolume, MaxVolume].
	ErrInvalidVolume = model.ErrInvalidVolume
	// ErrResourceMissing is returned when the binary carries no native
	// library for this platform.
	ErrResourceMissing = resource.ErrResourceMissing
	// ErrNativeLoad is returned when the native library can't be loaded.
	ErrNativeLoad = native.ErrNativeLoad
)

// Backend is the call surface of a loaded native library.
type Backend = native.Backend

// Loader loads a native library file.
type Loader = native.Loader

// VolumeControl gives access to the master volume. It is safe for
// concurrent use.
type VolumeControl struct {
	backend Backend
	path    string
}

type options struct {
	dir           string
	name          string
	multiInstance bool
	logger        *zap.Logger
	payload       fs.FS
	resource      string
	loader        Loader
}

// Option configures New.
type Option func(*options)

// WithDirectory sets the directory the library file is written to.
func WithDirectory(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithName sets the library file name, without extension.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithMultiInstance makes every instance write its own library file.
func WithMultiInstance(enabled bool) Option {
	return func(o *options) { o.multiInstance = enabled }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithPayload replaces the embedded library with the file name in fsys.
func WithPayload(fsys fs.FS, name string) Option {
	return func(o *options) {
		o.payload = fsys
		o.resource = name
	}
}

// WithLoader replaces the platform's dynamic loader.
func WithLoader(loader Loader) Option {
	return func(o *options) { o.loader = loader }
}

// New writes the native library to disk, loads it and returns a
// VolumeControl backed by it.
func New(opts ...Option) (*VolumeControl, error) {
	o := options{
		dir:      TempDir(),
		name:     DefaultLibName(),
		payload:  payload,
		resource: payloadResource(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.loader == nil {
		o.loader = native.Default()
	}

	policy := resource.SharedFile
	if o.multiInstance {
		policy = resource.PerInstanceFile
	}
	desc := resource.Descriptor{BaseName: o.name, Extension: LibExtension()}

	var backend Backend
	m := resource.NewMaterializer(o.logger, o.payload, o.resource)
	path, err := m.MaterializeFunc(o.dir, desc, policy, func(path string) error {
		b, err := o.loader.Load(path)
		if err != nil {
			return err
		}
		backend = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("export native library: %w", err)
	}

	o.logger.Debug("volume control ready",
		zap.String("path", path),
		zap.Stringer("policy", policy))
	return &VolumeControl{backend: backend, path: path}, nil
}

// NewWithMultiInstanceSupport is New with WithMultiInstance(true)
// applied after opts.
func NewWithMultiInstanceSupport(opts ...Option) (*VolumeControl, error) {
	return New(append(opts, WithMultiInstance(true))...)
}

// FromBackend returns a VolumeControl that talks to b directly, without
// exporting or loading a library.
func FromBackend(b Backend) *VolumeControl {
	return &VolumeControl{backend: b}
}

// GetVolume returns the current master volume. The value is passed
// through from the native library unchecked; it is expected to be
// within [MinVolume, MaxVolume].
func (c *VolumeControl) GetVolume() int {
	return c.backend.Read()
}

// SetVolume sets the master volume. Values outside
// [MinVolume, MaxVolume] are rejected without calling the library.
func (c *VolumeControl) SetVolume(value int) error {
	if err := ValidateVolume(value); err != nil {
		return err
	}
	c.backend.Write(value)
	return nil
}

// Path returns the library file backing c, or "" for FromBackend.
func (c *VolumeControl) Path() string {
	return c.path
}

// ValidateVolume checks that value is a valid volume.
func ValidateVolume(value int) error {
	return model.ValidateVolume(value)
}
