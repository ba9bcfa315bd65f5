// Package native loads the volume control library into the process and
// forwards volume reads and writes to it.
package native

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Symbols the library must export.
const (
	getVolumeSymbol = "volctl_get_volume"
	setVolumeSymbol = "volctl_set_volume"
)

// ErrNativeLoad is returned when the platform loader rejects a library.
var ErrNativeLoad = errors.New("load native library")

// Backend is the narrow call surface of a loaded library.
type Backend interface {
	// Read returns the master volume as reported by the library.
	Read() int
	// Write sets the master volume.
	Write(value int)
}

// Loader turns a library file into a Backend.
type Loader interface {
	Load(path string) (Backend, error)
}

// DynamicLoader loads libraries with the platform's dynamic linker.
// Libraries are never unloaded; loading a path that was already loaded
// returns the existing Backend.
type DynamicLoader struct {
	logger *zap.Logger
	open   func(path string) (Backend, error)

	mu     sync.Mutex
	loaded map[string]Backend
}

func NewDynamicLoader(logger *zap.Logger) *DynamicLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DynamicLoader{
		logger: logger,
		open:   openLibrary,
		loaded: make(map[string]Backend),
	}
}

var (
	defaultLoader     *DynamicLoader
	defaultLoaderOnce sync.Once
)

// Default returns the process-wide DynamicLoader. The dynamic linker's
// namespace is global to the process, so callers should share it.
func Default() *DynamicLoader {
	defaultLoaderOnce.Do(func() {
		defaultLoader = NewDynamicLoader(nil)
	})
	return defaultLoader
}

// Load loads the library at path into the process.
func (l *DynamicLoader) Load(path string) (Backend, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrNativeLoad, path, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.loaded[abs]; ok {
		l.logger.Debug("native library already loaded", zap.String("path", abs))
		return b, nil
	}

	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNativeLoad, err)
	}

	b, err := l.open(abs)
	if err != nil {
		return nil, err
	}
	l.loaded[abs] = b
	l.logger.Info("loaded native library", zap.String("path", abs))
	return b, nil
}
