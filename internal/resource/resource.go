// Package resource writes an embedded native library to disk so it can be
// loaded by the dynamic linker.
package resource

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const libraryFileMode = 0o755

var (
	// ErrResourceMissing is returned when the embedded library payload
	// can't be found.
	ErrResourceMissing = errors.New("embedded library resource missing")
	// ErrInvalidName is returned for an empty base name or one containing
	// a path separator.
	ErrInvalidName = errors.New("invalid library name")
)

// Policy decides where a library file is placed.
type Policy int

const (
	// SharedFile places the library at dir/<base>.<ext>, reusing or
	// replacing whatever is already there.
	SharedFile Policy = iota
	// PerInstanceFile writes a new, uniquely named file on every call.
	PerInstanceFile
)

func (p Policy) String() string {
	switch p {
	case SharedFile:
		return "shared"
	case PerInstanceFile:
		return "per-instance"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// pathLocks serializes materializations of the same shared path within
// the process. Across processes only the file lock applies. Entries are
// never removed; there is one per distinct shared path.
var pathLocks sync.Map

func lockPath(path string) func() {
	v, _ := pathLocks.LoadOrStore(path, new(sync.Mutex))
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Materializer copies a library payload out of an fs.FS.
type Materializer struct {
	logger   *zap.Logger
	source   fs.FS
	resource string

	// remove deletes stale shared files. Replaced in tests.
	remove func(string) error
}

func NewMaterializer(logger *zap.Logger, source fs.FS, resource string) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{
		logger:   logger,
		source:   source,
		resource: resource,
		remove:   os.Remove,
	}
}

// Materialize makes sure a complete copy of the payload exists in dir
// and returns its absolute path.
//
// With SharedFile an existing regular file is deleted and rewritten. If
// it can't be deleted it is assumed to be held by a live process and is
// reused as is; its content is not checked.
func (m *Materializer) Materialize(dir string, desc Descriptor, policy Policy) (string, error) {
	return m.MaterializeFunc(dir, desc, policy, nil)
}

// MaterializeFunc is like Materialize but calls use with the resulting
// path before releasing the in-process lock on a shared path, so no other
// caller in this process can replace the file while use runs.
func (m *Materializer) MaterializeFunc(dir string, desc Descriptor, policy Policy, use func(path string) error) (string, error) {
	if desc.BaseName == "" || strings.ContainsAny(desc.BaseName, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, desc.BaseName)
	}
	if err := m.checkResource(); err != nil {
		return "", err
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve directory: %w", err)
	}

	var path string
	switch policy {
	case PerInstanceFile:
		path, err = m.materializeUnique(absDir, desc)
		if err != nil {
			return "", err
		}
	case SharedFile:
		path = filepath.Join(absDir, desc.FileName())
		unlock := lockPath(path)
		defer unlock()
		if err := m.materializeShared(path); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown placement policy %s", policy)
	}

	if use != nil {
		if err := use(path); err != nil {
			return "", err
		}
	}
	return path, nil
}

func (m *Materializer) checkResource() error {
	if m.source == nil {
		return fmt.Errorf("%w: %s", ErrResourceMissing, m.resource)
	}
	info, err := fs.Stat(m.source, m.resource)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrResourceMissing, m.resource)
		}
		return fmt.Errorf("stat resource %s: %w", m.resource, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrResourceMissing, m.resource)
	}
	return nil
}

func (m *Materializer) materializeUnique(dir string, desc Descriptor) (string, error) {
	name := desc.WithBaseName(desc.BaseName + uuid.NewString()).FileName()
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, libraryFileMode)
	if err != nil {
		return "", fmt.Errorf("create library file: %w", err)
	}
	if err := m.write(f); err != nil {
		return "", err
	}
	return path, nil
}

func (m *Materializer) materializeShared(path string) error {
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		if err := m.remove(path); err != nil {
			// Most likely loaded by another process.
			m.logger.Debug("reusing existing library file",
				zap.String("path", path),
				zap.Error(err))
			return nil
		}
		m.logger.Debug("removed stale library file", zap.String("path", path))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, libraryFileMode)
	if err != nil {
		return fmt.Errorf("create library file: %w", err)
	}
	return m.write(f)
}

// write copies the payload into f under an exclusive lock and closes f.
// A failed write removes the file.
func (m *Materializer) write(f *os.File) (err error) {
	path := f.Name()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close library file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if err := lockFile(f); err != nil {
		return fmt.Errorf("lock library file: %w", err)
	}
	defer func() {
		if uerr := unlockFile(f); uerr != nil && err == nil {
			err = fmt.Errorf("unlock library file: %w", uerr)
		}
	}()

	src, err := m.source.Open(m.resource)
	if err != nil {
		return fmt.Errorf("open resource %s: %w", m.resource, err)
	}
	defer src.Close()

	n, err := io.Copy(f, src)
	if err != nil {
		return fmt.Errorf("copy library payload: %w", err)
	}

	m.logger.Debug("wrote library file",
		zap.String("path", path),
		zap.String("size", units.HumanSize(float64(n))))
	return nil
}
