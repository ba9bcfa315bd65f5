// Package nativetest provides in-memory stand-ins for native libraries.
package nativetest

import (
	"fmt"
	"sync"

	"github.com/vmorsell/volctl/internal/native"
)

// Backend is an in-memory native.Backend. The zero value reports a
// volume of 0.
type Backend struct {
	mu     sync.Mutex
	value  int
	writes int
}

func NewBackend(value int) *Backend {
	return &Backend{value: value}
}

func (b *Backend) Read() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

func (b *Backend) Write(value int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.value = value
	b.writes++
}

// Writes returns how many times Write was called.
func (b *Backend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// Loader hands out one Backend per loaded path and records every call.
type Loader struct {
	// Err, when set, is returned from every Load.
	Err error
	// Initial is the volume new backends start at.
	Initial int

	mu       sync.Mutex
	calls    []string
	backends map[string]*Backend
}

func (l *Loader) Load(path string) (native.Backend, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = append(l.calls, path)
	if l.Err != nil {
		return nil, fmt.Errorf("%w: %w", native.ErrNativeLoad, l.Err)
	}
	if l.backends == nil {
		l.backends = make(map[string]*Backend)
	}
	b, ok := l.backends[path]
	if !ok {
		b = NewBackend(l.Initial)
		l.backends[path] = b
	}
	return b, nil
}

// Calls returns the paths passed to Load, in order.
func (l *Loader) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// Backend returns the backend handed out for path, or nil.
func (l *Loader) Backend(path string) *Backend {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backends[path]
}
