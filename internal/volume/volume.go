// Package volume watches the master volume for changes and provides a
// fallback backend that drives the system mixer command.
package volume

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is how often Listener polls when no interval is given.
const DefaultInterval = 500 * time.Millisecond

// Getter reports the current master volume. *volctl.VolumeControl
// implements it.
type Getter interface {
	GetVolume() int
}

// Listener watches for system volume changes.
type Listener struct {
	logger   *zap.Logger
	getter   Getter
	interval time.Duration

	mu      sync.Mutex
	lastVol int

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewListener creates a Listener polling getter every interval.
func NewListener(logger *zap.Logger, getter Getter, interval time.Duration) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Listener{
		logger:   logger,
		getter:   getter,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// GetCurrentVolume returns the current system output volume.
func (l *Listener) GetCurrentVolume() int {
	return l.getter.GetVolume()
}

// Listen returns a channel that emits the volume whenever it changes.
// The channel is closed when ctx is done or the listener is stopped.
func (l *Listener) Listen(ctx context.Context) <-chan int {
	ch := make(chan int)

	l.mu.Lock()
	l.lastVol = l.GetCurrentVolume()
	l.mu.Unlock()

	go func() {
		defer close(ch)

		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stopCh:
				return
			case <-ticker.C:
			}

			v := l.GetCurrentVolume()
			l.mu.Lock()
			changed := v != l.lastVol
			l.lastVol = v
			l.mu.Unlock()
			if !changed {
				continue
			}

			l.logger.Debug("volume changed", zap.Int("volume", v))
			select {
			case ch <- v:
			case <-ctx.Done():
				return
			case <-l.stopCh:
				return
			}
		}
	}()
	return ch
}

// LastVolume returns the most recently observed volume.
func (l *Listener) LastVolume() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastVol
}

// Stop stops every Listen loop of l. It is safe to call more than once.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}
