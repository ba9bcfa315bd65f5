package model

import (
	"errors"
	"fmt"
)

const (
	// MinVolume is the lowest valid volume.
	MinVolume = 0
	// MaxVolume is the highest valid volume.
	MaxVolume = 100
)

// ErrInvalidVolume is returned for a volume outside [MinVolume, MaxVolume].
var ErrInvalidVolume = errors.New("volume must be between 0 and 100")

// ValidateVolume checks that value is a valid volume.
func ValidateVolume(value int) error {
	if value < MinVolume || value > MaxVolume {
		return fmt.Errorf("%w, was %d", ErrInvalidVolume, value)
	}
	return nil
}
