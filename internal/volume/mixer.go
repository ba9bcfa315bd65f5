package volume

import "go.uber.org/zap"

// Mixer is a native.Backend that shells out to the platform's mixer
// command (amixer on Linux, osascript on macOS). It is meant for
// machines without a bundled native library.
//
// Mixer failures are logged. A failed read reports -1.
type Mixer struct {
	logger *zap.Logger
}

func NewMixer(logger *zap.Logger) *Mixer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mixer{logger: logger}
}

func (m *Mixer) Read() int {
	v, err := getSystemVolume()
	if err != nil {
		m.logger.Error("failed to read mixer volume", zap.Error(err))
		return -1
	}
	return v
}

func (m *Mixer) Write(value int) {
	if err := setSystemVolume(value); err != nil {
		m.logger.Error("failed to set mixer volume", zap.Int("volume", value), zap.Error(err))
	}
}
