//go:build darwin

package volume

import (
	"fmt"
	"os/exec"
	"strings"
)

// getSystemVolume returns the current output volume (0-100) on macOS.
func getSystemVolume() (int, error) {
	out, err := exec.Command("osascript", "-e", "output volume of (get volume settings)").Output()
	if err != nil {
		return 0, fmt.Errorf("run osascript: %w", err)
	}
	var vol int
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%d", &vol); err != nil {
		return 0, fmt.Errorf("parse osascript output: %w", err)
	}
	return vol, nil
}

func setSystemVolume(value int) error {
	script := fmt.Sprintf("set volume output volume %d", value)
	if err := exec.Command("osascript", "-e", script).Run(); err != nil {
		return fmt.Errorf("run osascript: %w", err)
	}
	return nil
}
