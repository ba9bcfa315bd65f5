//go:build linux

package volume

import (
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
)

var amixerPercent = regexp.MustCompile(`\[(\d+)%\]`)

// getSystemVolume returns the Master volume (0-100) using amixer.
func getSystemVolume() (int, error) {
	out, err := exec.Command("amixer", "get", "Master").Output()
	if err != nil {
		return 0, fmt.Errorf("run amixer: %w", err)
	}
	return parseAmixer(out)
}

func setSystemVolume(value int) error {
	if err := exec.Command("amixer", "-q", "set", "Master", fmt.Sprintf("%d%%", value)).Run(); err != nil {
		return fmt.Errorf("run amixer: %w", err)
	}
	return nil
}

func parseAmixer(out []byte) (int, error) {
	matches := amixerPercent.FindSubmatch(out)
	if len(matches) < 2 {
		return 0, fmt.Errorf("could not parse amixer output")
	}
	vol, err := strconv.Atoi(string(matches[1]))
	if err != nil {
		return 0, fmt.Errorf("parse amixer volume: %w", err)
	}
	return vol, nil
}
