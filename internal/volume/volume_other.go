//go:build !linux && !darwin && !windows

package volume

import (
	"fmt"
	"runtime"
)

func getSystemVolume() (int, error) {
	return 0, fmt.Errorf("no mixer command on %s", runtime.GOOS)
}

func setSystemVolume(int) error {
	return fmt.Errorf("no mixer command on %s", runtime.GOOS)
}
