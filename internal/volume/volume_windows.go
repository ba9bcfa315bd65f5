//go:build windows

package volume

import "errors"

var errNoMixer = errors.New("no mixer command on windows, use the native backend")

func getSystemVolume() (int, error) {
	return 0, errNoMixer
}

func setSystemVolume(int) error {
	return errNoMixer
}
