//go:build windows

package resource

import (
	"os"

	"golang.org/x/sys/windows"
)

const allBytes = ^uint32(0)

// lockFile takes an exclusive lock over the whole of f, blocking until
// it is granted.
func lockFile(f *os.File) error {
	ol := new(windows.Overlapped)
	return windows.LockFileEx(windows.Handle(f.Fd()), windows.LOCKFILE_EXCLUSIVE_LOCK, 0, allBytes, allBytes, ol)
}

func unlockFile(f *os.File) error {
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, allBytes, allBytes, ol)
}
