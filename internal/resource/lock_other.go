//go:build !unix && !windows

package resource

import "os"

// No advisory locks on this platform; only the in-process path lock
// serializes writers.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
