//go:build !windows && !(cgo && unix)

package native

import "fmt"

func openLibrary(path string) (Backend, error) {
	return nil, fmt.Errorf("%w: %s: built without cgo", ErrNativeLoad, path)
}
