package volctl

import (
	"os"

	"github.com/vmorsell/volctl/internal/resource"
)

const libName = "volctl"

var platform = resource.PlatformDescriptor(libName)

// TempDir returns the directory used when WithDirectory isn't given.
func TempDir() string {
	return os.TempDir()
}

// DefaultLibFileName returns the library file name for this platform,
// including extension.
func DefaultLibFileName() string {
	return platform.FileName()
}

// DefaultLibName returns the library file name for this platform,
// without extension.
func DefaultLibName() string {
	return resource.ParseFileName(DefaultLibFileName()).BaseName
}

// LibExtension returns the library file extension for this platform.
func LibExtension() string {
	return platform.Extension
}
