package resource

import (
	"runtime"
	"strings"
)

// Descriptor names a native library file: the base name without
// extension and the platform's library extension.
type Descriptor struct {
	BaseName  string
	Extension string
}

// FileName returns the base name joined with the extension.
func (d Descriptor) FileName() string {
	if d.Extension == "" {
		return d.BaseName
	}
	return d.BaseName + "." + d.Extension
}

// WithBaseName returns a copy of d with a different base name.
func (d Descriptor) WithBaseName(name string) Descriptor {
	d.BaseName = name
	return d
}

// PlatformDescriptor maps a library name to the host platform's
// naming convention, e.g. "volctl" becomes libvolctl.so on Linux,
// libvolctl.dylib on macOS and volctl.dll on Windows.
func PlatformDescriptor(name string) Descriptor {
	return platformDescriptor(runtime.GOOS, name)
}

func platformDescriptor(goos, name string) Descriptor {
	switch goos {
	case "windows":
		return Descriptor{BaseName: name, Extension: "dll"}
	case "darwin", "ios":
		return Descriptor{BaseName: "lib" + name, Extension: "dylib"}
	default:
		return Descriptor{BaseName: "lib" + name, Extension: "so"}
	}
}

// ParseFileName splits a file name at its last dot. A name without a
// dot has an empty extension.
func ParseFileName(fileName string) Descriptor {
	i := strings.LastIndexByte(fileName, '.')
	if i < 0 {
		return Descriptor{BaseName: fileName}
	}
	return Descriptor{BaseName: fileName[:i], Extension: fileName[i+1:]}
}
