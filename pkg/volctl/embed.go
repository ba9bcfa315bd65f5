package volctl

import (
	"embed"
	"path"
)

// payload holds the prebuilt native libraries. Build them into native/
// before building the Go binary; see native/README.md.
//
//go:embed native
var payload embed.FS

func payloadResource() string {
	return path.Join("native", DefaultLibFileName())
}
