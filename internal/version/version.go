// Package version exposes the build version of resim-launch.
package version

import (
	_ "embed"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// UserAgent is sent on every outbound request.
func UserAgent() string {
	return "resim-launch/" + Get() + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
