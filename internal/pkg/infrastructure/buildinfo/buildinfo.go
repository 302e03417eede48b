// Package buildinfo reports the running binary's version, for stamping
// into logs and traces.
package buildinfo

import "runtime/debug"

// SourceVersion returns the VCS revision embedded by the Go toolchain at
// build time, or "develop" if none is available (e.g. `go run`).
func SourceVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "develop"
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			return setting.Value
		}
	}

	return "develop"
}
