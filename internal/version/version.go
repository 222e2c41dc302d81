// Package version holds the build-time version string printed by --version
// and embedded in the client/server identification banner.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is overridden at release build time via -ldflags, mirroring how
// the teacher codebase stamps its own builds.
var Version = "dev"

// Read returns the one-line banner printed by --version and prefixed to the
// --help/--daemon --help text. When Version is still the "dev" default (no
// -ldflags override at build time), it falls back to the VCS revision
// recorded in the build info, so a plain "go install" still prints something
// identifying.
func Read() string {
	v := Version
	if v == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					v = "dev+" + s.Value
					break
				}
			}
		}
	}
	return fmt.Sprintf("rsyncsend version %s", v)
}
