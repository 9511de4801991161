// Package version exposes the build identity of the workrecap binary.
package version

import (
	"runtime/debug"
)

// Version, Commit and Date identify the build. Release builds override
// them via -ldflags; development builds fall back to the module build
// info embedded by the Go toolchain.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// InitBinaryVersion fills unset build identity fields from the binary's
// embedded build info. Values injected via ldflags win.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == "unknown" {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == "unknown" {
				Date = setting.Value
			}
		}
	}
}
