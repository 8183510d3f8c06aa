// Package version holds build metadata injected at link time.
package version

import "runtime/debug"

// Set via -ldflags "-X github.com/Sumatoshi-tech/redblack/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// InitBinaryVersion fills in unset metadata from the embedded build info,
// which is present for `go install`-ed binaries.
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
			if Commit == "none" {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == "unknown" {
				Date = setting.Value
			}
		}
	}
}

// String formats the metadata for `version` output.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
