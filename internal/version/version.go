package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the release of the alarm binaries, set with -ldflags "-X".
	Version = "0.1.0-dev"
	// Commit is the git revision; local builds fall back to the VCS stamp.
	Commit = ""
	// BuildTime is the UTC build timestamp.
	BuildTime = ""
)

// Short returns the release only.
func Short() string {
	return Version
}

// Full returns the release with revision, build time and Go runtime.
func Full() string {
	commit, built := Commit, BuildTime

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && commit == "":
				commit = s.Value
			case s.Key == "vcs.time" && built == "":
				built = s.Value
			}
		}
	}

	return fmt.Sprintf("%s (commit %s, built %s, %s %s/%s)",
		Version, orUnknown(commit), orUnknown(built), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}

	return s
}
