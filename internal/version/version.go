// Package version identifies the build. The same string is reported as the
// firmware version in /data.json and in the mDNS TXT records.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/rover/internal/version.Version=v0.4.0 \
//	                   -X github.com/muurk/rover/internal/version.Commit=abc123"
//
// Unset values come from the VCS stamp of the build, then fall back to a
// dated dev version.
var (
	Version = ""
	Commit  = ""
)

func init() {
	if Version == "" || Commit == "" {
		v, c := fromBuildInfo()
		if Version == "" {
			Version = v
		}
		if Commit == "" {
			Commit = c
		}
	}
	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromBuildInfo derives a version and short commit from the build info.
// Either may be empty.
func fromBuildInfo() (version, commit string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		version = v
	}

	vcs := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		vcs[s.Key] = s.Value
	}

	if rev := vcs["vcs.revision"]; rev != "" {
		commit = rev[:min(len(rev), 7)]
		if vcs["vcs.modified"] == "true" {
			commit += "-dirty"
		}
	}
	if version == "" {
		if t, err := time.Parse(time.RFC3339, vcs["vcs.time"]); err == nil {
			version = "dev-" + t.Format("20060102")
		}
	}
	return version, commit
}

// Full returns the version with its commit.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent is sent by rover-cfg on every request to a rover.
func UserAgent() string {
	return "rover-cfg/" + Version
}
