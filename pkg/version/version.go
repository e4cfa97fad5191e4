// Package version reports how the docchat binary was built.
//
// Release builds inject Version, Commit and Date with ldflags. Binaries
// built with `go install` or from a checkout fall back to the module and
// VCS data the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const unknown = "unknown"

// Set via ldflags: -X github.com/Aman-CERP/docchat/pkg/version.Version=$(VERSION)
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown

	// Dirty is true when the binary was built from a modified worktree.
	Dirty bool

	GoVersion = runtime.Version()
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		applyBuildInfo(info)
	}
}

// applyBuildInfo fills the fields ldflags left at their defaults.
func applyBuildInfo(info *debug.BuildInfo) {
	if Version == "dev" {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			Version = strings.TrimPrefix(v, "v")
		}
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = s.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = s.Value
			}
		case "vcs.modified":
			Dirty = s.Value == "true"
		}
	}
}

// BuildInfo is the `docchat version --json` payload.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Dirty     bool   `json:"dirty,omitempty"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// shortCommit abbreviates a full revision hash for display.
func shortCommit() string {
	c := Commit
	if len(c) > 12 {
		c = c[:12]
	}
	if Dirty {
		c += "-dirty"
	}
	return c
}

func String() string {
	return fmt.Sprintf("docchat %s (commit: %s, built: %s, go: %s)",
		Version, shortCommit(), Date, GoVersion)
}

func Short() string {
	return Version
}

// UserAgent is the User-Agent sent with search requests.
func UserAgent() string {
	return "docchat/" + Version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}

func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		Dirty:     Dirty,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
