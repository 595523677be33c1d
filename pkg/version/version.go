// Package version provides build and version information for vulnscout.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version, set via ldflags at build time:
// -X github.com/vulnscout/vulnscout/pkg/version.Version=$(VERSION)
var Version = "dev"

var (
	// Commit is the git commit hash, set via ldflags.
	Commit = "unknown"

	// Date is the build date in RFC3339 format, set via ldflags.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary.
	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetInfo returns the structured build information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Short returns just the version number.
func Short() string {
	return Version
}

// String returns a formatted version string with all build info.
func String() string {
	return fmt.Sprintf("vulnscout %s (commit %s, built %s, %s %s/%s)",
		Version, Commit, Date, GoVersion, runtime.GOOS, runtime.GOARCH)
}
