// Package version exposes the build metadata stamped into the vab binary.
package version

import (
	"fmt"
	"runtime"
)

// Overridden at build time through
// -ldflags "-X github.com/vabrowser/vab/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is the machine-readable shape of the build metadata.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// Get collects the stamped values plus the runtime's platform triple.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// String renders the one-line form used by "vab version".
func String() string {
	return fmt.Sprintf("vab %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, runtime.Version())
}

// Short returns only the bare version number.
func Short() string { return Version }
