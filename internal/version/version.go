// Package version carries build metadata injected through -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const name = "spearcam"

// Set via -ldflags "-X github.com/smazurov/spearcam/internal/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Name      string `json:"name" example:"spearcam"`
	Version   string `json:"version" example:"1.2.0"`
	GitCommit string `json:"git_commit" example:"3f2c1ab"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform" example:"linux/arm"`
}

// Get returns version and build information. A binary built without
// ldflags falls back to the VCS revision recorded by the toolchain.
func Get() Info {
	info := Info{
		Name:      name,
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if info.GitCommit == "unknown" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					if len(s.Value) > 7 {
						s.Value = s.Value[:7]
					}
					info.GitCommit = s.Value
				case "vcs.time":
					if info.BuildDate == "unknown" {
						info.BuildDate = s.Value
					}
				}
			}
		}
	}
	return info
}

// String returns the application version string.
func String() string {
	return Version
}

// Full returns a one-line description suitable for --version output.
func Full() string {
	i := Get()
	return fmt.Sprintf("%s %s (%s, built %s, %s %s)", i.Name, i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.Platform)
}
