// Package version carries the build information stamped by the build
// flags.
package version

import (
	"fmt"
	"runtime"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildTime    = "unknown"
)

// Info is the resolved build information.
type Info struct {
	Version   string
	Commit    string
	BuildTime string
	GoVersion string
	Platform  string
}

// Get returns the current build information.
func Get() Info {
	return Info{
		Version:   buildVersion,
		Commit:    buildCommit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// FormatInfo renders the build information for the --version flag.
func FormatInfo() string {
	info := Get()
	result := fmt.Sprintf("netspot v%s\n", info.Version)
	result += fmt.Sprintf("Commit:    %s\n", info.Commit)
	result += fmt.Sprintf("Build:     %s\n", info.BuildTime)
	result += fmt.Sprintf("Go:        %s\n", info.GoVersion)
	result += fmt.Sprintf("Platform:  %s\n", info.Platform)
	return result
}
