package version

import (
	"fmt"
	"runtime"
	"strconv"
)

// Version values are set at build time using -ldflags.
var Version = "dev"
var Major = "0"
var Minor = "0"
var Patch = "0"
var Built = ""
var GitCommit = ""

type Info struct {
	Version   string `json:"version"`
	Major     int    `json:"major"`
	Minor     int    `json:"minor"`
	Patch     int    `json:"patch"`
	Built     string `json:"built,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
	GoVersion string `json:"go_version"`
}

func GetInfo() Info {
	return Info{
		Version:   Version,
		Major:     parseInt(Major),
		Minor:     parseInt(Minor),
		Patch:     parseInt(Patch),
		Built:     Built,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
	}
}

// String renders a one-line version banner for the CLI.
func (info Info) String() string {
	if info.Version == "" || info.Version == "dev" {
		return "marknote dev"
	}
	if info.GitCommit == "" {
		return fmt.Sprintf("marknote version %s", info.Version)
	}
	return fmt.Sprintf("marknote version %s (%s)", info.Version, info.GitCommit)
}

func parseInt(value string) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}
