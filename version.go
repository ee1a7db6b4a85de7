package credx

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const Version = "0.3.0"

// Release builds set these with
// -ldflags "-X github.com/hengadev/credx.GitCommit=... -X github.com/hengadev/credx.BuildDate=...".
var (
	GitCommit string
	BuildDate string
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
}

// ReadBuildInfo returns the module version with the commit and build date
// from ldflags, falling back to the VCS stamp the go tool embeds.
func ReadBuildInfo() BuildInfo {
	info := BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

func (b BuildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "credx v%s", b.Version)
	if b.GitCommit == "" {
		return sb.String()
	}

	commit := b.GitCommit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if b.Modified {
		commit += "-dirty"
	}
	fmt.Fprintf(&sb, " (%s", commit)
	if b.BuildDate != "" {
		fmt.Fprintf(&sb, ", %s", b.BuildDate)
	}
	sb.WriteString(")")
	return sb.String()
}
