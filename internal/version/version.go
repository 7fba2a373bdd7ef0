// Package version reports build metadata for the quakecache binary. Values are
// stamped with -ldflags at release time; plain `go build` binaries fall back
// to the VCS stamp embedded by the toolchain.
package version

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

const unknown = "unknown"

// Set via: -ldflags "-X quakecache/internal/version.Version=v1.0.0 ..."
var (
	Version   = unknown
	BuildDate = unknown
	GitCommit = unknown
)

// Info describes the running binary and process.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	GoVersion  string `json:"go_version"`
	InstanceID string `json:"instance_id"`
	Hostname   string `json:"hostname"`
}

var (
	once   sync.Once
	cached Info
)

// GetInfo returns the process-wide Info. The instance id is generated once.
func GetInfo() Info {
	once.Do(func() {
		bi, _ := debug.ReadBuildInfo()
		cached = resolve(Version, GitCommit, BuildDate, bi)
		cached.InstanceID = uuid.NewString()
		cached.Hostname = hostname()
	})
	return cached
}

// resolve fills ldflags values that were left unset from the module build info.
func resolve(ver, commit, date string, bi *debug.BuildInfo) Info {
	info := Info{Version: ver, GitCommit: commit, BuildDate: date, GoVersion: runtime.Version()}
	if bi == nil {
		return info
	}

	if info.Version == unknown && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == unknown && s.Value != "" {
				info.GitCommit = shortCommit(s.Value)
			}
		case "vcs.time":
			if info.BuildDate == unknown && s.Value != "" {
				info.BuildDate = s.Value
			}
		}
	}
	if bi.GoVersion != "" {
		info.GoVersion = bi.GoVersion
	}
	return info
}

func shortCommit(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return unknown
	}
	return h
}

func (i Info) String() string {
	return fmt.Sprintf("quakecache version %s (commit: %s, built: %s)", i.Version, i.GitCommit, i.BuildDate)
}

// LogAttrs are attached to every log record.
func (i Info) LogAttrs() []any {
	return []any{
		slog.String("version", i.Version),
		slog.String("git_commit", i.GitCommit),
		slog.String("instance_id", i.InstanceID),
	}
}

// UserAgent returns the product token sent upstream, e.g. "quakecache/1.2.3".
func (i Info) UserAgent() string {
	if i.Version == "" || i.Version == unknown {
		return "quakecache"
	}
	return "quakecache/" + i.Version
}
