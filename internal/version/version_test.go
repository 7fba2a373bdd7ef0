package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GitCommit)
	assert.NotEmpty(t, info.BuildDate)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.InstanceID)
	assert.NotEmpty(t, info.Hostname)

	again := GetInfo()
	assert.Equal(t, info.InstanceID, again.InstanceID, "instance id is generated once per process")
}

func TestResolve(t *testing.T) {
	stamped := &debug.BuildInfo{
		GoVersion: "go1.25.1",
		Main:      debug.Module{Version: "v0.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-03-01T12:00:00Z"},
		},
	}

	tests := []struct {
		name   string
		ver    string
		commit string
		date   string
		bi     *debug.BuildInfo
		want   Info
	}{
		{
			name:   "ldflags win over build info",
			ver:    "1.2.3",
			commit: "abc1234",
			date:   "2026-02-21T10:00:00Z",
			bi:     stamped,
			want:   Info{Version: "1.2.3", GitCommit: "abc1234", BuildDate: "2026-02-21T10:00:00Z", GoVersion: "go1.25.1"},
		},
		{
			name:   "build info fills unset values",
			ver:    unknown,
			commit: unknown,
			date:   unknown,
			bi:     stamped,
			want:   Info{Version: "v0.4.0", GitCommit: "0123456789ab", BuildDate: "2026-03-01T12:00:00Z", GoVersion: "go1.25.1"},
		},
		{
			name:   "devel build keeps unknown version",
			ver:    unknown,
			commit: unknown,
			date:   unknown,
			bi:     &debug.BuildInfo{GoVersion: "go1.25.1", Main: debug.Module{Version: "(devel)"}},
			want:   Info{Version: unknown, GitCommit: unknown, BuildDate: unknown, GoVersion: "go1.25.1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolve(tt.ver, tt.commit, tt.date, tt.bi))
		})
	}
}

func TestResolve_NoBuildInfo(t *testing.T) {
	info := resolve("1.0.0", unknown, unknown, nil)

	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, unknown, info.GitCommit)
	assert.NotEmpty(t, info.GoVersion)
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "v1.0.0-dirty", GitCommit: "abc1234", BuildDate: "2026-02-21T10:00:00Z"}
	assert.Equal(t, "quakecache version v1.0.0-dirty (commit: abc1234, built: 2026-02-21T10:00:00Z)", info.String())
}

func TestInfoLogAttrs(t *testing.T) {
	attrs := Info{Version: "1.2.3", GitCommit: "abc", InstanceID: "id-1"}.LogAttrs()
	assert.Len(t, attrs, 3)
}

func TestInfoUserAgent(t *testing.T) {
	tests := []struct {
		version  string
		expected string
	}{
		{version: "1.2.3", expected: "quakecache/1.2.3"},
		{version: "unknown", expected: "quakecache"},
		{version: "", expected: "quakecache"},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.expected, Info{Version: tt.version}.UserAgent())
		})
	}
}
