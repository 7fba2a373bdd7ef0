package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"quakecache/internal/models"
	"quakecache/internal/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVersion = version.Info{
	Version:    "1.0.0",
	GitCommit:  "abc1234",
	BuildDate:  "2026-01-01T00:00:00Z",
	InstanceID: "instance-1",
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  slog.Level
		expectErr bool
	}{
		{name: "debug", input: "debug", expected: slog.LevelDebug},
		{name: "info", input: "info", expected: slog.LevelInfo},
		{name: "warn", input: "warn", expected: slog.LevelWarn},
		{name: "error", input: "error", expected: slog.LevelError},
		{name: "uppercase", input: "DEBUG", expected: slog.LevelDebug},
		{name: "warning alias", input: "Warning", expected: slog.LevelWarn},
		{name: "invalid", input: "invalid", expectErr: true},
		{name: "empty", input: "", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestSetup_StdStreams(t *testing.T) {
	for _, output := range []string{"stdout", "stderr"} {
		t.Run(output, func(t *testing.T) {
			cfg := models.LoggingConfig{Level: "info", Format: "json", Output: output}

			logger, closer, err := Setup(cfg, "quakecache", testVersion)
			require.NoError(t, err)
			assert.Nil(t, closer)
			assert.NotNil(t, logger)
		})
	}
}

func TestSetup_FileOutputCarriesServiceFields(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")
	cfg := models.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	}

	logger, closer, err := Setup(cfg, "quakecache", testVersion)
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer closer.Close()

	logger.Info("cache hit", "key", "earthquake:us7000abcd")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &record))
	assert.Equal(t, "cache hit", record["msg"])
	assert.Equal(t, "earthquake:us7000abcd", record["key"])
	assert.Equal(t, "quakecache", record["service"])
	assert.Equal(t, "1.0.0", record["version"])
	assert.Equal(t, "instance-1", record["instance_id"])
}

func TestSetup_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.LoggingConfig
	}{
		{
			name: "file output without path",
			cfg:  models.LoggingConfig{Level: "info", Format: "json", Output: "file"},
		},
		{
			name: "unwritable file path",
			cfg:  models.LoggingConfig{Level: "info", Format: "json", Output: "file", FilePath: "/nonexistent/directory/test.log"},
		},
		{
			name: "invalid level",
			cfg:  models.LoggingConfig{Level: "invalid", Format: "json", Output: "stdout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Setup(tt.cfg, "quakecache", testVersion)
			assert.Error(t, err)
		})
	}
}

func TestNewHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	handler, err := NewHandler(&buf, models.LoggingConfig{Level: "warn", Format: "text"})
	require.NoError(t, err)
	logger := slog.New(handler)

	logger.Info("should not appear")
	logger.Warn("should appear")

	assert.NotContains(t, buf.String(), "should not appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestOpenWriter(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		expectErr bool
	}{
		{name: "stdout", output: "stdout"},
		{name: "stderr", output: "stderr"},
		{name: "empty means stdout", output: ""},
		{name: "unknown output", output: "syslog", expectErr: true},
		{name: "file missing path", output: "file", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer, closer, err := openWriter(tt.output, "")
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, writer)
			assert.Nil(t, closer)
		})
	}
}

func TestNewHandler_DebugAddsSource(t *testing.T) {
	tests := []struct {
		level      string
		wantSource bool
	}{
		{"debug", true},
		{"info", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			handler, err := NewHandler(&buf, models.LoggingConfig{Level: tt.level, Format: "json"})
			require.NoError(t, err)

			slog.New(handler).Error("boom")

			var record map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
			_, ok := record[slog.SourceKey]
			assert.Equal(t, tt.wantSource, ok)
		})
	}
}
