package cmd

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/voxstream/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestSetupLogging_FileOutput(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(prev)
		logSink = nil
	})

	path := filepath.Join(t.TempDir(), "voxstream.log")
	setupLogging(config.LoggingConfig{Level: "warn", Format: "json", Output: path, MaxSizeMB: 1}, 0)
	require.NotNil(t, logSink)

	slog.Info("hidden")
	slog.Warn("shown", "bytes", 640)
	require.NoError(t, logSink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"shown"`)
	assert.Contains(t, string(data), `"bytes":640`)
	assert.NotContains(t, string(data), "hidden")
}

func TestSetupLogging_VerboseOverrides(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	setupLogging(config.LoggingConfig{Level: "error"}, 1)
	assert.Equal(t, slog.LevelDebug, logLevel.Level())
}
