package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scout.log")

	logger, cleanup, err := Setup(Config{Level: "debug", FilePath: path, WriteToStderr: false})
	require.NoError(t, err)

	logger.Info("hello", slog.String("k", "v"))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"k":"v"`)
}

func TestSetup_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scout.log")

	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path, WriteToStderr: false})
	require.NoError(t, err)

	logger.Debug("invisible")
	logger.Warn("visible")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "invisible")
	assert.Contains(t, string(data), "visible")
}
