package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smart-dag/txevent/internal/config"
)

func TestConsoleLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LogConfig{Level: "warn", Format: "console"}, &buf)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown", zap.String("conn_id", "c1"))
	require.NoError(t, log.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "c1")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LogConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Info("hello", zap.Int("n", 3))
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, float64(3), entry["n"])
	assert.Equal(t, "info", entry["level"])
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "txevent.log")
	log, err := New(config.LogConfig{Level: "debug", Format: "console", File: path, MaxSizeMB: 1}, nil)
	require.NoError(t, err)

	log.Debug("to file", zap.String("address", "ws://hub"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "to file", entry["msg"])
	assert.Equal(t, "ws://hub", entry["address"])
}

func TestNoOutputs(t *testing.T) {
	log, err := New(config.LogConfig{Level: "info"}, nil)
	require.NoError(t, err)
	log.Info("dropped")
}

func TestInvalidSettings(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, os.Stderr)
	assert.Error(t, err)

	_, err = New(config.LogConfig{Level: "info", Format: "xml"}, os.Stderr)
	assert.Error(t, err)
}
