package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	config "github.com/fiacre/fswatch/internal/config/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	assert.Equal(t, Debug, Parse("debug"))
	assert.Equal(t, Info, Parse(" INFO "))
	assert.Equal(t, Warn, Parse("warning"))
	assert.Equal(t, Error, Parse("error"))
	assert.Equal(t, Info, Parse("verbose"))
	assert.Equal(t, "WARN", Warn.String())
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerServiceWithWriter("scan", config.LogServerConfig{Level: "WARN"}, &buf)

	logger.Debug("hidden %d", 1)
	logger.Info("hidden")
	logger.Warn("visible %s", "warn")
	logger.Error("visible error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN  [scan] visible warn")
	assert.Contains(t, out, "ERROR [scan] visible error")
}

func TestMessageWithoutArgsIsNotFormatted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerServiceWithWriter("", config.LogServerConfig{Level: "INFO"}, &buf)

	logger.Info("/data/100%.pdf")

	assert.Contains(t, buf.String(), "/data/100%.pdf")
}

func TestNamedSharesWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerServiceWithWriter("fswatch", config.LogServerConfig{Level: "INFO", JSON: true}, &buf)

	logger.Named("ledger").Info("recorded %s", "a.pdf")

	var entry logEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "fswatch/ledger", entry.Service)
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "recorded a.pdf", entry.Message)
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fswatch.log")
	logger := NewLoggerService("agent", config.LogServerConfig{
		Level:      "INFO",
		File:       path,
		NoTerminal: true,
		Rotation:   config.LogServerRotationConfig{MaxSize: 1},
	})

	logger.Info("started")
	require.NoError(t, logger.(*LoggerServiceImpl).Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(data)), "[agent] started"))
	assert.NotContains(t, string(data), "\033[")
}
