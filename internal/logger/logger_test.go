package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New("warn", "json", &buf)

	l.Info("hidden")
	assert.Equal(t, 0, buf.Len())

	l.Warn("file skipped", "file", "a.csv")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "file skipped", entry["msg"])
	assert.Equal(t, "a.csv", entry["file"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	New("debug", "text", &buf).Debug("hello", "k", 1)
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=1")
}

func TestOrDefault(t *testing.T) {
	assert.Same(t, slog.Default(), OrDefault(nil))
	l := New("info", "text", &bytes.Buffer{})
	assert.Same(t, l, OrDefault(l))
}
