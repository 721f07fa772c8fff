package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureConsole(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })
	return &buf
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" Warning "))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("whatever"))
}

func TestLevelFiltering(t *testing.T) {
	buf := captureConsole(t)
	SetLevel(WARN)
	t.Cleanup(func() { SetLevel(INFO) })

	InfoCF("router", "hidden", nil)
	WarnCF("router", "shown", nil)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] router: shown")
}

func TestFieldsSortedAndRedacted(t *testing.T) {
	buf := captureConsole(t)

	InfoCF("discord", "Connected", map[string]any{
		"user_id": "42",
		"token":   "super-secret-value",
		"app":     "sage",
	})

	line := buf.String()
	assert.Contains(t, line, "{app=sage, token=[REDACTED], user_id=42}")
	assert.NotContains(t, line, "super-secret-value")
}

func TestFileLoggingWritesJSON(t *testing.T) {
	captureConsole(t)
	path := filepath.Join(t.TempDir(), "sage.log")
	require.NoError(t, EnableFileLogging(path))
	t.Cleanup(DisableFileLogging)

	ErrorCF("poll", "Store failed", map[string]any{"poll": "m1"})
	DisableFileLogging()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "poll", entry.Component)
	assert.Equal(t, "Store failed", entry.Message)
	assert.Equal(t, "m1", entry.Fields["poll"])
}

func TestRedactionCanBeDisabled(t *testing.T) {
	buf := captureConsole(t)
	SetRedactionEnabled(false)
	t.Cleanup(func() { SetRedactionEnabled(true) })

	InfoCF("config", "Loaded", map[string]any{"token": "visible-in-dev"})
	assert.Contains(t, buf.String(), "token=visible-in-dev")
}
