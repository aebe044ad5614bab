package logger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" INFO ":  zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"Warning": zapcore.WarnLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	for _, s := range []string{"unknown", "fatal", ""} {
		_, ok := ParseLogLevel(s)
		require.False(t, ok, s)
	}
}

// TestContextHelpers checks that loggers travel through contexts with names and fields.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())
	ctx = WithName(ctx, "supervisor")
	ctx = WithKV(ctx, "session", "abc")

	InfoKV(ctx, "Backend ready", "pid", 42)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "supervisor", entries[0].LoggerName)
	require.Equal(t, "Backend ready", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, "abc", fields["session"])
	require.EqualValues(t, 42, fields["pid"])
}

// TestAttachFile checks that JSON lines reach the file and the terminal logger comes back on close.
func TestAttachFile(t *testing.T) {
	previous := Logger()
	path := filepath.Join(t.TempDir(), "logs", "launcher.log")

	closeLog, err := AttachFile(path)
	require.NoError(t, err)
	require.NotSame(t, previous, Logger())

	InfoKV(WithName(context.Background(), "supervisor"), "Backend ready", "exit_code", 0)
	Debug(context.Background(), "below the default level")

	require.NoError(t, closeLog())
	require.Same(t, previous, Logger())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "INFO", entry["level"])
	require.Equal(t, "supervisor", entry["logger"])
	require.Equal(t, "Backend ready", entry["message"])
	require.EqualValues(t, 0, entry["exit_code"])
}
