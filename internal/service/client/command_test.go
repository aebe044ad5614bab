package client

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/recorder-launcher/internal/config"
	domain "github.com/oshokin/recorder-launcher/internal/domain/recorder"
)

func writeSettings(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultConfigFilename)

	require.NoError(t, config.Save(path, &config.Config{
		ResourcesDir: dir,
		AppDataDir:   filepath.Join(dir, "app-data"),
	}))

	return path
}

// TestRun_UnknownAction verifies unsupported actions are rejected.
func TestRun_UnknownAction(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{
		ConfigPath: writeSettings(t),
		Action:     "reboot",
		Output:     new(bytes.Buffer),
	})
	require.ErrorIs(t, err, errUnknownAction)
}

// TestRetry_StopsOnPermanentErrors verifies only Unavailable is retried.
func TestRetry_StopsOnPermanentErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry(context.Background(), func() error {
		calls++

		return fmt.Errorf("save: %w", status.Error(codes.InvalidArgument, "bad record"))
	})

	require.Error(t, err)
	require.Equal(t, 1, calls)
}

// TestRetry_RetriesUnavailable verifies an unreachable launcher is retried until it answers.
func TestRetry_RetriesUnavailable(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry(context.Background(), func() error {
		calls++
		if calls < 2 {
			return fmt.Errorf("load: %w", status.Error(codes.Unavailable, "connection refused"))
		}

		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

// TestRetry_HonorsContext verifies cancellation stops retries.
func TestRetry_HonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry(ctx, func() error {
		return status.Error(codes.Unavailable, "connection refused")
	})
	require.ErrorIs(t, err, context.Canceled)
}

// TestWriteJSON verifies records and notifications use the UI field names.
func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, writeJSON(&buf, &domain.Record{VideosFolder: "/v", DatabaseFolder: "/db"}))
	require.JSONEq(t, `{"videosFolder":"/v","databaseFolder":"/db"}`, buf.String())

	buf.Reset()
	require.NoError(t, writeJSON(&buf, domain.Notification{Type: domain.NotificationNavigate, URL: "http://localhost:37132"}))
	require.JSONEq(t, `{"type":"navigate","url":"http://localhost:37132"}`, buf.String())

	buf.Reset()
	require.NoError(t, writeJSON(&buf, (*domain.Record)(nil)))
	require.Equal(t, "null\n", buf.String())
}
