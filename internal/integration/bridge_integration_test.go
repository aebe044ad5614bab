package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/recorder-launcher/internal/domain/recorder"
	"github.com/oshokin/recorder-launcher/internal/service/client"
	"github.com/oshokin/recorder-launcher/internal/service/common"
)

// TestBridge_SaveRunAndNavigate provisions, launches and drives the bridge until the navigate notification.
func TestBridge_SaveRunAndNavigate(t *testing.T) {
	t.Parallel()
	requireLinux(t)

	_, mirrorURL := newMirror(t)
	ws := newWorkspace(t)
	ws.provision(t, mirrorURL)

	addr := ws.startLauncher(t, "ready")

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	c, err := common.Dial(ctx, addr)
	require.NoError(t, err)

	defer func() {
		_ = c.Close()
	}()

	record, err := c.LoadPreviousData(ctx)
	require.NoError(t, err)
	require.Nil(t, record)

	stream, err := c.Subscribe(ctx)
	require.NoError(t, err)

	defer stream.Close()

	want := &domain.Record{
		VideosFolder:   filepath.Join(ws.root, "videos"),
		DatabaseFolder: filepath.Join(ws.root, "db"),
	}

	ack, err := c.SaveDataAndRunServer(ctx, want)
	require.NoError(t, err)
	require.True(t, ack)

	n, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, domain.NotificationNavigate, n.Type)
	require.Equal(t, "http://localhost:37132", n.URL)

	record, err = c.LoadPreviousData(ctx)
	require.NoError(t, err)
	require.Equal(t, want, record)

	rendered, err := os.ReadFile(ws.appData.PropertiesFile())
	require.NoError(t, err)
	require.Contains(t, string(rendered), "videos.folder="+want.VideosFolder)
	require.NotContains(t, string(rendered), "${")
	require.FileExists(t, ws.appData.PIDFile())
}

// TestBridge_ClientRunWaitsForFailure verifies the CLI reports a backend that crashes during startup.
func TestBridge_ClientRunWaitsForFailure(t *testing.T) {
	t.Parallel()
	requireLinux(t)

	_, mirrorURL := newMirror(t)
	ws := newWorkspace(t)
	ws.provision(t, mirrorURL)

	addr := ws.startLauncher(t, "crash")

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	var out bytes.Buffer

	err := client.Run(ctx, &client.Options{
		ConfigPath:    ws.settings,
		BridgeAddress: addr,
		Action:        client.ActionRun,
		Record:        &domain.Record{VideosFolder: "/videos", DatabaseFolder: "/db"},
		Wait:          true,
		Output:        &out,
	})
	require.Error(t, err)

	var n domain.Notification
	require.NoError(t, json.Unmarshal(out.Bytes(), &n))
	require.Equal(t, domain.NotificationFailed, n.Type)
	require.True(t, strings.Contains(n.Error, "Port 37132 was already in use"), n.Error)

	out.Reset()

	require.NoError(t, client.Run(ctx, &client.Options{
		ConfigPath:    ws.settings,
		BridgeAddress: addr,
		Action:        client.ActionLoad,
		Output:        &out,
	}))
	require.JSONEq(t, `{"videosFolder":"/videos","databaseFolder":"/db"}`, out.String())
}
