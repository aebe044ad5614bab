package integration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/recorder-launcher/internal/layout"
	"github.com/oshokin/recorder-launcher/internal/service/provisioner"
)

// TestProvisioning_ProducesRuntimeLayout provisions from an HTTP mirror and checks the tree the launcher consumes.
func TestProvisioning_ProducesRuntimeLayout(t *testing.T) {
	t.Parallel()

	m, mirrorURL := newMirror(t)
	ws := newWorkspace(t)
	ws.provision(t, mirrorURL)

	paths := layout.New(ws.root, "linux")

	entries, err := os.ReadDir(paths.DependenciesDir())
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	require.ElementsMatch(t, []string{layout.RuntimeAlias, "ffmpeg"}, names)
	require.FileExists(t, paths.RuntimeBinary())
	require.FileExists(t, paths.BackendArtifact())
	require.FileExists(t, paths.PropertiesTemplate())
	require.NoFileExists(t, filepath.Join(ws.root, provisioner.MarkerFilename))

	// A second run starts from a clean reset and downloads everything again.
	ws.provision(t, mirrorURL)
	require.Equal(t, 2, m.count(runtimeArchive))
	require.Equal(t, 2, m.count(mediaArchive))
}
