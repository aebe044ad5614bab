package integration

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/recorder-launcher/internal/archivetest"
	"github.com/oshokin/recorder-launcher/internal/config"
	"github.com/oshokin/recorder-launcher/internal/layout"
	"github.com/oshokin/recorder-launcher/internal/service/launcher"
	"github.com/oshokin/recorder-launcher/internal/service/provisioner"
)

const (
	helperEnv       = "GO_WANT_HELPER_PROCESS"
	helperModeEnv   = "HELPER_MODE"
	runtimeArchive  = "zulu8.38.0.13-ca-jre8.0.212-linux_x64.tar.gz"
	runtimeDir      = "zulu8.38.0.13-ca-jre8.0.212-linux_x64/"
	mediaArchive    = "ffmpeg-4.1-linux-64.zip"
	readinessOutput = "Started ClassrecorderApplication in 2.7 seconds"
	testTimeout     = 20 * time.Second
)

// TestHelperProcess is not a real test: it stands in for the backend when re-executed.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}

	// The backend reads its properties from the working directory.
	if _, err := os.Stat("application.properties"); err != nil {
		fmt.Fprintln(os.Stderr, "application.properties is missing:", err)
		os.Exit(2)
	}

	switch os.Getenv(helperModeEnv) {
	case "crash":
		fmt.Fprintln(os.Stderr, "Web server failed to start. Port 37132 was already in use.")
		os.Exit(1)
	default:
		fmt.Println("Bootstrapping Spring")
		fmt.Println(readinessOutput)
		time.Sleep(time.Hour)
	}

	os.Exit(0)
}

func helperCommand(mode string) func(string, ...string) *exec.Cmd {
	return func(_ string, _ ...string) *exec.Cmd {
		cmd := exec.Command(os.Args[0], "-test.run=^TestHelperProcess$", "--") //nolint:gosec // Re-executes the test binary.
		cmd.Env = append(os.Environ(), helperEnv+"=1", helperModeEnv+"="+mode)

		return cmd
	}
}

func requireLinux(t *testing.T) {
	t.Helper()

	if runtime.GOOS != "linux" {
		t.Skip("fixtures mirror the linux archives")
	}
}

// mirror serves the dependency archives by name and counts requests.
type mirror struct {
	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]int
}

func (m *mirror) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := path.Base(r.URL.Path)
	m.hits[name]++

	body, ok := m.files[name]
	if !ok {
		http.NotFound(w, r)

		return
	}

	_, _ = w.Write(body)
}

func (m *mirror) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.hits[name]
}

func newMirror(t *testing.T) (*mirror, string) {
	t.Helper()

	m := &mirror{
		files: map[string][]byte{
			runtimeArchive: archivetest.TarGz(t,
				archivetest.Entry{Name: runtimeDir},
				archivetest.Entry{Name: runtimeDir + "bin/"},
				archivetest.Entry{Name: runtimeDir + "bin/java", Body: "#!/bin/sh\n", Mode: 0o755},
			),
			mediaArchive: archivetest.Zip(t,
				archivetest.Entry{Name: "ffmpeg", Body: "ffmpeg", Mode: 0o755},
				archivetest.Entry{Name: "__MACOSX/"},
				archivetest.Entry{Name: "__MACOSX/._ffmpeg", Body: "fork"},
			),
			layout.BackendArtifactName: []byte("PK-jar"),
		},
		hits: make(map[string]int),
	}

	ts := httptest.NewServer(m)
	t.Cleanup(ts.Close)

	return m, ts.URL
}

// workspace is a resources directory with its settings file.
type workspace struct {
	root     string
	settings string
	appData  layout.AppData
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()

	root := t.TempDir()
	ws := workspace{
		root:     root,
		settings: filepath.Join(root, config.DefaultConfigFilename),
		appData:  layout.AppData{Dir: filepath.Join(root, "app-data")},
	}

	require.NoError(t, config.Save(ws.settings, &config.Config{
		ResourcesDir: root,
		AppDataDir:   ws.appData.Dir,
		StopTimeout:  5 * time.Second,
	}))

	return ws
}

// provision runs the provisioning pipeline against the mirror.
func (ws workspace) provision(t *testing.T, mirrorURL string) {
	t.Helper()

	require.NoError(t, provisioner.Run(context.Background(), &provisioner.Options{
		ConfigPath: ws.settings,
		MirrorURL:  mirrorURL,
		GOOS:       "linux",
		GOARCH:     "amd64",
	}))
}

// startLauncher runs the launcher with the helper backend and stops it on cleanup.
func (ws workspace) startLauncher(t *testing.T, mode string) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	listening := make(chan net.Addr, 1)
	result := make(chan error, 1)

	go func() {
		result <- launcher.Run(ctx, &launcher.Options{
			ConfigPath:    ws.settings,
			ListenAddress: "127.0.0.1:0",
			Command:       helperCommand(mode),
			OnListening: func(bridgeAddr, _ net.Addr) {
				listening <- bridgeAddr
			},
		})
	}()

	var addr net.Addr

	select {
	case addr = <-listening:
	case err := <-result:
		t.Fatalf("launcher exited early: %v", err)
	case <-time.After(testTimeout):
		t.Fatal("launcher did not start listening")
	}

	t.Cleanup(func() {
		cancel()

		select {
		case err := <-result:
			require.NoError(t, err)
		case <-time.After(testTimeout):
			t.Error("launcher did not stop")
		}
	})

	return addr.String()
}
