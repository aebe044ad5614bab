package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/recorder-launcher/internal/config"
	"github.com/oshokin/recorder-launcher/internal/logger"
)

// linuxCommLength is how many bytes of an executable name /proc keeps.
const linuxCommLength = 15

// writePIDFile records the backend process id.
func writePIDFile(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), config.DefaultDirPermissions); err != nil {
		return err
	}

	return os.WriteFile(path, []byte(strconv.Itoa(pid)), config.DefaultFilePermissions)
}

// reapStale kills a backend left running by a previous launcher session.
// The recorded process is killed only while it still runs the runtime executable.
func reapStale(ctx context.Context, pidPath, runtimeBinary string) error {
	contents, err := os.ReadFile(filepath.Clean(pidPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return err
	}

	defer func() {
		_ = os.Remove(pidPath)
	}()

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 || pid == os.Getpid() {
		return nil //nolint:nilerr // A garbled PID file is simply discarded.
	}

	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		return err
	}

	if !sameExecutable(process.Executable(), filepath.Base(runtimeBinary)) {
		logger.DebugKV(ctx, "Recorded PID belongs to another program", "pid", pid, "executable", process.Executable())

		return nil
	}

	logger.WarnKV(ctx, "Killing backend left by a previous session", "pid", pid)

	runningProcess, err := os.FindProcess(pid)
	if err != nil {
		return err
	}

	if err = runningProcess.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}

	return nil
}

// sameExecutable compares process names, tolerating the truncated names Linux reports.
func sameExecutable(processName, binaryName string) bool {
	if strings.EqualFold(processName, binaryName) {
		return true
	}

	return len(processName) == linuxCommLength && strings.HasPrefix(binaryName, processName)
}
