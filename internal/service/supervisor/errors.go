package supervisor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyStarted is returned by Start while a backend process is alive.
	ErrAlreadyStarted = errors.New("backend is already started")
	// ErrNotStarted is returned by Kill and Wait when no process is tracked.
	ErrNotStarted = errors.New("backend is not started")
	// ErrNotProvisioned is returned when the runtime or the artifact is missing.
	ErrNotProvisioned = errors.New("runtime layout is not provisioned")
)

// ProcessSpawnError reports that the runtime could not be executed.
type ProcessSpawnError struct {
	Executable string
	Err        error
}

func (e *ProcessSpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Executable, e.Err)
}

func (e *ProcessSpawnError) Unwrap() error {
	return e.Err
}

// ProcessExitedError reports that the backend terminated before it became ready.
type ProcessExitedError struct {
	ExitCode int
	// Stderr is the tail of the process diagnostics.
	Stderr string
}

func (e *ProcessExitedError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("backend exited with code %d", e.ExitCode)
	}

	return fmt.Sprintf("backend exited with code %d: %s", e.ExitCode, stderr)
}
