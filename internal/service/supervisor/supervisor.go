package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/recorder-launcher/internal/config"
	domain "github.com/oshokin/recorder-launcher/internal/domain/recorder"
	"github.com/oshokin/recorder-launcher/internal/layout"
	"github.com/oshokin/recorder-launcher/internal/logger"
	"github.com/oshokin/recorder-launcher/internal/metrics"
	"github.com/oshokin/recorder-launcher/internal/service/renderer"
)

const (
	// stderrTailSize bounds the diagnostics kept for ProcessExitedError.
	stderrTailSize = 4096
	// pipeDrainDelay bounds how long Wait keeps reading output after exit.
	pipeDrainDelay = 2 * time.Second
)

// CommandFunc builds the backend command for a runtime binary and its arguments.
type CommandFunc func(runtimeBinary string, args ...string) *exec.Cmd

// Options configure a Supervisor.
type Options struct {
	// RuntimeBinary is the provisioned runtime executable.
	RuntimeBinary string
	// Artifact is the backend jar passed to the runtime.
	Artifact string
	// TemplatePath is the properties template next to the artifact.
	TemplatePath string
	// MediaTool is the ffmpeg binary written into the properties.
	MediaTool string
	// AppData is the working directory of the backend.
	AppData layout.AppData
	// Sentinel is the stdout substring that marks readiness.
	Sentinel string
	// StopTimeout is the grace period between terminate and kill.
	StopTimeout time.Duration
	// OnEvent receives lifecycle events. It must not call back into the Supervisor synchronously.
	OnEvent func(Event)
	Metrics metrics.Collector
	// Command overrides how the process is built.
	Command CommandFunc
}

// Supervisor owns a single backend process.
type Supervisor struct {
	opts    Options
	metrics metrics.Collector
	command CommandFunc

	mu        sync.Mutex
	state     State
	cmd       *exec.Cmd
	sessionID string
	stopping  bool
	exited    chan struct{}
}

// New creates a Supervisor in StateIdle.
func New(opts Options) *Supervisor {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = config.DefaultStopTimeout
	}

	if opts.Sentinel == "" {
		opts.Sentinel = config.DefaultReadinessSentinel
	}

	command := opts.Command
	if command == nil {
		command = func(runtimeBinary string, args ...string) *exec.Cmd {
			return exec.Command(runtimeBinary, args...) //nolint:gosec // Runtime path comes from the provisioned layout.
		}
	}

	return &Supervisor{
		opts:    opts,
		metrics: metrics.OrNoop(opts.Metrics),
		command: command,
		state:   StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Start renders the properties and spawns the backend.
// It fails with ErrAlreadyStarted while a previous process is alive.
// The context only scopes logging: the process outlives it.
//
//nolint:funlen // Start is the documented sequence of the state machine.
func (s *Supervisor) Start(ctx context.Context, record *domain.Record) (*Startup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return nil, ErrAlreadyStarted
	}

	if err := s.checkLayout(); err != nil {
		return nil, err
	}

	s.state = StateIdle

	paths := renderer.DerivePaths(s.opts.AppData, s.opts.MediaTool)
	if err := renderer.RenderFile(s.opts.TemplatePath, s.opts.AppData.PropertiesFile(), record, paths); err != nil {
		return nil, err
	}

	s.state = StateConfigRendered

	for _, dir := range []string{paths.TempDir, paths.OutputDir} {
		if err := os.MkdirAll(dir, config.DefaultDirPermissions); err != nil {
			return nil, fmt.Errorf("create backend directory: %w", err)
		}
	}

	if err := reapStale(ctx, s.opts.AppData.PIDFile(), s.opts.RuntimeBinary); err != nil {
		logger.WarnKV(ctx, "Unable to reap a stale backend", "error", err)
	}

	sessionID := uuid.NewString()
	ctx = logger.WithKV(ctx, "session", sessionID)

	startup := newStartup()
	stderr := newTailBuffer(stderrTailSize)
	spawnedAt := time.Now()

	cmd := s.command(s.opts.RuntimeBinary, "-jar", s.opts.Artifact)
	cmd.Dir = s.opts.AppData.Dir
	cmd.WaitDelay = pipeDrainDelay
	cmd.Stdout = io.MultiWriter(
		newSentinelWriter(s.opts.Sentinel, func() { s.markReady(ctx, sessionID, startup, spawnedAt) }),
		&lineLogger{ctx: ctx, log: logger.DebugKV, stream: "stdout"},
	)
	cmd.Stderr = io.MultiWriter(stderr, &lineLogger{ctx: ctx, log: logger.WarnKV, stream: "stderr"})

	if err := cmd.Start(); err != nil {
		s.metrics.BackendStart(metrics.OutcomeFailure)

		return nil, &ProcessSpawnError{Executable: cmd.Path, Err: err}
	}

	if err := writePIDFile(s.opts.AppData.PIDFile(), cmd.Process.Pid); err != nil {
		logger.WarnKV(ctx, "Unable to write backend PID file", "error", err)
	}

	logger.InfoKV(ctx, "Backend spawned", "pid", cmd.Process.Pid, "dir", cmd.Dir)

	s.cmd = cmd
	s.sessionID = sessionID
	s.stopping = false
	s.exited = make(chan struct{})
	s.state = StateSpawned

	go s.wait(ctx, cmd, sessionID, startup, stderr, s.exited)

	return startup, nil
}

// Kill terminates the tracked process, escalating to a hard kill after the stop timeout.
// It returns once the process has exited or ctx is done.
func (s *Supervisor) Kill(ctx context.Context) error {
	s.mu.Lock()
	cmd, exited := s.cmd, s.exited
	if cmd == nil {
		s.mu.Unlock()

		return ErrNotStarted
	}

	s.stopping = true
	s.mu.Unlock()

	logger.InfoKV(ctx, "Stopping backend", "pid", cmd.Process.Pid)

	if err := terminate(cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.WarnKV(ctx, "Unable to terminate backend gracefully", "error", err)
	}

	timer := time.NewTimer(s.opts.StopTimeout)
	defer timer.Stop()

	select {
	case <-exited:
		return nil
	case <-timer.C:
		logger.Warn(ctx, "Backend ignored termination, killing it")
	case <-ctx.Done():
		_ = cmd.Process.Kill()

		return ctx.Err()
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}

	<-exited

	return nil
}

// Wait blocks until the tracked process exits.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.mu.Lock()
	exited := s.exited
	s.mu.Unlock()

	if exited == nil {
		return ErrNotStarted
	}

	select {
	case <-exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// checkLayout refuses to spawn before provisioning produced the runtime and the artifact.
func (s *Supervisor) checkLayout() error {
	for _, path := range []string{s.opts.RuntimeBinary, s.opts.Artifact, s.opts.TemplatePath} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%w: %w", ErrNotProvisioned, err)
		}
	}

	return nil
}

// markReady runs on the stdout copy goroutine when the sentinel is found.
func (s *Supervisor) markReady(ctx context.Context, sessionID string, startup *Startup, spawnedAt time.Time) {
	if !startup.resolve(nil) {
		return
	}

	s.mu.Lock()
	if s.sessionID == sessionID && s.state == StateSpawned {
		s.state = StateReady
	}
	s.mu.Unlock()

	elapsed := time.Since(spawnedAt)
	s.metrics.BackendStart(metrics.OutcomeReady)
	s.metrics.BackendReadiness(elapsed)

	logger.InfoKV(ctx, "Backend is ready", "elapsed", elapsed.String())
	s.emit(Event{SessionID: sessionID, Type: EventReady})
}

// wait reaps the process and settles the startup if readiness was never seen.
func (s *Supervisor) wait(
	ctx context.Context,
	cmd *exec.Cmd,
	sessionID string,
	startup *Startup,
	stderr *tailBuffer,
	exited chan struct{},
) {
	waitErr := cmd.Wait()

	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	s.mu.Lock()
	stopping := s.stopping

	event := Event{SessionID: sessionID, ExitCode: exitCode}

	switch {
	case stopping:
		s.state = StateStopped
		event.Type = EventStopped
	case exitCode == 0:
		s.state = StateExitedClean
		event.Type = EventExited
	default:
		s.state = StateExitedNonZero
		event.Type = EventFailed
	}

	s.cmd = nil
	s.mu.Unlock()

	_ = os.Remove(s.opts.AppData.PIDFile())

	var startupErr error
	if exitCode != 0 || stopping {
		startupErr = &ProcessExitedError{ExitCode: exitCode, Stderr: stderr.String()}
	}

	if startup.resolve(startupErr) {
		switch {
		case startupErr != nil:
			s.metrics.BackendStart(metrics.OutcomeFailure)
		default:
			s.metrics.BackendStart(metrics.OutcomeExited)
		}
	}

	if event.Type == EventFailed {
		event.Err = &ProcessExitedError{ExitCode: exitCode, Stderr: stderr.String()}
	}

	logger.InfoKV(ctx, "Backend exited", "code", exitCode, "state", s.State().String(), "wait_error", waitErr)
	close(exited)
	s.emit(event)
}

func (s *Supervisor) emit(event Event) {
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(event)
	}
}

// terminate asks the process to stop. Windows has no SIGTERM delivery, so the process is killed.
func terminate(process *os.Process) error {
	if runtime.GOOS == "windows" {
		return process.Kill()
	}

	return process.Signal(syscall.SIGTERM)
}
