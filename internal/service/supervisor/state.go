package supervisor

// State is the lifecycle position of the tracked backend.
type State int

// Supervisor states.
const (
	// StateIdle means no process has been started yet.
	StateIdle State = iota
	// StateConfigRendered means the properties file was written for the next spawn.
	StateConfigRendered
	// StateSpawned means the process is running and has not reported readiness.
	StateSpawned
	// StateReady means the readiness sentinel was seen.
	StateReady
	// StateExitedClean means the process exited with status zero.
	StateExitedClean
	// StateExitedNonZero means the process exited with a failure status.
	StateExitedNonZero
	// StateStopped means the process was terminated by Kill.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfigRendered:
		return "config-rendered"
	case StateSpawned:
		return "spawned"
	case StateReady:
		return "ready"
	case StateExitedClean:
		return "exited-clean"
	case StateExitedNonZero:
		return "exited-non-zero"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// EventType classifies supervisor notifications.
type EventType string

// Event types.
const (
	EventReady   EventType = "ready"
	EventExited  EventType = "exited"
	EventFailed  EventType = "failed"
	EventStopped EventType = "stopped"
)

// Event is delivered to Options.OnEvent on every state change after spawn.
type Event struct {
	// SessionID identifies one spawned process.
	SessionID string
	Type      EventType
	// ExitCode is set for exit events.
	ExitCode int
	Err      error
}
