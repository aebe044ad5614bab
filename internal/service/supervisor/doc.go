// Package supervisor spawns the backend against the provisioned runtime and tracks it.
//
// A Supervisor owns at most one backend process. Start renders the
// properties file, spawns the runtime and returns a Startup that settles once:
// when the readiness sentinel appears on stdout, when the process exits with
// status zero, or with a ProcessExitedError on any other exit. stderr is kept
// for diagnostics only. Kill terminates the process and waits for it.
package supervisor
