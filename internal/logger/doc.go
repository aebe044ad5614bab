// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder split between stdout and stderr,
//   - an optional JSON log file next to the application data (AttachFile),
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for settings and flags.
//
// Provisioning, the supervisor and the bridge accept a context and extract the
// logger from it, so every line carries the component name that produced it.
package logger
