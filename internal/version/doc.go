// Package version exposes build metadata for the launcher binaries.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds.
// Short and Full render the version for CLI output; UserAgent tags HTTP
// requests made while provisioning dependencies.
package version
