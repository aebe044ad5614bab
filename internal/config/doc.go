// Package config defines the launcher settings used by every binary and provides
// helpers to load, validate and save them in YAML format.
//
// Validation fills in defaults: the application data directory, the bridge and
// backend addresses, the readiness sentinel and the stop grace period.
package config
