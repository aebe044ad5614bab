// Package common holds helpers shared by several services.
//
// It provides a lightweight gRPC client for the bridge with call timeouts,
// and utilities to pass the calling user (username@hostname) as request metadata.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
