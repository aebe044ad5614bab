package version

import "fmt"

// productName prefixes the User-Agent sent with dependency downloads.
const productName = "recorder-launcher"

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "1.0.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}

// UserAgent returns the HTTP User-Agent used when fetching dependencies.
func UserAgent() string {
	return productName + "/" + Version
}
