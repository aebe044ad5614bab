// Package provisioner downloads and unpacks the backend's runtime dependencies.
//
// The pipeline resets dependencies/, provisions the managed runtime (renamed
// to a stable alias) and the media tool, removes archives and extraction junk,
// then installs the backend artifact into executable/ with go-update. Any
// failure aborts the run and removes the runtime archive; a retry always
// starts from the full reset.
package provisioner
