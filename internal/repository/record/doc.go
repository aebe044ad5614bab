// Package record implements persistence for the recorder Record.
//
// The FileRepository stores and loads the record as JSON on disk and exposes a
// Repository interface that the bridge service depends on.
package record
