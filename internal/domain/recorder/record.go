package recorder

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRecord is wrapped by every validation failure.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrVideosFolderRequired is returned when the videos folder is empty.
	ErrVideosFolderRequired = fmt.Errorf("%w: videos folder is required", ErrInvalidRecord)
	// ErrDatabaseFolderRequired is returned when the database folder is empty.
	ErrDatabaseFolderRequired = fmt.Errorf("%w: database folder is required", ErrInvalidRecord)
	// ErrBackendUnavailable is wrapped when the backend cannot be started right now.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Record is the user-chosen configuration persisted between sessions.
type Record struct {
	// VideosFolder is where recordings are written.
	VideosFolder string `json:"videosFolder"`
	// DatabaseFolder is where the backend keeps its embedded database.
	DatabaseFolder string `json:"databaseFolder"`
}

// Validate checks that both folders are present.
func (r *Record) Validate() error {
	if r == nil || strings.TrimSpace(r.VideosFolder) == "" {
		return ErrVideosFolderRequired
	}

	if strings.TrimSpace(r.DatabaseFolder) == "" {
		return ErrDatabaseFolderRequired
	}

	return nil
}

// Clone returns a copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	cloned := *r

	return &cloned
}
