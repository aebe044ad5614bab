package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oshokin/recorder-launcher/internal/config"
	domain "github.com/oshokin/recorder-launcher/internal/domain/recorder"
)

// Repository defines persistence operations for the configuration record.
type Repository interface {
	Load(ctx context.Context) (*domain.Record, error)
	Save(ctx context.Context, record *domain.Record) error
}

// FileRepository persists the record to a JSON file on disk.
// Field names match the ones the UI layer reads and writes.
type FileRepository struct {
	// path is the filesystem location of the JSON record file.
	path string
	// mu protects concurrent access to the record file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when the record file does not exist yet.
	ErrNotFound = errors.New("record not found")

	errRecordIsNotSet = errors.New("record is not set")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the location of the record file.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the record from disk.
func (r *FileRepository) Load(_ context.Context) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read record file: %w", err)
	}

	var record domain.Record
	if err = json.Unmarshal(contents, &record); err != nil {
		return nil, fmt.Errorf("decode record file: %w", err)
	}

	return &record, nil
}

// Save replaces the record on disk. The file is written next to the target
// and renamed over it, so readers never observe a partial record.
func (r *FileRepository) Save(_ context.Context, record *domain.Record) error {
	if record == nil {
		return errRecordIsNotSet
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(r.path), config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create record directory: %w", err)
	}

	tmpPath := r.path + ".tmp"
	if err = os.WriteFile(tmpPath, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write record file: %w", err)
	}

	if err = os.Rename(tmpPath, r.path); err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("replace record file: %w", err)
	}

	return nil
}
