package record

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/recorder-launcher/internal/domain/recorder"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))
	r, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, r)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns an equal record.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "nested", "previous_data.json")
	repo := NewFileRepository(file)

	want := &domain.Record{
		VideosFolder:   `C:\Users\lecturer\Videos`,
		DatabaseFolder: "/var/lib/recorder",
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)

	contents, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"videosFolder"`)
	require.Contains(t, string(contents), `"databaseFolder"`)
	require.NoFileExists(t, file+".tmp")
}

// TestFileRepository_SaveOverwrites verifies the last saved record wins.
func TestFileRepository_SaveOverwrites(t *testing.T) {
	t.Parallel()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "previous_data.json"))
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &domain.Record{VideosFolder: "/a", DatabaseFolder: "/b"}))
	require.NoError(t, repo.Save(ctx, &domain.Record{VideosFolder: "/c", DatabaseFolder: "/d"}))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "/c", got.VideosFolder)
	require.Equal(t, "/d", got.DatabaseFolder)
}

// TestFileRepository_Corrupt verifies a malformed file is reported, not treated as missing.
func TestFileRepository_Corrupt(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "previous_data.json")
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0o600))

	_, err := NewFileRepository(file).Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

// TestFileRepository_SaveNil verifies a nil record is rejected.
func TestFileRepository_SaveNil(t *testing.T) {
	t.Parallel()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "previous_data.json"))
	require.Error(t, repo.Save(context.Background(), nil))
}
