package renderer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/recorder-launcher/internal/config"
	domain "github.com/oshokin/recorder-launcher/internal/domain/recorder"
	"github.com/oshokin/recorder-launcher/internal/layout"
)

// Template placeholders understood by Render.
const (
	PlaceholderDatabaseDir = "${databaseDir}"
	PlaceholderMediaTool   = "${ffmpegDirectory}"
	PlaceholderVideos      = "${videos_folder}"
	PlaceholderTemp        = "${temp_folder}"
	PlaceholderOutput      = "${output_ffmpeg}"
)

// Paths holds the values that do not come from the user record.
type Paths struct {
	// MediaTool is the ffmpeg binary.
	MediaTool string
	// TempDir is the backend's scratch directory.
	TempDir string
	// OutputDir receives ffmpeg output.
	OutputDir string
}

// DerivePaths places the scratch and output directories under the app-data directory.
func DerivePaths(appData layout.AppData, mediaTool string) Paths {
	return Paths{
		MediaTool: mediaTool,
		TempDir:   appData.TempDir(),
		OutputDir: appData.OutputDir(),
	}
}

// EscapePath doubles every backslash. Properties files treat a single backslash as an escape
// character, so this is applied on every platform.
func EscapePath(path string) string {
	return strings.ReplaceAll(path, `\`, `\\`)
}

// Render substitutes every occurrence of each known placeholder.
// Tokens that are not known placeholders are left as they are.
func Render(template string, record *domain.Record, paths Paths) string {
	if record == nil {
		record = new(domain.Record)
	}

	replacer := strings.NewReplacer(
		PlaceholderDatabaseDir, EscapePath(record.DatabaseFolder),
		PlaceholderMediaTool, EscapePath(paths.MediaTool),
		PlaceholderVideos, EscapePath(record.VideosFolder),
		PlaceholderTemp, EscapePath(paths.TempDir),
		PlaceholderOutput, EscapePath(paths.OutputDir),
	)

	return replacer.Replace(template)
}

// RenderFile reads templatePath, renders it and writes the result to outputPath.
func RenderFile(templatePath, outputPath string, record *domain.Record, paths Paths) error {
	template, err := os.ReadFile(filepath.Clean(templatePath))
	if err != nil {
		return fmt.Errorf("read properties template: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(outputPath), config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create properties directory: %w", err)
	}

	rendered := Render(string(template), record, paths)
	if err = os.WriteFile(outputPath, []byte(rendered), config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write properties: %w", err)
	}

	return nil
}
