package provisioner

import (
	"context"
	"crypto"
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/recorder-launcher/internal/config"
	"github.com/oshokin/recorder-launcher/internal/logger"
	"github.com/oshokin/recorder-launcher/internal/service/fetcher"

	// Ensure SHA512 available for artifact verification.
	_ "crypto/sha512"
)

const (
	// MarkerFilename marks that provisioning is running right now to avoid parallel execution.
	MarkerFilename = ".recorder-provision-marker"

	// ArtifactFileMode is applied to the installed backend artifact.
	ArtifactFileMode os.FileMode = 0o644

	// ChecksumFunction verifies the backend artifact when a checksum is configured.
	ChecksumFunction crypto.Hash = crypto.SHA512

	// markerLifetime is the period after which a stale marker is ignored.
	markerLifetime = 30 * time.Minute

	// junkFolder is left behind by archives packed on macOS.
	junkFolder = "__MACOSX"

	bytesPerMegabyte = 1024 * 1024
)

var (
	errProvisioningRunning = errors.New("provisioning is already running")
	errBadChecksum         = errors.New("artifact checksum is not valid base64")
)

// defaultTemplate is written to executable/ when no template is present.
//
//go:embed application.properties.template
var defaultTemplate []byte

// DefaultTemplate returns a copy of the bundled properties template.
func DefaultTemplate() []byte {
	return append([]byte(nil), defaultTemplate...)
}

// IsRunningNow checks presence of a marker file and removes it if it looks stale.
func IsRunningNow(ctx context.Context, markerPath string) bool {
	logger.Debug(ctx, "Checking for the presence of a provisioning marker")

	fileInfo, err := os.Stat(markerPath)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The provisioning marker is too old, removing it")

		return os.Remove(markerPath) != nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		logger.Warnf(ctx, "Unable to read provisioning marker: %v", err)
	}

	return false
}

// createMarker writes the marker file.
func createMarker(markerPath string) error {
	if err := os.MkdirAll(filepath.Dir(markerPath), config.DefaultDirPermissions); err != nil {
		return err
	}

	marker, err := os.Create(filepath.Clean(markerPath))
	if err != nil {
		return err
	}

	return marker.Close()
}

// decodeChecksum parses an optional base64 SHA-512 digest.
func decodeChecksum(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}

	checksum, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadChecksum, err)
	}

	return checksum, nil
}

// logProgress renders fetcher progress the way operators expect it.
func logProgress(ctx context.Context) fetcher.ProgressFunc {
	return func(p fetcher.Progress) {
		logger.DebugKV(ctx, "Download progress",
			"resource", p.Resource,
			"speed", fmt.Sprintf("%.2f MB/s", p.BytesPerSecond/bytesPerMegabyte),
			"downloaded", fmt.Sprintf("%.2f MB", float64(p.Transferred)/bytesPerMegabyte),
		)
	}
}
