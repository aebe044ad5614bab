package unpacker

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/recorder-launcher/internal/config"
	"github.com/oshokin/recorder-launcher/internal/logger"
	"github.com/oshokin/recorder-launcher/internal/platform"
)

// defaultFileMode is applied to archive entries that carry no permission bits.
const defaultFileMode fs.FileMode = 0o644

var (
	// ErrExtractedDirMissing is returned when the directory derived from the archive name is absent.
	ErrExtractedDirMissing = errors.New("extracted directory not found")
	// ErrUnsupportedStrategy is returned for strategies that do not unpack anything.
	ErrUnsupportedStrategy = errors.New("unsupported decompression strategy")
	// errIllegalPath is returned for entries escaping the destination directory.
	errIllegalPath = errors.New("archive entry escapes destination")
)

// compressionSuffixes are stripped from archive names, longest first.
//
//nolint:gochecknoglobals // Read-only table.
var compressionSuffixes = []string{".tar.gz", ".tgz", ".zip"}

// DecompressionError reports a corrupt archive or an unexpected layout.
type DecompressionError struct {
	// Archive is the archive path.
	Archive string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *DecompressionError) Error() string {
	return fmt.Sprintf("decompress %s: %v", e.Archive, e.Err)
}

// Unwrap returns the underlying failure.
func (e *DecompressionError) Unwrap() error {
	return e.Err
}

// StrategyForArchive picks a strategy from the file extension.
func StrategyForArchive(name string) (platform.Strategy, error) {
	lower := strings.ToLower(name)

	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return platform.StrategyTarGz, nil
	case strings.HasSuffix(lower, ".zip"):
		return platform.StrategyZip, nil
	default:
		return platform.StrategyNone, fmt.Errorf("%s: %w", name, ErrUnsupportedStrategy)
	}
}

// ExtractedDirName derives the top-level directory an archive unpacks into
// by stripping its compression extensions.
func ExtractedDirName(archiveName string) string {
	base := filepath.Base(archiveName)
	lower := strings.ToLower(base)

	for _, suffix := range compressionSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return base[:len(base)-len(suffix)]
		}
	}

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Unpack extracts archivePath into destDir with the given strategy.
func Unpack(ctx context.Context, archivePath, destDir string, strategy platform.Strategy) error {
	logger.InfoKV(ctx, "Unpacking archive", "archive", archivePath, "strategy", strategy.String())

	if err := os.MkdirAll(destDir, config.DefaultDirPermissions); err != nil {
		return &DecompressionError{Archive: archivePath, Err: err}
	}

	var err error

	switch strategy {
	case platform.StrategyTarGz:
		err = untarGz(ctx, archivePath, destDir)
	case platform.StrategyZip:
		err = unzip(ctx, archivePath, destDir)
	case platform.StrategyNone:
		err = fmt.Errorf("%s: %w", strategy, ErrUnsupportedStrategy)
	default:
		err = fmt.Errorf("%d: %w", strategy, ErrUnsupportedStrategy)
	}

	if err != nil {
		return &DecompressionError{Archive: archivePath, Err: err}
	}

	return nil
}

// ApplyAlias renames the directory extracted from archiveName to alias and
// returns the aliased path.
func ApplyAlias(destDir, archiveName, alias string) (string, error) {
	source := filepath.Join(destDir, ExtractedDirName(archiveName))
	target := filepath.Join(destDir, alias)

	info, err := os.Stat(source)
	if err != nil || !info.IsDir() {
		return "", &DecompressionError{
			Archive: archiveName,
			Err:     fmt.Errorf("%s: %w", source, ErrExtractedDirMissing),
		}
	}

	if source == target {
		return target, nil
	}

	if err = os.RemoveAll(target); err != nil {
		return "", &DecompressionError{Archive: archiveName, Err: err}
	}

	if err = os.Rename(source, target); err != nil {
		return "", &DecompressionError{Archive: archiveName, Err: err}
	}

	return target, nil
}

// untarGz extracts a gzip-compressed tarball.
//
//nolint:cyclop // One case per tar entry type.
func untarGz(ctx context.Context, archivePath, destDir string) error {
	file, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return err
	}

	defer func() {
		_ = file.Close()
	}()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return err
	}

	defer func() {
		_ = gzr.Close()
	}()

	tr := tar.NewReader(gzr)

	for {
		if err = ctx.Err(); err != nil {
			return err
		}

		var header *tar.Header

		header, err = tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		var target string

		target, err = safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			err = os.MkdirAll(target, config.DefaultDirPermissions)
		case tar.TypeReg:
			err = writeFile(target, tr, header.FileInfo().Mode())
		case tar.TypeSymlink:
			err = writeSymlink(destDir, target, header.Linkname)
		case tar.TypeLink:
			err = writeHardlink(destDir, target, header.Linkname)
		default:
			logger.Debugf(ctx, "Skipping tar entry %s of type %q", header.Name, header.Typeflag)
		}

		if err != nil {
			return err
		}
	}
}

// unzip extracts a zip archive.
func unzip(ctx context.Context, archivePath, destDir string) error {
	reader, err := zip.OpenReader(filepath.Clean(archivePath))
	if err != nil {
		return err
	}

	defer func() {
		_ = reader.Close()
	}()

	for _, entry := range reader.File {
		if err = ctx.Err(); err != nil {
			return err
		}

		if err = extractZipEntry(destDir, entry); err != nil {
			return err
		}
	}

	return nil
}

// extractZipEntry writes one zip entry below destDir.
func extractZipEntry(destDir string, entry *zip.File) error {
	target, err := safeJoin(destDir, entry.Name)
	if err != nil {
		return err
	}

	mode := entry.Mode()
	if mode.IsDir() {
		return os.MkdirAll(target, config.DefaultDirPermissions)
	}

	contents, err := entry.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = contents.Close()
	}()

	if mode&fs.ModeSymlink != 0 {
		var linkname []byte

		linkname, err = io.ReadAll(contents)
		if err != nil {
			return err
		}

		return writeSymlink(destDir, target, string(linkname))
	}

	return writeFile(target, contents, mode)
}

// writeFile creates target with the content of r and the permission bits of mode.
func writeFile(target string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), config.DefaultDirPermissions); err != nil {
		return err
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = defaultFileMode
	}

	output, err := os.OpenFile(filepath.Clean(target), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}

	//nolint:gosec // Archives come from pinned release URLs.
	if _, err = io.Copy(output, r); err != nil {
		_ = output.Close()

		return err
	}

	if err = output.Close(); err != nil {
		return err
	}

	// OpenFile honours the umask; restore the archived bits.
	return os.Chmod(target, perm)
}

// writeSymlink creates a symlink whose resolved target stays inside destDir.
func writeSymlink(destDir, target, linkname string) error {
	resolved := linkname
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(target), linkname)
	}

	if _, err := safeJoin(destDir, mustRel(destDir, resolved)); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), config.DefaultDirPermissions); err != nil {
		return err
	}

	_ = os.Remove(target)

	return os.Symlink(linkname, target)
}

// writeHardlink links target to an already extracted entry.
func writeHardlink(destDir, target, linkname string) error {
	source, err := safeJoin(destDir, linkname)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(target), config.DefaultDirPermissions); err != nil {
		return err
	}

	_ = os.Remove(target)

	return os.Link(source, target)
}

// safeJoin joins name onto destDir and rejects results outside destDir.
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))

	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", name, errIllegalPath)
	}

	return target, nil
}

// mustRel returns path relative to base, or ".." when it cannot be expressed.
func mustRel(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return ".."
	}

	return rel
}
