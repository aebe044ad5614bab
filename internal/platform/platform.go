package platform

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/oshokin/recorder-launcher/internal/layout"
)

// Platform is a supported host tag.
type Platform int

const (
	// Unknown is the zero value and never resolves.
	Unknown Platform = iota
	// LinuxAMD64 is 64-bit Linux.
	LinuxAMD64
	// WindowsAMD64 is 64-bit Windows.
	WindowsAMD64
)

// String returns the platform tag.
func (p Platform) String() string {
	switch p {
	case LinuxAMD64:
		return "linux/amd64"
	case WindowsAMD64:
		return "windows/amd64"
	default:
		return "unknown"
	}
}

// Strategy is how a downloaded resource is turned into files on disk.
type Strategy int

const (
	// StrategyNone keeps the downloaded file as-is.
	StrategyNone Strategy = iota
	// StrategyTarGz extracts a gzip-compressed tarball.
	StrategyTarGz
	// StrategyZip extracts a zip archive.
	StrategyZip
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyTarGz:
		return "tar.gz"
	case StrategyZip:
		return "zip"
	default:
		return "none"
	}
}

// Variant selects the runtime packaging.
type Variant string

const (
	// VariantJRE is the runtime-only packaging.
	VariantJRE Variant = "jre"
	// VariantJDK is the full development kit.
	VariantJDK Variant = "jdk"
)

// ErrUnsupportedPlatform is returned for hosts outside the lookup table.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// errUnsupportedVariant is returned when a platform has no archive for a variant.
var errUnsupportedVariant = errors.New("unsupported runtime variant")

// Detect maps GOOS/GOARCH to a supported platform tag.
func Detect(goos, goarch string) (Platform, error) {
	switch {
	case goos == "linux" && goarch == "amd64":
		return LinuxAMD64, nil
	case goos == "windows" && goarch == "amd64":
		return WindowsAMD64, nil
	default:
		return Unknown, fmt.Errorf("%s/%s: %w", goos, goarch, ErrUnsupportedPlatform)
	}
}

// Current detects the platform the binary runs on.
func Current() (Platform, error) {
	return Detect(runtime.GOOS, runtime.GOARCH)
}

// ParseVariant converts a settings value into a Variant. Empty picks the platform default.
func ParseVariant(p Platform, value string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return DefaultVariant(p), nil
	case VariantJRE:
		return VariantJRE, nil
	case VariantJDK:
		return VariantJDK, nil
	default:
		return "", fmt.Errorf("%w: %s", errUnsupportedVariant, value)
	}
}

// DefaultVariant is the packaging bundled for a platform: the JDK zip on
// Windows and the JRE tarball on Linux.
func DefaultVariant(p Platform) Variant {
	if p == WindowsAMD64 {
		return VariantJDK
	}

	return VariantJRE
}

// ResourceDescriptor describes one remote resource and where it lands.
type ResourceDescriptor struct {
	// Name is a human-readable label used in logs and metrics.
	Name string
	// SourceURL is the remote location.
	SourceURL string
	// ArchiveName is the remote file name.
	ArchiveName string
	// LocalArchivePath is where the download is cached.
	LocalArchivePath string
	// DestinationDir receives the extracted files.
	DestinationDir string
	// Strategy decides how the download is unpacked.
	Strategy Strategy
	// PostExtractAlias renames the extracted top-level directory when set.
	PostExtractAlias string
	// Checksum is an optional SHA-512 digest of the download.
	Checksum []byte
}

// Resources is the per-platform set needed by the backend.
type Resources struct {
	// Runtime is the managed runtime archive.
	Runtime ResourceDescriptor
	// MediaTool is the ffmpeg archive.
	MediaTool ResourceDescriptor
}

const (
	runtimeBaseURL   = "https://cdn.azul.com/zulu/bin/"
	mediaToolBaseURL = "https://github.com/vot/ffbinaries-prebuilt/releases/download/v4.1/"
	artifactURL      = "https://github.com/Class-Recorder/class-recorder/releases/download/0.9.1/"

	// RuntimeName labels the runtime resource.
	RuntimeName = "JVM"
	// MediaToolName labels the media tool resource.
	MediaToolName = "Ffmpeg"
	// BackendName labels the backend artifact.
	BackendName = "Class-recorder"
)

// archive is one row of the lookup tables.
type archive struct {
	name     string
	strategy Strategy
}

type runtimeKey struct {
	platform Platform
	variant  Variant
}

//nolint:gochecknoglobals // Read-only lookup tables.
var (
	runtimeArchives = map[runtimeKey]archive{
		{LinuxAMD64, VariantJRE}:   {"zulu8.38.0.13-ca-jre8.0.212-linux_x64.tar.gz", StrategyTarGz},
		{LinuxAMD64, VariantJDK}:   {"zulu8.38.0.13-ca-jdk8.0.212-linux_x64.tar.gz", StrategyTarGz},
		{WindowsAMD64, VariantJRE}: {"zulu8.38.0.13-ca-jre8.0.212-win_x64.zip", StrategyZip},
		{WindowsAMD64, VariantJDK}: {"zulu8.38.0.13-ca-jdk8.0.212-win_x64.zip", StrategyZip},
	}

	mediaToolArchives = map[Platform]archive{
		LinuxAMD64:   {"ffmpeg-4.1-linux-64.zip", StrategyZip},
		WindowsAMD64: {"ffmpeg-4.1-win-64.zip", StrategyZip},
	}
)

// Resolve selects the runtime and media tool descriptors for a platform.
// Archives are cached directly under depsDir and extracted there.
func Resolve(p Platform, variant Variant, depsDir string) (Resources, error) {
	mediaTool, ok := mediaToolArchives[p]
	if !ok {
		return Resources{}, fmt.Errorf("%s: %w", p, ErrUnsupportedPlatform)
	}

	rt, ok := runtimeArchives[runtimeKey{p, variant}]
	if !ok {
		return Resources{}, fmt.Errorf("%s %s: %w", p, variant, errUnsupportedVariant)
	}

	return Resources{
		Runtime: ResourceDescriptor{
			Name:             RuntimeName,
			SourceURL:        runtimeBaseURL + rt.name,
			ArchiveName:      rt.name,
			LocalArchivePath: filepath.Join(depsDir, rt.name),
			DestinationDir:   depsDir,
			Strategy:         rt.strategy,
			PostExtractAlias: layout.RuntimeAlias,
		},
		MediaTool: ResourceDescriptor{
			Name:             MediaToolName,
			SourceURL:        mediaToolBaseURL + mediaTool.name,
			ArchiveName:      mediaTool.name,
			LocalArchivePath: filepath.Join(depsDir, mediaTool.name),
			DestinationDir:   depsDir,
			Strategy:         mediaTool.strategy,
		},
	}, nil
}

// BackendArtifact describes the backend jar downloaded into cacheDir.
func BackendArtifact(cacheDir, artifactName string) ResourceDescriptor {
	return ResourceDescriptor{
		Name:             BackendName,
		SourceURL:        artifactURL + artifactName,
		ArchiveName:      artifactName,
		LocalArchivePath: filepath.Join(cacheDir, artifactName),
		DestinationDir:   cacheDir,
		Strategy:         StrategyNone,
	}
}

// WithBaseURL returns a copy of r fetched from baseURL instead of its default host.
func (r ResourceDescriptor) WithBaseURL(baseURL string) ResourceDescriptor {
	if baseURL == "" {
		return r
	}

	r.SourceURL = strings.TrimSuffix(baseURL, "/") + "/" + r.ArchiveName

	return r
}
