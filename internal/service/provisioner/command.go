package provisioner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/recorder-launcher/internal/config"
	"github.com/oshokin/recorder-launcher/internal/layout"
	"github.com/oshokin/recorder-launcher/internal/logger"
	"github.com/oshokin/recorder-launcher/internal/metrics"
	"github.com/oshokin/recorder-launcher/internal/platform"
	"github.com/oshokin/recorder-launcher/internal/service/fetcher"
	"github.com/oshokin/recorder-launcher/internal/service/unpacker"
)

// Options are inputs accepted by the provisioning entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
	// ResourcesDir overrides resources_dir from the settings.
	ResourcesDir string
	// Variant overrides runtime_variant from the settings.
	Variant string
	// MirrorURL serves every archive from one base URL instead of the upstream hosts.
	MirrorURL string
	// SkipArtifact leaves executable/ untouched.
	SkipArtifact bool
	// ArtifactChecksum is an optional base64 SHA-512 digest of the backend artifact.
	ArtifactChecksum string
	// HTTPClient replaces http.DefaultClient.
	HTTPClient *http.Client
	// Metrics records downloads and outcomes.
	Metrics metrics.Collector
	// GOOS and GOARCH override host detection.
	GOOS, GOARCH string
	// LogLevel overrides log_level from the settings.
	LogLevel string
}

// runner holds the state of a single provisioning execution.
// It is unexported, callers use Run(ctx, Options).
type runner struct {
	// Where dependencies/ and executable/ live.
	layout layout.Layout
	// Runtime and media tool descriptors.
	resources platform.Resources
	// Backend artifact, nil when skipped.
	artifact *platform.ResourceDescriptor
	// Optional artifact digest.
	artifactChecksum []byte
	fetcher          *fetcher.Fetcher
	metrics          metrics.Collector
	// Guards against concurrent runs.
	markerPath string
	// Resource being processed, used by rollback.
	current *platform.ResourceDescriptor
	// Artifact download directory.
	tempDir string
}

// Run executes the provisioning pipeline and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "recorder-provision")

	p, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	defer p.cleanup(ctx)

	if err = p.Run(ctx); err != nil {
		p.rollback(ctx)
		logger.ErrorKV(ctx, "Provisioning failed", "error", err)

		return err
	}

	logger.InfoKV(ctx, "Provisioning completed", "dependencies", p.layout.DependenciesDir())

	return nil
}

// newRunner resolves descriptors for the host and writes the marker.
//
//nolint:cyclop,funlen // Straight-line setup; splitting would only scatter it.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	if opts == nil {
		opts = new(Options)
	}

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if err = config.ApplyLogLevel(settings, opts.LogLevel); err != nil {
		return nil, err
	}

	resourcesDir := settings.ResourcesDir
	if opts.ResourcesDir != "" {
		resourcesDir = opts.ResourcesDir
	}

	goos, goarch := runtime.GOOS, runtime.GOARCH
	if opts.GOOS != "" {
		goos = opts.GOOS
	}

	if opts.GOARCH != "" {
		goarch = opts.GOARCH
	}

	host, err := platform.Detect(goos, goarch)
	if err != nil {
		return nil, err
	}

	variantSetting := settings.RuntimeVariant
	if opts.Variant != "" {
		variantSetting = opts.Variant
	}

	variant, err := platform.ParseVariant(host, variantSetting)
	if err != nil {
		return nil, err
	}

	paths := layout.New(resourcesDir, goos)

	resources, err := platform.Resolve(host, variant, paths.DependenciesDir())
	if err != nil {
		return nil, err
	}

	resources.Runtime = resources.Runtime.WithBaseURL(opts.MirrorURL)
	resources.MediaTool = resources.MediaTool.WithBaseURL(opts.MirrorURL)

	checksum, err := decodeChecksum(opts.ArtifactChecksum)
	if err != nil {
		return nil, err
	}

	collector := metrics.OrNoop(opts.Metrics)

	p := &runner{
		layout:           paths,
		resources:        resources,
		artifactChecksum: checksum,
		metrics:          collector,
		markerPath:       filepath.Join(paths.ResourcesDir, MarkerFilename),
		fetcher: fetcher.New(
			fetcher.WithHTTPClient(opts.HTTPClient),
			fetcher.WithProgress(logProgress(ctx)),
			fetcher.WithMetrics(collector),
		),
	}

	if IsRunningNow(ctx, p.markerPath) {
		return nil, errProvisioningRunning
	}

	if !opts.SkipArtifact {
		p.tempDir, err = os.MkdirTemp("", "recorder-provision-")
		if err != nil {
			return nil, err
		}

		artifact := platform.BackendArtifact(p.tempDir, layout.BackendArtifactName).WithBaseURL(opts.MirrorURL)
		p.artifact = &artifact
	}

	if err = createMarker(p.markerPath); err != nil {
		p.cleanup(ctx)

		return nil, err
	}

	logger.InfoKV(ctx, "Resolved dependencies",
		"platform", host.String(),
		"variant", string(variant),
		"runtime", resources.Runtime.ArchiveName,
		"media_tool", resources.MediaTool.ArchiveName,
	)

	return p, nil
}

// Run executes the pipeline, strictly in order:
// 1) Reset the provisioning root.
// 2) Fetch, unpack and alias the runtime.
// 3) Fetch and unpack the media tool.
// 4) Remove extraction junk and archives.
// 5) Install the backend artifact and the properties template.
func (p *runner) Run(ctx context.Context) error {
	logger.Info(ctx, "Removing the previous provisioning root")

	if err := p.reset(); err != nil {
		return fmt.Errorf("reset provisioning root: %w", err)
	}

	if err := p.provisionResource(ctx, p.resources.Runtime); err != nil {
		return err
	}

	if err := p.provisionResource(ctx, p.resources.MediaTool); err != nil {
		return err
	}

	logger.Info(ctx, "Removing transient extraction artifacts")

	p.current = nil
	p.removeTransient(ctx)

	if p.artifact == nil {
		return nil
	}

	if err := p.installArtifact(ctx); err != nil {
		return fmt.Errorf("install backend artifact: %w", err)
	}

	if err := p.ensureTemplate(ctx); err != nil {
		return fmt.Errorf("write properties template: %w", err)
	}

	return nil
}

// reset removes dependencies/ (and executable/ when the artifact is installed).
func (p *runner) reset() error {
	if err := os.RemoveAll(p.layout.DependenciesDir()); err != nil {
		return err
	}

	if p.artifact == nil {
		return nil
	}

	return os.RemoveAll(p.layout.ExecutableDir())
}

// provisionResource runs fetch → unpack → alias for one descriptor.
func (p *runner) provisionResource(ctx context.Context, res platform.ResourceDescriptor) error {
	p.current = &res

	if _, err := p.fetcher.Fetch(ctx, res); err != nil {
		return err
	}

	if err := unpacker.Unpack(ctx, res.LocalArchivePath, res.DestinationDir, res.Strategy); err != nil {
		p.metrics.ResourceProvisioned(res.Name, metrics.OutcomeFailure)

		return err
	}

	if res.PostExtractAlias != "" {
		aliased, err := unpacker.ApplyAlias(res.DestinationDir, res.ArchiveName, res.PostExtractAlias)
		if err != nil {
			p.metrics.ResourceProvisioned(res.Name, metrics.OutcomeFailure)

			return err
		}

		logger.InfoKV(ctx, "Renamed extracted directory", "resource", res.Name, "path", aliased)
	}

	p.metrics.ResourceProvisioned(res.Name, metrics.OutcomeSuccess)

	return nil
}

// removeTransient deletes junk directories and the downloaded archives.
func (p *runner) removeTransient(ctx context.Context) {
	transient := []string{
		filepath.Join(p.layout.DependenciesDir(), junkFolder),
		p.resources.Runtime.LocalArchivePath,
		p.resources.MediaTool.LocalArchivePath,
	}

	for _, path := range transient {
		if err := os.RemoveAll(path); err != nil {
			logger.WarnKV(ctx, "Unable to remove transient file", "path", path, "error", err)
		}
	}
}

// installArtifact downloads the backend artifact and applies it with go-update.
func (p *runner) installArtifact(ctx context.Context) error {
	p.current = p.artifact

	if _, err := p.fetcher.Fetch(ctx, *p.artifact); err != nil {
		return err
	}

	data, err := os.ReadFile(p.artifact.LocalArchivePath)
	if err != nil {
		return err
	}

	target := p.layout.BackendArtifact()
	if err = os.MkdirAll(filepath.Dir(target), config.DefaultDirPermissions); err != nil {
		return err
	}

	// go-update swaps files, so the target has to exist.
	if _, err = os.Stat(target); errors.Is(err, os.ErrNotExist) {
		var placeholder *os.File

		placeholder, err = os.Create(filepath.Clean(target))
		if err != nil {
			return err
		}

		_ = placeholder.Close()
	}

	logger.InfoKV(ctx, "Installing backend artifact", "path", target)

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: ArtifactFileMode,
		Checksum:   p.artifactChecksum,
		Hash:       ChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		p.metrics.ResourceProvisioned(p.artifact.Name, metrics.OutcomeFailure)

		return err
	}

	oldFileName := target + ".old"
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	p.metrics.ResourceProvisioned(p.artifact.Name, metrics.OutcomeSuccess)

	return nil
}

// ensureTemplate writes the bundled template when executable/ has none.
func (p *runner) ensureTemplate(ctx context.Context) error {
	path := p.layout.PropertiesTemplate()
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	logger.InfoKV(ctx, "Writing default properties template", "path", path)

	return os.WriteFile(path, DefaultTemplate(), ArtifactFileMode)
}

// rollback removes the runtime archive and the archive of the failed resource.
// Partially extracted directories are left for the next full reset.
func (p *runner) rollback(ctx context.Context) {
	paths := []string{p.resources.Runtime.LocalArchivePath}
	if p.current != nil && p.current.LocalArchivePath != p.resources.Runtime.LocalArchivePath {
		paths = append(paths, p.current.LocalArchivePath)
	}

	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Rollback could not remove archive", "path", path, "error", err)
		}
	}
}

// cleanup removes the marker and temporary artifacts.
func (p *runner) cleanup(ctx context.Context) {
	if _, err := os.Stat(p.markerPath); err == nil {
		_ = os.Remove(p.markerPath)
	}

	if p.tempDir != "" {
		_ = os.RemoveAll(p.tempDir)
	}

	logger.Debug(ctx, "Provisioning runner stopped")
}
