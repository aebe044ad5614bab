package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/recorder-launcher/internal/config"
	"github.com/oshokin/recorder-launcher/internal/logger"
	"github.com/oshokin/recorder-launcher/internal/metrics"
	"github.com/oshokin/recorder-launcher/internal/platform"
	"github.com/oshokin/recorder-launcher/internal/version"
)

// defaultProgressInterval throttles progress events.
const defaultProgressInterval = 500 * time.Millisecond

// ErrBadHTTPStatus is wrapped when the server answers with anything but 200.
var ErrBadHTTPStatus = errors.New("unexpected http status")

// DownloadError reports a failed transfer. The partially written file is left on disk.
type DownloadError struct {
	// Resource is the descriptor name.
	Resource string
	// URL is the requested location.
	URL string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s from %s: %v", e.Resource, e.URL, e.Err)
}

// Unwrap returns the underlying failure.
func (e *DownloadError) Unwrap() error {
	return e.Err
}

// Progress is emitted while a resource streams to disk.
type Progress struct {
	// Resource is the descriptor name.
	Resource string
	// Transferred is the number of bytes written so far.
	Transferred int64
	// Total is the announced length, or -1 when unknown.
	Total int64
	// BytesPerSecond is the throughput since the previous event.
	BytesPerSecond float64
}

// ProgressFunc receives progress events.
type ProgressFunc func(Progress)

// Fetcher downloads resources into their local cache path.
type Fetcher struct {
	// client performs the HTTP requests.
	client *http.Client
	// onProgress receives throttled progress events.
	onProgress ProgressFunc
	// interval is the minimum gap between progress events.
	interval time.Duration
	// metrics counts transferred bytes and cache hits.
	metrics metrics.Collector
}

// Option configures the fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(f *Fetcher) {
		f.onProgress = fn
	}
}

// WithProgressInterval sets the minimum gap between progress events.
func WithProgressInterval(interval time.Duration) Option {
	return func(f *Fetcher) {
		if interval >= 0 {
			f.interval = interval
		}
	}
}

// WithMetrics records transfers in the collector.
func WithMetrics(c metrics.Collector) Option {
	return func(f *Fetcher) {
		f.metrics = metrics.OrNoop(c)
	}
}

// New creates a fetcher with the provided options.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   http.DefaultClient,
		interval: defaultProgressInterval,
		metrics:  metrics.NewNoop(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch downloads res to res.LocalArchivePath unless that file already exists.
// It reports whether a transfer happened. The existing file is not verified.
func (f *Fetcher) Fetch(ctx context.Context, res platform.ResourceDescriptor) (bool, error) {
	ctx = logger.WithKV(ctx, "resource", res.Name)

	logger.Infof(ctx, "Downloading %s", res.Name)

	for _, dir := range []string{res.DestinationDir, filepath.Dir(res.LocalArchivePath)} {
		if dir == "" {
			continue
		}

		if err := os.MkdirAll(dir, config.DefaultDirPermissions); err != nil {
			return false, &DownloadError{Resource: res.Name, URL: res.SourceURL, Err: err}
		}
	}

	if _, err := os.Stat(res.LocalArchivePath); err == nil {
		logger.InfoKV(ctx, "Resource is already downloaded", "path", res.LocalArchivePath)
		f.metrics.ResourceProvisioned(res.Name, metrics.OutcomeCached)

		return false, nil
	}

	if err := f.download(ctx, res); err != nil {
		f.metrics.ResourceProvisioned(res.Name, metrics.OutcomeFailure)

		return false, &DownloadError{Resource: res.Name, URL: res.SourceURL, Err: err}
	}

	logger.InfoKV(ctx, "Downloaded resource", "path", res.LocalArchivePath)

	return true, nil
}

// download streams the response body into the cache path.
func (f *Fetcher) download(ctx context.Context, res platform.ResourceDescriptor) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, res.SourceURL, http.NoBody)
	if err != nil {
		return err
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := f.client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %w", response.Status, ErrBadHTTPStatus)
	}

	output, err := os.Create(filepath.Clean(res.LocalArchivePath))
	if err != nil {
		return err
	}

	counter := &progressWriter{
		resource: res.Name,
		total:    response.ContentLength,
		interval: f.interval,
		emit:     f.onProgress,
		started:  time.Now(),
	}
	counter.last = counter.started

	written, err := io.Copy(output, io.TeeReader(response.Body, counter))
	f.metrics.DownloadedBytes(res.Name, written)

	if err != nil {
		_ = output.Close()

		return err
	}

	counter.flush()

	return output.Close()
}

// progressWriter counts bytes passing through and emits throttled events.
type progressWriter struct {
	resource    string
	total       int64
	transferred int64
	interval    time.Duration
	emit        ProgressFunc

	started  time.Time
	last     time.Time
	lastSize int64
}

// Write implements io.Writer.
func (p *progressWriter) Write(chunk []byte) (int, error) {
	p.transferred += int64(len(chunk))

	if p.emit != nil && time.Since(p.last) >= p.interval {
		p.report(time.Now())
	}

	return len(chunk), nil
}

// flush emits the final event.
func (p *progressWriter) flush() {
	if p.emit == nil {
		return
	}

	p.report(time.Now())
}

// report emits one event with the throughput since the previous one.
func (p *progressWriter) report(now time.Time) {
	var speed float64
	if elapsed := now.Sub(p.last).Seconds(); elapsed > 0 {
		speed = float64(p.transferred-p.lastSize) / elapsed
	}

	p.emit(Progress{
		Resource:       p.resource,
		Transferred:    p.transferred,
		Total:          p.total,
		BytesPerSecond: speed,
	})

	p.last = now
	p.lastSize = p.transferred
}
