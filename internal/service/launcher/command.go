package launcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"google.golang.org/grpc"

	api "github.com/oshokin/recorder-launcher/internal/api/grpc/bridge"
	"github.com/oshokin/recorder-launcher/internal/config"
	"github.com/oshokin/recorder-launcher/internal/layout"
	"github.com/oshokin/recorder-launcher/internal/logger"
	"github.com/oshokin/recorder-launcher/internal/metrics"
	repository "github.com/oshokin/recorder-launcher/internal/repository/record"
	"github.com/oshokin/recorder-launcher/internal/service/bridge"
	"github.com/oshokin/recorder-launcher/internal/service/provisioner"
	"github.com/oshokin/recorder-launcher/internal/service/supervisor"
)

// Options controls the recorder-launcher process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides bridge_addr from the settings.
	ListenAddress string
	// ResourcesDir overrides resources_dir from the settings.
	ResourcesDir string
	// AppDataDir overrides app_data_dir from the settings.
	AppDataDir string
	// MetricsAddress overrides metrics_addr from the settings.
	MetricsAddress string
	// OnListening is called with the bound addresses; metrics is nil when disabled.
	OnListening func(bridgeAddr, metricsAddr net.Addr)
	// Command overrides how the backend process is built.
	Command supervisor.CommandFunc
	// LogLevel overrides log_level from the settings.
	LogLevel string
}

// errProvisioningRunning is returned when recorder-provision is rewriting the resources directory.
var errProvisioningRunning = errors.New("provisioning is running now")

const (
	metricsNamespace         = "recorder_launcher"
	metricsReadHeaderTimeout = 5 * time.Second
)

// Run serves the bridge and blocks until ctx is canceled or the server stops.
//
//nolint:funlen // Wiring reads best top to bottom.
func Run(ctx context.Context, opts *Options) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	if settings.LogFile != "" {
		closeLog, logErr := logger.AttachFile(settings.LogFile)
		if logErr != nil {
			return logErr
		}

		defer func() {
			_ = closeLog()
		}()
	}

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "recorder-launcher")

	paths := layout.New(settings.ResourcesDir, runtime.GOOS)
	appData := layout.AppData{Dir: settings.AppDataDir}

	if provisioner.IsRunningNow(ctx, filepath.Join(paths.ResourcesDir, provisioner.MarkerFilename)) {
		return errProvisioningRunning
	}

	if err = os.MkdirAll(appData.Dir, config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create application data directory: %w", err)
	}

	collector := metrics.NewNoop()

	var metricsServer *http.Server

	var metricsListener net.Listener

	if settings.MetricsAddress != "" {
		prometheusCollector := metrics.NewPrometheusCollector(metricsNamespace)
		collector = prometheusCollector

		metricsServer, metricsListener, err = listenMetrics(ctx, settings.MetricsAddress, prometheusCollector)
		if err != nil {
			return err
		}
	}

	backend := supervisor.New(supervisor.Options{
		RuntimeBinary: paths.RuntimeBinary(),
		Artifact:      paths.BackendArtifact(),
		TemplatePath:  paths.PropertiesTemplate(),
		MediaTool:     paths.MediaTool(),
		AppData:       appData,
		Sentinel:      settings.ReadinessSentinel,
		StopTimeout:   settings.StopTimeout,
		OnEvent:       logEvent(ctx),
		Metrics:       collector,
		Command:       opts.Command,
	})

	svc := bridge.New(
		repository.NewFileRepository(appData.RecordFile()),
		bridge.SupervisorBackend(backend),
		bridge.WithBackendURL(settings.BackendURL),
		bridge.WithReadinessTimeout(settings.ReadinessTimeout),
	)

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", settings.BridgeAddress)
	if err != nil {
		if metricsListener != nil {
			_ = metricsListener.Close()
		}

		return fmt.Errorf("listen on %s: %w", settings.BridgeAddress, err)
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(unaryActorInterceptor(ctx)),
		grpc.ChainStreamInterceptor(streamActorInterceptor(ctx)),
	)
	api.RegisterBridgeServer(grpcServer, api.NewServer(svc))

	logger.InfoKV(ctx, "Bridge listening",
		"listen_address", lis.Addr().String(),
		"resources_dir", paths.ResourcesDir,
		"app_data_dir", appData.Dir,
	)

	if metricsServer != nil {
		go serveMetrics(ctx, metricsServer, metricsListener)
	}

	if opts.OnListening != nil {
		var metricsAddr net.Addr
		if metricsListener != nil {
			metricsAddr = metricsListener.Addr()
		}

		opts.OnListening(lis.Addr(), metricsAddr)
	}

	// Done channel is closed after the shutdown sequence finishes to ensure we block
	// until everything fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		shutdown(ctx, settings, backend, svc, grpcServer, metricsServer)
		close(done)
	}()

	if err = grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "Launcher stopped")

	return nil
}

// loadSettings reads settings and applies command-line overrides.
func loadSettings(opts *Options) (*config.Config, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if err = config.ApplyLogLevel(settings, opts.LogLevel); err != nil {
		return nil, err
	}

	if opts.ListenAddress != "" {
		settings.BridgeAddress = opts.ListenAddress
	}

	if opts.ResourcesDir != "" {
		settings.ResourcesDir = opts.ResourcesDir
	}

	if opts.AppDataDir != "" {
		settings.AppDataDir = opts.AppDataDir
	}

	if opts.MetricsAddress != "" {
		settings.MetricsAddress = opts.MetricsAddress
	}

	if err = config.Validate(settings); err != nil {
		return nil, err
	}

	if settings.LogFile != "" && !filepath.IsAbs(settings.LogFile) {
		settings.LogFile = filepath.Join(settings.AppDataDir, settings.LogFile)
	}

	return settings, nil
}

// shutdown stops the backend, ends notification streams and stops the servers.
func shutdown(
	ctx context.Context,
	settings *config.Config,
	backend *supervisor.Supervisor,
	svc *bridge.Service,
	grpcServer *grpc.Server,
	metricsServer *http.Server,
) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*settings.StopTimeout)
	defer cancel()

	logger.Info(ctx, "Stopping backend")

	if err := backend.Kill(stopCtx); err != nil && !errors.Is(err, supervisor.ErrNotStarted) {
		logger.ErrorKV(ctx, "Unable to stop backend", "error", err)
	}

	svc.Wait()
	svc.Close()

	logger.Info(ctx, "Shutting down gRPC server")
	grpcServer.GracefulStop()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(stopCtx); err != nil {
			logger.WarnKV(ctx, "Unable to stop metrics server", "error", err)
		}
	}
}

// listenMetrics binds the Prometheus endpoint.
func listenMetrics(
	ctx context.Context,
	address string,
	collector *metrics.PrometheusCollector,
) (*http.Server, net.Listener, error) {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, nil, fmt.Errorf("listen metrics on %s: %w", address, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	return server, lis, nil
}

func serveMetrics(ctx context.Context, server *http.Server, lis net.Listener) {
	logger.InfoKV(ctx, "Metrics listening", "listen_address", lis.Addr().String())

	if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.ErrorKV(ctx, "Metrics server failed", "error", err)
	}
}

// logEvent reports supervisor events.
func logEvent(ctx context.Context) func(supervisor.Event) {
	return func(event supervisor.Event) {
		kvs := []any{"session", event.SessionID, "event", string(event.Type)}

		switch event.Type {
		case supervisor.EventReady:
			logger.InfoKV(ctx, "Backend event", kvs...)
		case supervisor.EventFailed:
			logger.ErrorKV(ctx, "Backend event", append(kvs, "exit_code", event.ExitCode, "error", event.Err)...)
		default:
			logger.InfoKV(ctx, "Backend event", append(kvs, "exit_code", event.ExitCode)...)
		}
	}
}
