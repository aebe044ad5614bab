package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/recorder-launcher/internal/config"
	"github.com/oshokin/recorder-launcher/internal/service/launcher"
	"github.com/oshokin/recorder-launcher/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// resourcesDir overrides where the provisioned runtime is looked up.
	resourcesDir string
	// appDataDir overrides where records, rendered config and backend output live.
	appDataDir string
	// metricsAddress enables the Prometheus endpoint.
	metricsAddress string
	// logLevel overrides log_level from the configuration.
	logLevel string

	// rootCmd represents the base command for running the bridge and the backend supervisor.
	rootCmd = &cobra.Command{
		Use:   "recorder-launcher [listen-address]",
		Short: "Serve the recorder bridge and supervise the backend process.",
		Long: `Starts the bridge that the UI talks to.

The bridge loads and saves the configuration record. Saving a record renders
application.properties and spawns the backend with the provisioned Java runtime.
Once the backend prints its readiness line, subscribers are told to navigate
to the backend URL.

Listen address can be provided as argument to override config (e.g., 127.0.0.1:9090).
On SIGINT or SIGTERM the backend is stopped before the launcher exits.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &launcher.Options{
				ConfigPath:     configPath,
				ListenAddress:  listenAddress,
				ResourcesDir:   resourcesDir,
				AppDataDir:     appDataDir,
				MetricsAddress: metricsAddress,
				LogLevel:       logLevel,
			}

			return launcher.Run(ctx, options)
		},
	}
)

// Execute runs the recorder-launcher CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&resourcesDir, "resources-dir", "r", "", "directory holding dependencies/ and executable/")
	rootCmd.Flags().StringVarP(&appDataDir, "app-data-dir", "a", "", "application data directory")
	rootCmd.Flags().StringVarP(&metricsAddress, "metrics-addr", "m", "", "address of the Prometheus endpoint")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn or error")
}
