package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/recorder-launcher/internal/config"
	domain "github.com/oshokin/recorder-launcher/internal/domain/recorder"
	"github.com/oshokin/recorder-launcher/internal/service/client"
	"github.com/oshokin/recorder-launcher/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// bridgeAddress overrides bridge_addr from the configuration.
	bridgeAddress string
	// logLevel overrides log_level from the configuration.
	logLevel string
	// videosFolder is where recordings are written.
	videosFolder string
	// databaseFolder is where the backend keeps its database.
	databaseFolder string
	// wait keeps "run" attached until the backend settles.
	wait bool

	// rootCmd is the parent of the bridge channel commands.
	rootCmd = &cobra.Command{
		Use:   "recorder-bridge",
		Short: "Call the recorder launcher bridge.",
		Long: `Talks to a running recorder-launcher over gRPC.

"load" prints the previously saved configuration record (or null).
"run" saves a record and asks the launcher to start the backend. With --wait
the command stays attached until the backend is ready and prints the URL to open.`,
	}

	// loadCmd calls the load-previous-data channel.
	loadCmd = &cobra.Command{
		Use:   "load",
		Short: "Print the previously saved configuration record.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return client.Run(ctx, &client.Options{
				ConfigPath:    cfgPath,
				BridgeAddress: bridgeAddress,
				Action:        client.ActionLoad,
				LogLevel:      logLevel,
			})
		},
	}

	// runCmd calls the save-data-and-run-server channel.
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Save the configuration record and start the backend.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return client.Run(ctx, &client.Options{
				ConfigPath:    cfgPath,
				BridgeAddress: bridgeAddress,
				Action:        client.ActionRun,
				Record: &domain.Record{
					VideosFolder:   videosFolder,
					DatabaseFolder: databaseFolder,
				},
				Wait:     wait,
				LogLevel: logLevel,
			})
		},
	}
)

// Execute runs the recorder-bridge CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	rootCmd.AddCommand(loadCmd, runCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&bridgeAddress, "address", "a", "", "bridge address, overrides bridge_addr")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn or error")

	runCmd.Flags().StringVar(&videosFolder, "videos", "", "folder for recorded videos")
	runCmd.Flags().StringVar(&databaseFolder, "database", "", "folder for the backend database")
	runCmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait until the backend is ready or has failed")
}
