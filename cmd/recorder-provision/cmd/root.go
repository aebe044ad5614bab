package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/recorder-launcher/internal/config"
	"github.com/oshokin/recorder-launcher/internal/service/provisioner"
	"github.com/oshokin/recorder-launcher/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// resourcesDir overrides where dependencies/ and executable/ are created.
	resourcesDir string
	// variant selects the runtime flavour (jre or jdk).
	variant string
	// mirrorURL serves every archive from a single base URL.
	mirrorURL string
	// skipArtifact leaves executable/ untouched.
	skipArtifact bool
	// checksum is the base64 SHA-512 digest of the backend artifact.
	checksum string
	// logLevel overrides log_level from the configuration.
	logLevel string

	// rootCmd represents the base command for provisioning runtime dependencies.
	rootCmd = &cobra.Command{
		Use:   "recorder-provision",
		Short: "Download and unpack the recorder runtime dependencies.",
		Long: `Prepares a fresh installation of the recorder backend.

Removes any previous dependencies, then downloads and unpacks the Java runtime
(renamed to "jvm") and the ffmpeg build for this platform into dependencies/.
Unless --skip-artifact is given, the backend jar is installed into executable/
together with the application.properties template.

Steps run strictly in order and the command exits non-zero on the first failure.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &provisioner.Options{
				ConfigPath:       configPath,
				ResourcesDir:     resourcesDir,
				Variant:          variant,
				MirrorURL:        mirrorURL,
				SkipArtifact:     skipArtifact,
				ArtifactChecksum: checksum,
				LogLevel:         logLevel,
			}

			return provisioner.Run(ctx, options)
		},
	}
)

// Execute runs the recorder-provision CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVar(&variant, "variant", "", "runtime variant: jre or jdk")
	rootCmd.Flags().StringVar(&mirrorURL, "mirror", "", "base URL serving every archive")
	rootCmd.Flags().BoolVar(&skipArtifact, "skip-artifact", false, "do not install the backend jar")
	rootCmd.Flags().StringVar(&checksum, "checksum", "", "base64 SHA-512 digest of the backend jar")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn or error")
}
