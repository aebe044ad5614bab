package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AttachCobraVersionCommand attaches a `version` subcommand to the provided root command.
// By default it prints the full build metadata, --short prints the semantic version only.
func AttachCobraVersionCommand(root *cobra.Command) {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Long: `Print the build metadata injected through ldflags: version, commit hash and build time.
The same version is sent as the User-Agent when dependencies are downloaded.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if short {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), Short())

				return
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Full())
		},
	}
	cmd.Flags().BoolVarP(&short, "short", "s", false, "print only the version number")

	root.AddCommand(cmd)
}
