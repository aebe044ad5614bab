package version

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Short, Full and UserAgent return consistent information.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
	require.Equal(t, "recorder-launcher/"+Short(), UserAgent())
}

// TestAttachCobraVersionCommand runs the version subcommand with and without --short.
func TestAttachCobraVersionCommand(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		args []string
		want string
	}{
		{args: []string{"version"}, want: Full() + "\n"},
		{args: []string{"version", "--short"}, want: Short() + "\n"},
	} {
		root := &cobra.Command{Use: "recorder-launcher"}
		AttachCobraVersionCommand(root)

		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs(tc.args)

		require.NoError(t, root.Execute())
		require.Equal(t, tc.want, out.String())
	}
}
