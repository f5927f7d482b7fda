package version

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Full starts with the release and names the Go runtime.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.True(t, strings.HasPrefix(Full(), Short()))
	require.Contains(t, Full(), "commit ")
	require.Contains(t, Full(), "go")
}

// TestAttachCobraVersionCommand prints the full or short version.
func TestAttachCobraVersionCommand(t *testing.T) {
	t.Parallel()

	run := func(args ...string) string {
		root := &cobra.Command{Use: "ua-alarm-server"}
		AttachCobraVersionCommand(root)

		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs(args)
		require.NoError(t, root.Execute())

		return strings.TrimSpace(out.String())
	}

	require.Equal(t, "ua-alarm-server "+Full(), run("version"))
	require.Equal(t, Short(), run("version", "--short"))
}
