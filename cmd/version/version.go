// Package version provides the version command
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/runtime"
)

// Command creates and returns the version command
func Command(rt *runtime.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{runtime.AnnotationSetup: runtime.SetupNone},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "baseline %s (built %s)\n",
				rt.Build.GetVersion(), rt.Build.GetBuildDate())
		},
	}
}
