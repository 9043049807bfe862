// Package config provides commands to inspect the effective configuration.
package config

import (
	"github.com/spf13/cobra"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/runtime"
)

// Command creates and returns the config command
func Command(rt *runtime.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Inspect configuration",
		Annotations: map[string]string{runtime.AnnotationSetup: runtime.SetupConfig},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings as YAML, with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := rt.Settings.RedactedYAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	return cmd
}
