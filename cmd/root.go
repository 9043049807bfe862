// Package cmd assembles the baseline command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/cmd/camera"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/cmd/config"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/cmd/ingest"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/cmd/query"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/cmd/version"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/conf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/runtime"
)

// RootCommand creates and returns the root command
func RootCommand(v *viper.Viper, rt *runtime.Runtime) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "baseline",
		Short:        "Camera behavioral baseline and anomaly scoring",
		SilenceUsage: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, v, &configFile, rt); err != nil {
		// flag names are static; binding only fails on a programming error
		panic(err)
	}

	subcommands := []*cobra.Command{
		ingest.Command(rt),
		camera.Command(rt),
		config.Command(rt),
		version.Command(rt),
	}
	subcommands = append(subcommands, query.Commands(rt)...)
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(cmd, v, configFile, rt)
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return rt.Close()
	}

	return rootCmd
}

// initialize loads settings and starts as much of the runtime as cmd asks for.
func initialize(cmd *cobra.Command, v *viper.Viper, configFile string, rt *runtime.Runtime) error {
	setup := setupLevel(cmd)
	if setup == runtime.SetupNone {
		return nil
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	settings, err := conf.Load(v)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if setup == runtime.SetupConfig {
		return rt.Configure(settings)
	}
	if err := rt.Start(settings); err != nil {
		// release whatever started before the failure
		_ = rt.Close()
		return err
	}
	return nil
}

// setupLevel returns the setup annotation of cmd or its nearest parent.
func setupLevel(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if level, ok := c.Annotations[runtime.AnnotationSetup]; ok {
			return level
		}
	}
	return ""
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, v *viper.Viper, configFile *string, rt *runtime.Runtime) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to config.yaml (default: search standard locations)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("driver", "", "Database driver: sqlite, mysql or postgres")
	flags.String("sqlite-path", "", "Path to the SQLite database file")
	flags.StringVar(&rt.MetricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")

	bindings := map[string]string{
		"debug":                "debug",
		"database.driver":      "driver",
		"database.sqlite.path": "sqlite-path",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
