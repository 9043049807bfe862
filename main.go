package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/cmd"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/buildinfo"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/runtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rt := runtime.New(buildinfo.Current())
	rootCmd := cmd.RootCommand(viper.New(), rt)
	err := rootCmd.ExecuteContext(ctx)
	// post-run hooks are skipped when a command fails
	if closeErr := rt.Close(); closeErr != nil {
		fmt.Fprintln(os.Stderr, "Error:", closeErr)
		err = errors.Join(err, closeErr)
	}
	stop()
	if err != nil {
		os.Exit(1)
	}
}
