// Package cmd defines the todoserver command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/todo-progress/internal/config"
	"github.com/JakeFAU/todo-progress/internal/server"
)

// runner is what serve needs from the application. Tests inject a fake.
type runner interface {
	Run(ctx context.Context) error
}

type appFactory func(ctx context.Context, cfg *config.Config) (runner, error)

func buildApp(ctx context.Context, cfg *config.Config) (runner, error) {
	return server.Build(ctx, cfg)
}

type rootOptions struct {
	configPath string
}

// newRootCmd creates the root command with every subcommand attached.
func newRootCmd(newApp appFactory) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "todoserver",
		Short: "A todo REST service that streams per-item progress.",
		Long: `todoserver serves a small todo REST API. Every todo has a progress
endpoint that streams a simulated upload from 0 to 100 percent as
Server-Sent Events, or as WebSocket text messages.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file (env vars use the TODO_ prefix)")

	cmd.AddCommand(
		newServeCmd(opts, newApp),
		newOpenAPICmd(),
		newWatchCmd(),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd(buildApp).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
