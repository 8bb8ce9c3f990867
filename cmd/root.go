package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const logLevelFlag = "log-level"

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "osab",
		Short:         "Object bridge (osab): drive live scripting-host objects over JSON",
		Long:          "osab exposes the live object graph of a scripting host to an external controller. Commands arrive as JSON, host objects are pooled behind stable ids, and results travel back as tagged wire values.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.osabridge/config.toml)")
	rootCmd.PersistentFlags().String(logLevelFlag, "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(opts),
		newCallCmd(opts),
		newInspectCmd(),
		newConfigCmd(opts),
	)

	return rootCmd
}
