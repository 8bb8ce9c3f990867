package cmd

import (
	"github.com/bnema/osabridge/internal/adapters/transport/stdio"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var hostKind, script string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer newline-delimited JSON commands from stdin",
		Long:  "Reads one JSON command per line from stdin and writes one JSON response per line to stdout. Logs go to stderr.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.wire(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.logger.Sync() }()

			bridge, err := app.newBridge(app.hostConfig(hostKind, script))
			if err != nil {
				return err
			}
			defer bridge.close()

			server := stdio.NewServer(cmd.InOrStdin(), cmd.OutOrStdout(), bridge.dispatcher, app.logger)
			return server.Serve(cmd.Context())
		},
	}

	addHostFlags(serveCmd, &hostKind, &script)

	return serveCmd
}

func addHostFlags(cmd *cobra.Command, hostKind, script *string) {
	cmd.Flags().StringVar(hostKind, "host", "", "Scripting host: memory or lua (default from config)")
	cmd.Flags().StringVar(script, "script", "", "Lua script defining the applications table")
}
