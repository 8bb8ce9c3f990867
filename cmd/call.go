package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	wirerender "github.com/bnema/osabridge/internal/adapters/render/wire"
	"github.com/bnema/osabridge/internal/domain"
	"github.com/spf13/cobra"
)

func newCallCmd(opts *rootOptions) *cobra.Command {
	var (
		hostKind string
		script   string
		progress bool
		pretty   bool
	)

	callCmd := &cobra.Command{
		Use:   "call <command-json>...",
		Short: "Run commands in one bridge session and print each response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			responses := make([]string, 0, len(args))
			run := func(ctx context.Context, report reportFunc) error {
				for i, input := range args {
					if err := ctx.Err(); err != nil {
						return err
					}
					response := bridge.dispatcher.Call(ctx, input)
					responses = append(responses, response)
					if report != nil {
						report(callProgress(i+1, len(args), input, response))
					}
				}
				return nil
			}

			if progress {
				err = runCallSpinner(cmd.Context(), cmd.ErrOrStderr(), len(args), run)
			} else {
				err = run(cmd.Context(), nil)
			}
			if err != nil {
				return err
			}

			return printResponses(cmd.OutOrStdout(), responses, pretty, app.renderer)
		},
	}

	addHostFlags(callCmd, &hostKind, &script)
	callCmd.Flags().BoolVar(&progress, "progress", false, "Show per-command progress on stderr while commands run")
	callCmd.Flags().BoolVar(&pretty, "pretty", false, "Render responses as a tree instead of JSON")

	return callCmd
}

// callProgress names the command by its wire name and picks the error code
// out of the response when the command failed.
func callProgress(index, total int, input, response string) callProgressMsg {
	msg := callProgressMsg{index: index, total: total, name: "command"}
	if parsed, err := domain.ParseCommand([]byte(input)); err == nil {
		msg.name = string(parsed.Name)
	}
	if decoded, err := wirerender.Decode([]byte(response)); err == nil && decoded.Error != nil {
		msg.code = decoded.Error.Code
	}
	return msg
}

func printResponses(out io.Writer, responses []string, pretty bool, render func(wirerender.Response, wirerender.RenderOptions) (string, error)) error {
	for _, response := range responses {
		line := response
		if pretty {
			decoded, err := wirerender.Decode([]byte(response))
			if err != nil {
				return err
			}
			if line, err = render(decoded, wirerender.RenderOptions{}); err != nil {
				return fmt.Errorf("render response: %w", err)
			}
		}

		if _, err := fmt.Fprintln(out, strings.TrimRight(line, "\n")); err != nil {
			return err
		}
	}

	return nil
}
