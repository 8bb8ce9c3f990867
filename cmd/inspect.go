package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	wirerender "github.com/bnema/osabridge/internal/adapters/render/wire"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [file]",
		Short: "Render bridge responses (one JSON value per line) as a tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := cmd.InOrStdin()
			if len(args) == 1 {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open responses: %w", err)
				}
				defer file.Close()
				input = file
			}

			return inspectResponses(input, cmd.OutOrStdout())
		},
	}
}

func inspectResponses(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		rendered, err := wirerender.RenderJSON(line, wirerender.RenderOptions{})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, rendered); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read responses: %w", err)
	}

	return nil
}
