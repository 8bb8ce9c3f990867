package cmd

import (
	"fmt"

	configtoml "github.com/bnema/osabridge/internal/adapters/config/toml"
	"github.com/spf13/cobra"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the bridge configuration file",
	}

	configCmd.AddCommand(newConfigInitCmd(opts), newConfigShowCmd(opts))

	return configCmd
}

func newConfigInitCmd(opts *rootOptions) *cobra.Command {
	var force bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.configPath
			if path == "" {
				defaultPath, err := configtoml.DefaultPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}

			if err := configtoml.Write(path, configtoml.Defaults(), force); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return err
		},
	}

	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return initCmd
}

func newConfigShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.wire(cmd)
			if err != nil {
				return err
			}

			data, err := configtoml.Encode(app.cfg)
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
