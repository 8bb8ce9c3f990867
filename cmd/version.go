package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	configtoml "github.com/bnema/osabridge/internal/adapters/config/toml"
	"github.com/bnema/osabridge/internal/version"
	"github.com/spf13/cobra"
)

type versionInfo struct {
	Version string   `json:"version"`
	Go      string   `json:"go"`
	Hosts   []string `json:"hosts"`
}

func newVersionCmd() *cobra.Command {
	var asJSON bool

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !asJSON {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Version)
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(versionInfo{
				Version: version.Version,
				Go:      runtime.Version(),
				Hosts:   []string{configtoml.HostKindMemory, configtoml.HostKindLua},
			})
		},
	}

	versionCmd.Flags().BoolVar(&asJSON, "json", false, "Print version, Go runtime and supported host kinds as JSON")

	return versionCmd
}
