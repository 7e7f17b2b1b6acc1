package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"backup-rotator/internal/config"
)

// createConfigCommand creates the config subcommand for generating sample config
func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Generate a sample configuration file",
		Long: `Generate a sample configuration file that can be used with the --config flag.

The output lists every option with its default. Redirect it to a file and
fill in the paths, backup types and remote credentials.

Examples:
  backup-rotator config > backup-rotator.yaml`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), config.SampleYAML)
		},
	}
}
