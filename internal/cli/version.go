package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/forest-compare/internal/model"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and the run aggregate schema version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "forest-compare %s (aggregate schema %d)\n", Version, model.SchemaVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
