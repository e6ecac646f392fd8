package cmd

import (
	"fmt"

	"github.com/BioHazard786/Warpcall/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "warpcall", version.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
