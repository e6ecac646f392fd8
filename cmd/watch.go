package cmd

import (
	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch <room>",
	Aliases: []string{"w"},
	Short:   "Watch a broadcast as a viewer",
	Long: `Join a broadcast room as a viewer. Viewers never capture or send media; the
host's stream arrives once the host starts broadcasting.

Examples:
  warpcall watch my-stream
  warpcall watch https://warpcall.qzz.io/r/my-stream`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd, args, call.RoleViewer, false)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
