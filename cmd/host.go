package cmd

import (
	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/spf13/cobra"
)

var flagStart bool

var hostCmd = &cobra.Command{
	Use:   "host [room]",
	Short: "Host a broadcast room",
	Long: `Host a room where only you send media and any number of viewers watch.
Viewers that join before the broadcast starts are offered the stream as soon
as it does. Press b in the call view to start or stop broadcasting.

Examples:
  warpcall host --start --video camera.ivf
  warpcall host my-stream --audio talk.ogg`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd, args, call.RoleHost, flagStart)
	},
}

func init() {
	rootCmd.AddCommand(hostCmd)
	addMediaFlags(hostCmd)
	hostCmd.Flags().BoolVar(&flagStart, "start", false, "Start broadcasting right after joining")
}
