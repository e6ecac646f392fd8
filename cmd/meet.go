package cmd

import (
	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/spf13/cobra"
)

var meetCmd = &cobra.Command{
	Use:     "meet [room]",
	Aliases: []string{"m"},
	Short:   "Join a mesh call as a participant",
	Long: `Join a room where every participant sends and receives media from every other
participant. Without a room a new one is created and its link printed.

Examples:
  warpcall meet
  warpcall meet kitten-waffle-stardust-happy
  warpcall meet https://warpcall.qzz.io/r/kitten-waffle-stardust-happy --audio voice.ogg`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd, args, call.RoleParticipant, false)
	},
}

func init() {
	rootCmd.AddCommand(meetCmd)
	addMediaFlags(meetCmd)
}
