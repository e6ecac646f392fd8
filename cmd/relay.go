package cmd

import (
	"log/slog"
	"os"

	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/logging"
	"github.com/BioHazard786/Warpcall/internal/relay"
	"github.com/BioHazard786/Warpcall/internal/ui"
	"github.com/spf13/cobra"
)

var flagRelayAddr string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the signaling relay server",
	Long: `Run the websocket relay that rooms negotiate through. It serves /ws for
clients, /health for load balancers and /metrics for Prometheus.

Examples:
  warpcall relay
  warpcall relay --addr :9000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagLogLevel == "" && os.Getenv("LOG_LEVEL") == "" {
			logging.Init("info")
		}

		cfg, err := config.Load(config.Options{RelayAddr: flagRelayAddr})
		if err != nil {
			return err
		}
		ui.PrintInfof("Relay listening on %s", cfg.RelayAddr)
		return relay.Serve(cmd.Context(), cfg.RelayAddr, slog.Default())
	},
}

func init() {
	rootCmd.AddCommand(relayCmd)
	relayCmd.Flags().StringVar(&flagRelayAddr, "addr", "", "Listen address (default :8080)")
}
