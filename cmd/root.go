package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/logging"
	"github.com/BioHazard786/Warpcall/internal/version"
	"github.com/spf13/cobra"
)

var (
	flagDomain             string
	flagSignalURL          string
	flagSTUN               string
	flagTURN               string
	flagTURNUser           string
	flagTURNPass           string
	flagForceRelay         bool
	flagCodec              string
	flagNegotiationTimeout string
	flagMetricsAddr        string
	flagLogLevel           string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warpcall",
	Short: "Peer-to-peer audio and video rooms over WebRTC",
	Long: `Warpcall joins WebRTC rooms from the terminal. Small rooms run as a mesh where
every participant talks to every other one; broadcast rooms have one host
streaming to any number of viewers. Browser and CLI clients share the same relay.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(flagLogLevel)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		call.PrintErr(err)
		stop()
		os.Exit(1)
	}
}

// loadConfig resolves flags, environment and defaults.
func loadConfig() (*config.Config, error) {
	return config.Load(config.Options{
		Domain:             flagDomain,
		SignalURL:          flagSignalURL,
		STUNServer:         flagSTUN,
		TURNServer:         flagTURN,
		TURNUser:           flagTURNUser,
		TURNPass:           flagTURNPass,
		ForceRelay:         flagForceRelay,
		Codec:              flagCodec,
		NegotiationTimeout: flagNegotiationTimeout,
		MetricsAddr:        flagMetricsAddr,
	})
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&flagDomain, "domain", "d", "", "Custom domain")
	f.StringVar(&flagSignalURL, "signal-url", "", "Relay websocket URL (overrides domain)")
	f.StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	f.StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	f.StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	f.StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	f.BoolVarP(&flagForceRelay, "relay", "r", false, "Force relay-only ICE")
	f.StringVar(&flagCodec, "codec", "", "Relay wire codec: json or msgpack")
	f.StringVar(&flagNegotiationTimeout, "negotiation-timeout", "", "Close links that do not connect in time (0 disables)")
	f.StringVar(&flagMetricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address")
	f.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error")
}
