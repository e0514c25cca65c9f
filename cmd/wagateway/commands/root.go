// Package commands contains the wagateway CLI commands.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/genialityco/wa-multi-session-backend/internal/logging"
)

// Version is the gateway version, overridable at build time.
var Version = "0.1.0"

var (
	rootLogLevel  string
	rootLogPretty bool
)

var rootCmd = &cobra.Command{
	Use:   "wagateway",
	Short: "Multi-tenant messaging gateway",
	Long: `wagateway runs independent messaging sessions, one per clientId,
authenticated via a QR-code handshake. Messages are sent through a REST API
and session status is pushed to subscribers over a websocket channel.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env first so it can feed the config loader
		_ = godotenv.Load()

		logging.Init(logging.Config{
			Level:  logging.ParseLevel(rootLogLevel),
			Pretty: rootLogPretty,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().BoolVar(&rootLogPretty, "log-pretty", false, "Human-readable console logs")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
