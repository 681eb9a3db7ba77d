package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/retrocast/api/internal/config"
	"github.com/retrocast/api/internal/logging"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "retrocast",
	Short: "Retro-styled video processing with ad insertion",
	Long: `Retrocast takes uploaded videos, applies a retro look (CRT, VHS or ARCADE),
splices in the user's ads at scene breaks chosen by content analysis, and
stores the result.

Examples:
  retrocast serve               # HTTP API with an embedded queue worker
  retrocast serve --no-worker   # HTTP API only
  retrocast worker              # queue worker only
  retrocast worker --pending    # list queued jobs and exit
  retrocast match -f fixture.yaml`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Init(cfg.Server.LogLevel, cfg.Server.IsDevelopment())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, workerCmd, matchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("retrocast exited")
		os.Exit(1)
	}
}
