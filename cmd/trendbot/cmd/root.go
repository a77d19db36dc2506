package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trendbot",
	Short: "A trend-following spot trading bot for Bithumb altcoins",
	Long: `Trendbot watches a list of altcoins, scores multi-timeframe buy signals,
and trades them with regime-adaptive risk limits.

It provides tools for:
  - Running the trading loop against the Bithumb spot API
  - Monitoring open positions for drawdown-from-peak protection
  - Asking an LLM advisor for a target cash ratio and grading its past calls
  - One-shot signal analysis of the watchlist
  - Inspecting positions, cooldowns, and the trade journal

Complete documentation is available at https://github.com/rustyeddy/trendbot`,
	PersistentPreRunE: setupLogging,
}

var logLevel string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
}

func setupLogging(cmd *cobra.Command, args []string) error {
	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
	return nil
}

// newLogger builds the console logger shared by all long-running commands.
func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
}
