package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/regime"
	"github.com/rustyeddy/trendbot/scoring"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [symbol...]",
	Short: "Score buy signals without trading",
	Long: `Fetch candles for the watchlist (or the given symbols), detect the
market regime, and print each symbol's composite buy score and signals.

No orders are placed and no state is written.

Example:
  trendbot analyze -f trendbot.yaml
  trendbot analyze -f trendbot.yaml ETH SOL`,
	RunE: runAnalyze,
}

var analyzeConfigPath string

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	analyzeCmd.MarkFlagRequired("config")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(analyzeConfigPath)
	if err != nil {
		return err
	}

	symbols := cfg.Watchlist
	if len(args) > 0 {
		symbols = args
	}

	ctx := context.Background()
	exch := buildExchange(cfg)

	benchmark, err := exch.Candles(ctx, cfg.Regime.BenchmarkSymbol, market.Interval24h, 120)
	if err != nil {
		return fmt.Errorf("benchmark candles: %w", err)
	}
	current := regime.Detect(cfg.Regime, benchmark)
	params := regime.Adjust(cfg, current)

	fmt.Printf("Regime: %s (%s)\n\n", current, params)
	fmt.Printf("%-8s %8s %6s %6s %4s  %s\n", "SYMBOL", "PRICE", "SCORE", "RSI", "BUY", "SIGNALS")

	analyzer := scoring.New(cfg)
	for _, sym := range symbols {
		daily, err := exch.Candles(ctx, sym, market.Interval24h, 120)
		if err != nil {
			fmt.Printf("%-8s candles unavailable: %v\n", sym, err)
			continue
		}
		// Intraday confirmation is optional.
		intraday, err := exch.Candles(ctx, sym, market.Interval1h, 60)
		if err != nil {
			intraday = nil
		}

		an, err := analyzer.AnalyzeBuy(sym, daily, intraday, benchmark, params)
		if err != nil {
			fmt.Printf("%-8s analyze failed: %v\n", sym, err)
			continue
		}

		buy := "no"
		if an.Buy {
			buy = "YES"
		}
		fmt.Printf("%-8s %8.0f %6.1f %6.1f %4s  %s\n",
			an.Symbol, an.Price, an.Score, an.RSI, buy, strings.Join(an.Signals, ","))
		if an.Reason != "" {
			fmt.Printf("%-8s %s\n", "", an.Reason)
		}
	}
	return nil
}
