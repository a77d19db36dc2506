package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/rustyeddy/trendbot/backtest"
	"github.com/rustyeddy/trendbot/market"
	"github.com/spf13/cobra"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical candles through the strategy",
	Long: `Run the scoring and exit rules over historical daily candles and
report the simulated result.

Candles are read from CSV files named SYMBOL.csv in the candles directory,
with rows of time,open,high,low,close,volume (RFC3339 time, header allowed).
The benchmark symbol's file must be present. Trading starts after a warmup
long enough to fill the slowest moving average.

Example:
  trendbot backtest -f trendbot.yaml --candles data/daily`,
	RunE: runBacktest,
}

var (
	btConfigPath string
	btCandlesDir string
	btWarmup     int
	btCloseEnd   bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	backtestCmd.Flags().StringVarP(&btCandlesDir, "candles", "c", "", "directory of SYMBOL.csv daily candle files (required)")
	backtestCmd.Flags().IntVar(&btWarmup, "warmup", 0, "bars to skip before trading (default: slowest MA + 1)")
	backtestCmd.Flags().BoolVar(&btCloseEnd, "close-end", true, "liquidate open positions at the final close")
	backtestCmd.MarkFlagRequired("config")
	backtestCmd.MarkFlagRequired("candles")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(btConfigPath)
	if err != nil {
		return err
	}

	benchmark, err := backtest.LoadCSV(candlePath(cfg.Regime.BenchmarkSymbol), cfg.Regime.BenchmarkSymbol)
	if err != nil {
		return fmt.Errorf("benchmark candles: %w", err)
	}

	symbols := make(map[string]*market.CandleSet, len(cfg.Watchlist))
	for _, sym := range cfg.Watchlist {
		cs, err := backtest.LoadCSV(candlePath(sym), sym)
		if err != nil {
			fmt.Printf("skipping %s: %v\n", sym, err)
			continue
		}
		symbols[sym] = cs
	}

	r, err := backtest.NewRunner(cfg, benchmark, symbols, backtest.Options{
		Warmup:   btWarmup,
		CloseEnd: btCloseEnd,
	})
	if err != nil {
		return err
	}

	res, err := r.Run()
	if err != nil {
		return err
	}

	fmt.Printf("Backtest %s — %s (%d symbols)\n",
		res.Start.Format("2006-01-02"), res.End.Format("2006-01-02"), len(symbols))
	fmt.Printf("  Start balance: %.0f\n", res.StartBalance)
	fmt.Printf("  Final equity:  %.0f (cash %.0f + holdings %.0f)\n", res.Equity, res.FinalBalance, res.HoldingsValue)
	fmt.Printf("  Return: %+.2f%%  Max drawdown: %.2f%%\n", res.ReturnPct, res.MaxDrawdownPct)
	fmt.Printf("  Trades: %d (%d wins / %d losses)\n", res.Trades, res.Wins, res.Losses)
	for _, tr := range res.Closed {
		fmt.Printf("    %s %-6s %s -> %s %+.2f%%  %s\n",
			tr.EntryTime.Format("2006-01-02"), tr.Symbol,
			fmtPrice(tr.EntryPrice), fmtPrice(tr.ExitPrice), tr.ProfitPct, tr.Reason)
	}
	return nil
}

func candlePath(symbol string) string {
	return filepath.Join(btCandlesDir, symbol+".csv")
}

func fmtPrice(p float64) string {
	if p >= 100 {
		return fmt.Sprintf("%.0f", p)
	}
	return fmt.Sprintf("%.4f", p)
}
