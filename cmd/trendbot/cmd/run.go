package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rustyeddy/trendbot/bot"
	"github.com/rustyeddy/trendbot/exchange/paper"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading loop",
	Long: `Run the trend-following trading loop against the configured exchange.

Each cycle detects the market regime from the benchmark symbol, checks open
positions for exits, and scores the watchlist for new entries. The loop stops
cleanly on SIGINT or SIGTERM.

With --dry-run, market data still comes from the exchange but orders fill
against an in-memory paper account, and state is kept under a separate
dryrun/ directory.

Example:
  trendbot run -f trendbot.yaml --interval 10m --dry-run`,
	RunE: runRun,
}

var (
	runConfigPath string
	runInterval   time.Duration
	runOnce       bool
	runDry        bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().DurationVar(&runInterval, "interval", 10*time.Minute, "time between trading cycles")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single cycle and exit")
	runCmd.Flags().BoolVar(&runDry, "dry-run", false, "trade on paper against live market data")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(runConfigPath)
	if err != nil {
		return err
	}

	if runDry {
		// Keep paper fills out of the live ledger and journal.
		cfg.State.Dir = filepath.Join(cfg.State.Dir, "dryrun")
	}

	st, err := openState(cfg)
	if err != nil {
		return err
	}
	defer st.jrnl.Close()

	log := newLogger()

	exch := buildExchange(cfg)
	if runDry {
		exch = paper.NewDryRun(exch, cfg.Risk.TotalBudget, cfg.Risk.FeeRate)
		log.Info().Float64("budget", cfg.Risk.TotalBudget).Msg("dry run: orders fill on paper")
	}

	b := bot.New(cfg, exch, st.book, st.guard, st.jrnl, buildNotifier(cfg), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runOnce {
		report, err := b.Cycle(ctx)
		if err != nil {
			return fmt.Errorf("cycle: %w", err)
		}
		printReport(report)
		return nil
	}

	log.Info().
		Str("interval", runInterval.String()).
		Strs("watchlist", cfg.Watchlist).
		Msg("starting trading loop")
	return b.Run(ctx, runInterval)
}

func printReport(r bot.Report) {
	fmt.Printf("Regime: %s (%s)\n", r.Regime, r.Params)
	fmt.Printf("Sells: %d  Buys: %d\n", len(r.Sells), len(r.Buys))
	for _, an := range r.Candidates {
		fmt.Printf("  candidate %-6s score=%.1f rsi=%.1f price=%.0f  %s\n",
			an.Symbol, an.Score, an.RSI, an.Price, an.Reason)
	}
	for _, s := range r.Skipped {
		fmt.Printf("  skipped %s\n", s)
	}
}
