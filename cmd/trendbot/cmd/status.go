package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/trendbot/advisor"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show positions, cooldowns, and trade statistics",
	Long: `Print the current state of the bot: open positions with live profit,
active sell cooldowns, the latest advisor decision, and a 30-day trade summary
from the journal.

Example:
  trendbot status -f trendbot.yaml`,
	RunE: runStatus,
}

var statusConfigPath string

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	statusCmd.MarkFlagRequired("config")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(statusConfigPath)
	if err != nil {
		return err
	}

	st, err := openState(cfg)
	if err != nil {
		return err
	}
	defer st.jrnl.Close()

	ctx := context.Background()
	exch := buildExchange(cfg)

	positions := st.book.Positions()
	fmt.Printf("Positions: %d / %d\n", len(positions), cfg.Risk.MaxPositions)
	symbols := make([]string, 0, len(positions))
	for sym := range positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		pos := positions[sym]
		line := fmt.Sprintf("  %-6s %.6f @ %.0f (invested %.0f, peak %+.2f%%",
			sym, pos.Quantity, pos.AvgPrice, pos.Invested, pos.PeakProfitPct)
		if tick, err := exch.Ticker(ctx, sym); err == nil {
			line += fmt.Sprintf(", now %+.2f%%", pos.ProfitPct(tick.Price))
		}
		line += ")"
		if pos.PartialTaken {
			line += " [partial taken]"
		}
		fmt.Println(line)
	}

	active := st.guard.Active()
	if len(active) > 0 {
		fmt.Println("\nCooldowns:")
		cooled := make([]string, 0, len(active))
		for sym := range active {
			cooled = append(cooled, sym)
		}
		sort.Strings(cooled)
		for _, sym := range cooled {
			fmt.Printf("  %-6s until %s\n", sym, active[sym].Format(time.RFC3339))
		}
	}

	if dec, ok, err := advisor.LoadDecision(statePath(cfg, cfg.State.DecisionFile)); err == nil && ok {
		age := time.Since(dec.Time).Round(time.Minute)
		fmt.Printf("\nAdvisor: %s, target cash %.0f%% (%s, %s ago)\n",
			dec.Stance, dec.TargetCash*100, dec.RiskLevel, age)
	}

	if hist, err := openHistory(cfg); err == nil {
		stats := hist.Stats()
		if stats.Verified > 0 {
			fmt.Printf("Advisor accuracy: %.1f%% over %d graded calls\n",
				stats.AccuracyPct, stats.Verified)
		}
		if recent := hist.Recent(5); len(recent) > 0 {
			fmt.Println("Recent advisor calls:")
			for _, r := range recent {
				fmt.Printf("  %s %-8s target cash %.0f%% -> %s\n",
					r.Time.Format("01-02 15:04"), r.Stance, r.TargetCash*100, r.Outcome)
			}
		}
	}

	end := time.Now()
	sum, err := st.jrnl.Summarize(end.AddDate(0, 0, -30), end)
	if err != nil {
		return fmt.Errorf("summarize journal: %w", err)
	}
	fmt.Printf("\nLast 30 days: %d trades, %d sells (%d wins / %d losses, %.1f%% win rate), fees %.0f\n",
		sum.Trades, sum.Sells, sum.Wins, sum.Losses, sum.WinRate, sum.TotalFee)

	if eq, err := st.jrnl.LatestEquity(); err == nil {
		fmt.Printf("Equity: %.0f (cash %.0f + holdings %.0f) at %s\n",
			eq.Total, eq.Cash, eq.HoldingsValue, eq.Time.Format(time.RFC3339))
	}
	return nil
}
