package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/trendbot/advisor"
	"github.com/rustyeddy/trendbot/llm"
	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/notify"
	"github.com/rustyeddy/trendbot/regime"
	"github.com/spf13/cobra"
)

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Ask the advisor for a target cash ratio",
	Long: `Grade past advisor calls that are due, build a portfolio snapshot, and
ask the configured LLM for a target cash ratio.

The decision is adjusted for the advisor's track record, written to the state
directory for the trading loop to pick up, and recorded in the decision
history for later grading. If the LLM is unreachable or returns garbage the
advisor falls back to a volatility-based rule.

Example:
  trendbot advise -f trendbot.yaml`,
	RunE: runAdvise,
}

var adviseConfigPath string

func init() {
	rootCmd.AddCommand(adviseCmd)

	adviseCmd.Flags().StringVarP(&adviseConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	adviseCmd.MarkFlagRequired("config")
}

func runAdvise(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(adviseConfigPath)
	if err != nil {
		return err
	}

	st, err := openState(cfg)
	if err != nil {
		return err
	}
	defer st.jrnl.Close()

	hist, err := openHistory(cfg)
	if err != nil {
		return err
	}

	log := newLogger()
	exch := buildExchange(cfg)
	client := llm.NewClient(llm.Config{
		Provider:    llm.Provider(cfg.Advisor.Provider),
		BaseURL:     cfg.Advisor.BaseURL,
		APIKey:      cfg.Advisor.APIKey,
		Model:       cfg.Advisor.Model,
		MaxTokens:   cfg.Advisor.MaxTokens,
		Temperature: cfg.Advisor.Temperature,
		Timeout:     cfg.Advisor.Timeout,
	})
	adv := advisor.New(cfg.Advisor, client, hist, log)

	ctx := context.Background()

	verified, err := adv.Verify(ctx, exch, cfg.Regime.BenchmarkSymbol)
	if err != nil {
		log.Warn().Err(err).Msg("verify past decisions")
	} else if verified > 0 {
		fmt.Printf("Graded %d past decision(s)\n", verified)
	}

	var current regime.Regime = regime.Sideways
	benchmark, err := exch.Candles(ctx, cfg.Regime.BenchmarkSymbol, market.Interval24h, 120)
	if err != nil {
		log.Warn().Err(err).Msg("benchmark candles unavailable, assuming sideways")
	} else {
		current = regime.Detect(cfg.Regime, benchmark)
	}

	builder := advisor.SnapshotBuilder{
		Exchange:     exch,
		Book:         st.book,
		Benchmark:    cfg.Regime.BenchmarkSymbol,
		SentimentDir: cfg.Advisor.SentimentDir,
		FearGreed:    advisor.NewFearGreedClient(cfg.Advisor.FearGreedURL),
	}
	snap, err := builder.Build(ctx, current, time.Now())
	if err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}

	dec, err := adv.Advise(ctx, snap)
	if err != nil {
		return fmt.Errorf("advise: %w", err)
	}

	if err := advisor.SaveDecision(statePath(cfg, cfg.State.DecisionFile), dec); err != nil {
		return fmt.Errorf("save decision: %w", err)
	}

	printDecision(dec)

	buildNotifier(cfg).Send(notify.Event{
		Kind:    notify.KindAdvisor,
		Title:   fmt.Sprintf("Advisor: %s", dec.Stance),
		Message: dec.Summary,
		Fields: map[string]string{
			"target_cash": fmt.Sprintf("%.0f%%", dec.TargetCash*100),
			"risk_level":  dec.RiskLevel,
			"confidence":  fmt.Sprintf("%.2f", dec.Confidence),
			"accuracy":    fmt.Sprintf("%.1f%%", dec.AccuracyPct),
		},
	})
	return nil
}

func printDecision(dec advisor.Decision) {
	fmt.Printf("Stance: %s\n", dec.Stance)
	fmt.Printf("Target cash ratio: %.0f%%\n", dec.TargetCash*100)
	fmt.Printf("Risk level: %s  Confidence: %.2f\n", dec.RiskLevel, dec.Confidence)
	if dec.Fallback {
		fmt.Println("(fallback decision, LLM unavailable)")
	}
	fmt.Printf("Track record: %.1f%% accurate\n", dec.AccuracyPct)
	if len(dec.Reasons) > 0 {
		fmt.Printf("Reasons:\n  - %s\n", strings.Join(dec.Reasons, "\n  - "))
	}
	if dec.Summary != "" {
		fmt.Printf("Summary: %s\n", dec.Summary)
	}
}
