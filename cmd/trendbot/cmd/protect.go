package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rustyeddy/trendbot/protect"
	"github.com/spf13/cobra"
)

var protectCmd = &cobra.Command{
	Use:   "protect",
	Short: "Run the profit-protection monitor",
	Long: `Watch open positions at a short interval and sell when profit gives
back too much from its peak.

The monitor arms once a position's peak profit clears the configured minimum,
takes partial profit on the first drawdown threshold, and exits fully on the
second. It runs independently of the trading loop and shares its state files.

Example:
  trendbot protect -f trendbot.yaml`,
	RunE: runProtect,
}

var protectConfigPath string

func init() {
	rootCmd.AddCommand(protectCmd)

	protectCmd.Flags().StringVarP(&protectConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	protectCmd.MarkFlagRequired("config")
}

func runProtect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(protectConfigPath)
	if err != nil {
		return err
	}

	st, err := openState(cfg)
	if err != nil {
		return err
	}
	defer st.jrnl.Close()

	log := newLogger()
	mon := protect.NewMonitor(cfg, buildExchange(cfg), st.book, st.guard, st.jrnl, buildNotifier(cfg), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("interval", cfg.Protection.Interval.String()).
		Float64("partial_drawdown", cfg.Protection.PartialDrawdown).
		Float64("full_drawdown", cfg.Protection.FullDrawdown).
		Msg("starting protection monitor")
	return mon.Run(ctx)
}
