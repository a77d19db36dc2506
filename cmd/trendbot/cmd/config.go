package cmd

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/trendbot/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files for the bot.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  trendbot config init -o trendbot.yaml
  trendbot config validate -f trendbot.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with default settings.

Example:
  trendbot config init -o trendbot.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check if a configuration file is valid and can be loaded.

Example:
  trendbot config validate -f trendbot.yaml`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "trendbot.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nAdd your Bithumb API keys, then run with:")
	fmt.Printf("  trendbot run -f %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("✓ Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Watchlist: %s (benchmark %s)\n", strings.Join(cfg.Watchlist, ", "), cfg.Regime.BenchmarkSymbol)
	fmt.Printf("  Budget: %.0f %s (%.0f%% per position, max %d positions)\n",
		cfg.Risk.TotalBudget, cfg.Exchange.QuoteCurrency,
		cfg.Risk.AllocationRatio*100, cfg.Risk.MaxPositions)
	fmt.Printf("  Exits: target %.1f%%, stop %.1f%%, trailing %.1f%%\n",
		cfg.Risk.ProfitTargetPct, cfg.Risk.StopLossPct, cfg.Risk.TrailingStopPct)
	fmt.Printf("  Advisor: %s %s\n", cfg.Advisor.Provider, cfg.Advisor.Model)
	return nil
}
