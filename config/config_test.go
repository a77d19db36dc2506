package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "BTC", cfg.Regime.BenchmarkSymbol)
	assert.Equal(t, 24*time.Hour, cfg.Cooldown.StopLoss)
}

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.yaml")

	data := `
watchlist: [ETH, DOGE]
risk:
  total_budget: 1000000
  allocation_ratio: 0.25
  min_order_amount: 5000
  max_positions: 3
  fee_rate: 0.0025
  profit_target_pct: 4
  stop_loss_pct: -2.5
  trailing_stop_pct: 2
  atr_period: 14
  atr_multiplier: 2
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"ETH", "DOGE"}, cfg.Watchlist)
	assert.Equal(t, 1000000.0, cfg.Risk.TotalBudget)
	assert.Equal(t, 3, cfg.Risk.MaxPositions)
	// Untouched sections keep defaults.
	assert.Equal(t, "BTC", cfg.Regime.BenchmarkSymbol)
	assert.Equal(t, 14, cfg.Scoring.RSIPeriod)
}

func TestLoadFromFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.json")

	cfg := Default()
	cfg.Watchlist = []string{"SOL"}
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"SOL"}, loaded.Watchlist)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty watchlist", func(c *Config) { c.Watchlist = nil }},
		{"zero budget", func(c *Config) { c.Risk.TotalBudget = 0 }},
		{"allocation over one", func(c *Config) { c.Risk.AllocationRatio = 1.5 }},
		{"positive stop loss", func(c *Config) { c.Risk.StopLossPct = 2 }},
		{"allocation cap below ratio", func(c *Config) { c.Risk.MaxAllocationRatio = 0.1 }},
		{"zero uptrend scale", func(c *Config) { c.Regime.UptrendAllocationScale = 0 }},
		{"ma ordering", func(c *Config) { c.Regime.ShortMA = 60 }},
		{"rsi thresholds", func(c *Config) { c.Scoring.RSIOversold = 80 }},
		{"drawdown ordering", func(c *Config) { c.Protection.FullDrawdown = 1.0 }},
		{"cash ratio", func(c *Config) { c.Advisor.MaxCashRatio = 0 }},
		{"missing state dir", func(c *Config) { c.State.Dir = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
