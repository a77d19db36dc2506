package protect

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/exchange/paper"
	"github.com/rustyeddy/trendbot/guard"
	"github.com/rustyeddy/trendbot/ledger"
	"github.com/rustyeddy/trendbot/notify"
)

func protCfg() config.ProtectionConfig {
	return config.ProtectionConfig{
		PartialDrawdown: 1.5,
		FullDrawdown:    3.0,
		PartialRatio:    0.5,
		MinPeakProfit:   1.0,
	}
}

func posWithPeak(peak float64, partialTaken bool) ledger.Position {
	return ledger.Position{
		Symbol:        "ETH",
		Quantity:      1,
		AvgPrice:      100,
		PeakProfitPct: peak,
		PartialTaken:  partialTaken,
	}
}

func TestEvaluateNotArmed(t *testing.T) {
	// Peak never reached the arming threshold.
	d := Evaluate(protCfg(), posWithPeak(0.5, false), 100.2)
	assert.Equal(t, Hold, d.Action)
}

func TestEvaluateRunningUp(t *testing.T) {
	// Fresh high means zero drawdown.
	d := Evaluate(protCfg(), posWithPeak(1.0, false), 105)
	assert.Equal(t, Hold, d.Action)
}

func TestEvaluatePartialDrawdown(t *testing.T) {
	// Peak 5%, now 3%: gave back 2%.
	d := Evaluate(protCfg(), posWithPeak(5, false), 103)
	assert.Equal(t, SellPartial, d.Action)
	assert.Contains(t, d.Reason, "gave back")
}

func TestEvaluatePartialAlreadyTaken(t *testing.T) {
	d := Evaluate(protCfg(), posWithPeak(5, true), 103)
	assert.Equal(t, Hold, d.Action)
}

func TestEvaluateFullDrawdown(t *testing.T) {
	// Peak 5%, now 1.5%: gave back 3.5%, past the full threshold.
	d := Evaluate(protCfg(), posWithPeak(5, true), 101.5)
	assert.Equal(t, SellAll, d.Action)
}

func TestEvaluateUsesLivePeak(t *testing.T) {
	// Stored peak is stale but the current price implies a higher one;
	// the higher peak must not trigger a sell on its own tick.
	d := Evaluate(protCfg(), posWithPeak(2, false), 110)
	assert.Equal(t, Hold, d.Action)
}

func newTestMonitor(t *testing.T) (*Monitor, *paper.Engine, *ledger.Ledger, *guard.Guard) {
	t.Helper()
	cfg := config.Default()
	cfg.Protection = protCfg()

	eng := paper.NewEngine(10_000_000, 0.0025)

	dir := t.TempDir()
	book, err := ledger.Open(filepath.Join(dir, "holdings.json"))
	require.NoError(t, err)
	g, err := guard.Open(filepath.Join(dir, "cooldowns.json"), cfg.Cooldown)
	require.NoError(t, err)

	m := NewMonitor(cfg, eng, book, g, nil, nil, zerolog.Nop())
	return m, eng, book, g
}

func TestSweepPartialThenFull(t *testing.T) {
	m, eng, book, g := newTestMonitor(t)
	ctx := context.Background()

	eng.SetPrice("ETH", 100)
	order, err := eng.MarketBuy(ctx, "ETH", 10)
	require.NoError(t, err)
	require.NoError(t, book.OpenPosition(ledger.Position{
		Symbol:   "ETH",
		Quantity: order.Units,
		AvgPrice: order.Price,
		Invested: order.Amount(),
	}))

	// Run-up establishes the peak, nothing sells.
	eng.SetPrice("ETH", 110)
	m.Sweep(ctx)
	pos, ok := book.Get("ETH")
	require.True(t, ok)
	assert.InDelta(t, 10.0, pos.PeakProfitPct, 1e-9)
	assert.Equal(t, 10.0, pos.Quantity)

	// 2% off the peak trims half the position.
	eng.SetPrice("ETH", 108)
	m.Sweep(ctx)
	pos, ok = book.Get("ETH")
	require.True(t, ok)
	assert.InDelta(t, 5.0, pos.Quantity, 1e-9)
	assert.True(t, pos.PartialTaken)

	// 3.5% off the peak closes the rest and starts a cooldown.
	eng.SetPrice("ETH", 106.5)
	m.Sweep(ctx)
	assert.False(t, book.Has("ETH"))

	blocked, reason := g.Blocked("ETH")
	assert.True(t, blocked)
	assert.Contains(t, reason, "profit_taking", "closing in profit uses the shorter cooldown")
}

type downNotifier struct{}

func (downNotifier) Send(notify.Event) error { return errors.New("webhook down") }
func (downNotifier) Name() string            { return "down" }

func TestSweepSellsDespiteNotifyFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Protection = protCfg()

	eng := paper.NewEngine(10_000_000, 0.0025)
	dir := t.TempDir()
	book, err := ledger.Open(filepath.Join(dir, "holdings.json"))
	require.NoError(t, err)
	g, err := guard.Open(filepath.Join(dir, "cooldowns.json"), cfg.Cooldown)
	require.NoError(t, err)

	m := NewMonitor(cfg, eng, book, g, nil, notify.NewManager(downNotifier{}), zerolog.Nop())
	ctx := context.Background()

	eng.SetPrice("ETH", 100)
	order, err := eng.MarketBuy(ctx, "ETH", 10)
	require.NoError(t, err)
	require.NoError(t, book.OpenPosition(ledger.Position{
		Symbol:   "ETH",
		Quantity: order.Units,
		AvgPrice: order.Price,
		Invested: order.Amount(),
	}))

	eng.SetPrice("ETH", 110)
	m.Sweep(ctx)
	eng.SetPrice("ETH", 106)
	m.Sweep(ctx)

	// The webhook being down never blocks the protective exit.
	assert.False(t, book.Has("ETH"))
}

func TestSweepLeavesQuietPositionsAlone(t *testing.T) {
	m, eng, book, _ := newTestMonitor(t)
	ctx := context.Background()

	eng.SetPrice("ETH", 100)
	order, err := eng.MarketBuy(ctx, "ETH", 1)
	require.NoError(t, err)
	require.NoError(t, book.OpenPosition(ledger.Position{
		Symbol:   "ETH",
		Quantity: order.Units,
		AvgPrice: order.Price,
		Invested: order.Amount(),
	}))

	eng.SetPrice("ETH", 100.5)
	m.Sweep(ctx)

	pos, ok := book.Get("ETH")
	require.True(t, ok)
	assert.Equal(t, 1.0, pos.Quantity)
}
