package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/guard"
	"github.com/rustyeddy/trendbot/ledger"
	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/regime"
)

func holdingAt(avg float64) ledger.Position {
	return ledger.Position{
		Symbol:          "ETH",
		Quantity:        1,
		AvgPrice:        avg,
		Invested:        avg,
		EntryRegime:     "sideways",
		ProfitTargetPct: 5.0,
		StopLossPct:     -3.0,
		HighestPrice:    avg,
	}
}

func TestSellStopLoss(t *testing.T) {
	a := New(config.Default())

	d := a.EvaluateSell(holdingAt(100), nil, 96, sidewaysParams(), regime.Sideways)
	assert.True(t, d.Sell)
	assert.False(t, d.Partial)
	assert.Equal(t, guard.SellStopLoss, d.Kind)
	assert.Contains(t, d.Reason, "stop loss")
}

func TestSellTrailingStop(t *testing.T) {
	a := New(config.Default())

	pos := holdingAt(100)
	pos.HighestPrice = 110
	pos.TrailingStop = 107.25

	d := a.EvaluateSell(pos, nil, 106, sidewaysParams(), regime.Sideways)
	assert.True(t, d.Sell)
	assert.Equal(t, guard.SellProfitTaking, d.Kind)
	assert.Contains(t, d.Reason, "trailing stop")
}

func TestSellATRStop(t *testing.T) {
	a := New(config.Default())

	pos := holdingAt(100)
	pos.PartialTaken = true
	pos.DynamicStop = 101

	d := a.EvaluateSell(pos, nil, 100.5, sidewaysParams(), regime.Sideways)
	assert.True(t, d.Sell)
	assert.Equal(t, guard.SellProfitTaking, d.Kind)
	assert.Contains(t, d.Reason, "atr stop")
}

func TestSellProfitTarget(t *testing.T) {
	a := New(config.Default())

	d := a.EvaluateSell(holdingAt(100), nil, 106, sidewaysParams(), regime.Sideways)
	assert.True(t, d.Sell)
	assert.False(t, d.Partial)
	assert.Equal(t, guard.SellProfitTaking, d.Kind)
	assert.Contains(t, d.Reason, "profit target")
}

func TestSellPartialProfit(t *testing.T) {
	a := New(config.Default())

	d := a.EvaluateSell(holdingAt(100), nil, 103.5, sidewaysParams(), regime.Sideways)
	assert.True(t, d.Sell)
	assert.True(t, d.Partial)

	// Once the partial is taken the same profit level holds.
	pos := holdingAt(100)
	pos.PartialTaken = true
	d = a.EvaluateSell(pos, nil, 103.5, sidewaysParams(), regime.Sideways)
	assert.False(t, d.Sell)
}

func TestSellHoldSmallProfit(t *testing.T) {
	a := New(config.Default())

	d := a.EvaluateSell(holdingAt(100), nil, 101, sidewaysParams(), regime.Sideways)
	assert.False(t, d.Sell)
}

func TestSellOverbought(t *testing.T) {
	a := New(config.Default())

	pos := holdingAt(100)
	pos.PartialTaken = true

	// A steady climb pushes RSI to the ceiling while the position sits
	// below its profit target.
	daily := trendSet("ETH", 100, 1.01, 60)
	price := 104.0

	d := a.EvaluateSell(pos, daily, price, sidewaysParams(), regime.Sideways)
	assert.True(t, d.Sell)
	assert.Contains(t, d.Reason, "overbought")
}

func TestSellDeathCross(t *testing.T) {
	a := New(config.Default())

	// Flat history with a collapse bar drags the short MA through the
	// mid MA on the last candle.
	daily := trendSet("ETH", 100, 1.0, 59)
	daily.Candles = append(daily.Candles, lastDrop(daily, 50))

	pos := holdingAt(50.5) // small loss, above the hard stop
	d := a.EvaluateSell(pos, daily, 50, sidewaysParams(), regime.Sideways)
	require.True(t, d.Sell)
	assert.Equal(t, guard.SellStopLoss, d.Kind)
	assert.Contains(t, d.Reason, "death cross")
}

func TestSellUptrendIgnoresEarlyRollover(t *testing.T) {
	a := New(config.Default())

	// Same collapse bar, but in an uptrend the death cross is skipped
	// and the MACD rollover needs most of the target banked first.
	daily := trendSet("ETH", 100, 1.0, 59)
	daily.Candles = append(daily.Candles, lastDrop(daily, 50))

	pos := holdingAt(50.5)
	pos.EntryRegime = string(regime.Uptrend)

	d := a.EvaluateSell(pos, daily, 50, sidewaysParams(), regime.Uptrend)
	assert.False(t, d.Sell)
}

func TestSellRegimeShiftAgainstEntry(t *testing.T) {
	a := New(config.Default())

	// Declining series keeps RSI on the floor and produces no crosses,
	// leaving only the regime-shift rule to fire.
	daily := trendSet("ETH", 1000, 0.985, 60)
	price := daily.Candles[daily.Len()-1].Close

	pos := holdingAt(price / 1.02)
	pos.PartialTaken = true
	pos.EntryRegime = string(regime.Uptrend)

	d := a.EvaluateSell(pos, daily, price, sidewaysParams(), regime.Sideways)
	assert.True(t, d.Sell)
	assert.Contains(t, d.Reason, "regime now sideways")
}

func TestUpdateTrailingRatchets(t *testing.T) {
	a := New(config.Default())
	params := sidewaysParams()

	pos := holdingAt(100)
	pos = a.UpdateTrailing(pos, 110, params, nil)
	assert.Equal(t, 110.0, pos.HighestPrice)
	assert.InDelta(t, 107.25, pos.TrailingStop, 1e-9)
	assert.InDelta(t, 10.0, pos.PeakProfitPct, 1e-9)

	// A pullback never lowers the stop or the peak.
	pos = a.UpdateTrailing(pos, 105, params, nil)
	assert.Equal(t, 110.0, pos.HighestPrice)
	assert.InDelta(t, 107.25, pos.TrailingStop, 1e-9)
	assert.InDelta(t, 10.0, pos.PeakProfitPct, 1e-9)
}

// lastDrop returns a candle continuing set with a hard drop to close.
func lastDrop(set *market.CandleSet, close float64) market.Candle {
	prev := set.Candles[set.Len()-1]
	return market.Candle{
		Time:   prev.Time.AddDate(0, 0, 1),
		Open:   prev.Close,
		High:   prev.Close,
		Low:    close,
		Close:  close,
		Volume: 100,
	}
}
