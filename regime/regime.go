// Package regime classifies the market environment from benchmark candles
// and derives the parameter adjustments the bot applies per regime.
package regime

import (
	"fmt"

	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/indicators"
	"github.com/rustyeddy/trendbot/market"
)

// Regime is the detected market environment.
type Regime string

const (
	Uptrend   Regime = "uptrend"
	Downtrend Regime = "downtrend"
	Sideways  Regime = "sideways"
)

// Detect classifies benchmark candles into a regime.
//
// Uptrend: the short MA slope is positive past the configured threshold,
// the mid MA is rising or below the short MA, and the close sits above the
// mid MA. Downtrend: both slopes negative past their thresholds with the
// MAs stacked short < mid < long. Anything else is sideways. Too little
// data also reads as sideways, which keeps the bot on its base
// parameters rather than failing the cycle.
func Detect(cfg config.RegimeConfig, benchmark *market.CandleSet) Regime {
	candles := benchmark.Candles

	shortSlope, err := indicators.MASlope(candles, cfg.ShortMA, cfg.ShortMA)
	if err != nil {
		return Sideways
	}
	midSlope, err := indicators.MASlope(candles, cfg.MidMA, cfg.MidMA)
	if err != nil {
		return Sideways
	}

	shortMA, err := indicators.MA(candles, cfg.ShortMA)
	if err != nil {
		return Sideways
	}
	midMA, err := indicators.MA(candles, cfg.MidMA)
	if err != nil {
		return Sideways
	}

	last, err := benchmark.Last()
	if err != nil {
		return Sideways
	}

	if shortSlope > cfg.UptrendShortSlope &&
		(midSlope > cfg.UptrendMidSlope || shortMA > midMA) &&
		last.Close > midMA {
		return Uptrend
	}

	longMA, err := indicators.MA(candles, cfg.LongMA)
	if err != nil {
		// Not enough history for the long MA; without it a downtrend
		// cannot be confirmed.
		return Sideways
	}
	if shortSlope < cfg.DowntrendShortSlope && midSlope < cfg.DowntrendMidSlope &&
		shortMA < midMA && midMA < longMA {
		return Downtrend
	}

	return Sideways
}

// Params are the risk parameters after regime adjustment.
type Params struct {
	Regime          Regime
	ProfitTargetPct float64
	StopLossPct     float64
	TrailingStopPct float64
	RSIOversold     float64
	RSIOverbought   float64
	MaxPositions    int
	MinScore        float64
	// AllocationScale multiplies the configured allocation ratio when
	// sizing new positions.
	AllocationScale float64
}

// String implements fmt.Stringer for log fields.
func (p Params) String() string {
	return fmt.Sprintf("%s target=%.2f%% stop=%.2f%% trail=%.2f%%",
		p.Regime, p.ProfitTargetPct, p.StopLossPct, p.TrailingStopPct)
}

// Adjust derives regime-specific parameters from the base configuration.
//
// Uptrend widens the profit target and loosens the stop, lets the
// trailing stop ride further, relaxes the RSI oversold gate, allows
// half again as many positions and sizes entries larger. Downtrend
// shrinks the target, tightens the stop and demands deeper oversold
// readings.
func Adjust(cfg *config.Config, r Regime) Params {
	p := Params{
		Regime:          r,
		ProfitTargetPct: cfg.Risk.ProfitTargetPct,
		StopLossPct:     cfg.Risk.StopLossPct,
		TrailingStopPct: cfg.Risk.TrailingStopPct,
		RSIOversold:     cfg.Scoring.RSIOversold,
		RSIOverbought:   cfg.Scoring.RSIOverbought,
		MaxPositions:    cfg.Risk.MaxPositions,
		MinScore:        cfg.Scoring.MinScore,
		AllocationScale: 1,
	}

	switch r {
	case Uptrend:
		p.ProfitTargetPct *= cfg.Regime.UptrendProfitScale
		p.StopLossPct *= cfg.Regime.UptrendStopScale
		p.TrailingStopPct *= cfg.Regime.UptrendTrailingScale
		p.RSIOversold = min(p.RSIOversold+8, 38)
		p.RSIOverbought += 5
		p.MaxPositions = cfg.Risk.MaxPositions * 3 / 2
		p.MinScore = cfg.Scoring.MinScoreUptrend
		p.AllocationScale = cfg.Regime.UptrendAllocationScale
	case Downtrend:
		p.ProfitTargetPct *= cfg.Regime.DowntrendProfitScale
		p.StopLossPct *= cfg.Regime.DowntrendStopScale
		p.RSIOversold = max(p.RSIOversold-5, 20)
	}
	return p
}
