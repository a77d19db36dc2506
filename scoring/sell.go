package scoring

import (
	"fmt"

	"github.com/rustyeddy/trendbot/guard"
	"github.com/rustyeddy/trendbot/indicators"
	"github.com/rustyeddy/trendbot/ledger"
	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/regime"
)

// SellDecision is the outcome of evaluating an open position for exit.
type SellDecision struct {
	Sell    bool
	Partial bool
	Kind    guard.SellKind
	Reason  string
}

func hold() SellDecision { return SellDecision{} }

func sellAll(kind guard.SellKind, reason string) SellDecision {
	return SellDecision{Sell: true, Kind: kind, Reason: reason}
}

// EvaluateSell runs the exit rules for one position in priority order.
// Hard stops fire regardless of indicators; indicator exits mostly
// require the position to be in profit so a dip is not sold at a loss
// twice over.
func (a *Analyzer) EvaluateSell(pos ledger.Position, daily *market.CandleSet, price float64, params regime.Params, current regime.Regime) SellDecision {
	profit := pos.ProfitPct(price)
	risk := a.cfg.Risk

	// 1. Hard stop loss.
	if profit <= pos.StopLossPct {
		return sellAll(guard.SellStopLoss, fmt.Sprintf("stop loss %.2f%% <= %.2f%%", profit, pos.StopLossPct))
	}

	// 2. Trailing stop, armed once the price has run up.
	if pos.TrailingStop > 0 && price <= pos.TrailingStop {
		kind := guard.SellProfitTaking
		if profit <= 0 {
			kind = guard.SellStopLoss
		}
		return sellAll(kind, fmt.Sprintf("trailing stop hit at %.0f (peak %.0f)", pos.TrailingStop, pos.HighestPrice))
	}

	// 3. ATR-derived dynamic stop.
	if pos.DynamicStop > 0 && price <= pos.DynamicStop {
		kind := guard.SellProfitTaking
		if profit <= 0 {
			kind = guard.SellStopLoss
		}
		return sellAll(kind, fmt.Sprintf("atr stop hit at %.0f", pos.DynamicStop))
	}

	// 4. Profit target, with an optional partial sell on the way up.
	if profit >= pos.ProfitTargetPct {
		return sellAll(guard.SellProfitTaking, fmt.Sprintf("profit target %.2f%% >= %.2f%%", profit, pos.ProfitTargetPct))
	}
	if risk.UsePartialProfit && !pos.PartialTaken && profit >= risk.PartialProfitPct {
		return SellDecision{
			Sell:    true,
			Partial: true,
			Kind:    guard.SellProfitTaking,
			Reason:  fmt.Sprintf("partial profit %.2f%% >= %.2f%%", profit, risk.PartialProfitPct),
		}
	}

	if daily == nil || daily.Len() == 0 {
		return hold()
	}
	candles := daily.Candles

	// 5. Overbought reading while in profit.
	if rsi, err := indicators.RSI(candles, a.cfg.Scoring.RSIPeriod); err == nil {
		if indicators.Overbought(rsi, params.RSIOverbought) && profit > 0 {
			return sellAll(guard.SellProfitTaking, fmt.Sprintf("rsi %.1f overbought", rsi))
		}
	}

	// 6. Death cross ends the trade outside of an uptrend.
	if current != regime.Uptrend {
		if dc, err := indicators.DeathCross(candles, a.cfg.Regime.ShortMA, a.cfg.Regime.MidMA); err == nil && dc {
			kind := guard.SellProfitTaking
			if profit <= 0 {
				kind = guard.SellStopLoss
			}
			return sellAll(kind, "death cross")
		}
	}

	// 7. MACD rolling over. In an uptrend only take it once most of the
	// target is already banked, so ordinary pullbacks keep riding.
	if macd, err := indicators.MACD(candles, a.cfg.Scoring.MACDFast, a.cfg.Scoring.MACDSlow, a.cfg.Scoring.MACDSignal); err == nil && macd.CrossedDown() {
		if current == regime.Uptrend {
			if profit >= 0.7*pos.ProfitTargetPct {
				return sellAll(guard.SellProfitTaking, fmt.Sprintf("macd down with %.2f%% banked", profit))
			}
		} else if profit > 0 {
			return sellAll(guard.SellProfitTaking, "macd down")
		}
	}

	// 8. Regime shifted against the entry thesis.
	entry := regime.Regime(pos.EntryRegime)
	if entry == regime.Uptrend && current != regime.Uptrend && profit > 0 {
		return sellAll(guard.SellProfitTaking, fmt.Sprintf("uptrend entry, regime now %s", current))
	}
	if entry == regime.Sideways && current == regime.Downtrend && profit >= 0.5*pos.ProfitTargetPct {
		return sellAll(guard.SellProfitTaking, "downtrend onset, banking gains")
	}

	return hold()
}

// UpdateTrailing recomputes the trailing and ATR stops for a position
// after a price tick, returning the updated copy. The trailing stop only
// ratchets up.
func (a *Analyzer) UpdateTrailing(pos ledger.Position, price float64, params regime.Params, daily *market.CandleSet) ledger.Position {
	if price > pos.HighestPrice {
		pos.HighestPrice = price
	}
	if profit := pos.ProfitPct(price); profit > pos.PeakProfitPct {
		pos.PeakProfitPct = profit
	}

	// Arm the trailing stop once the position has moved into profit.
	if pos.HighestPrice > pos.AvgPrice {
		stop := pos.HighestPrice * (1 - params.TrailingStopPct/100)
		if stop > pos.TrailingStop {
			pos.TrailingStop = stop
		}
	}

	if daily != nil {
		if atr, err := indicators.ATR(daily.Candles, a.cfg.Risk.ATRPeriod); err == nil {
			stop := indicators.StopFromATR(pos.HighestPrice, atr, a.cfg.Risk.ATRMultiplier)
			if stop > pos.DynamicStop {
				pos.DynamicStop = stop
			}
		}
	}
	return pos
}
