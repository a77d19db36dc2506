// Package scoring turns candle history into buy and sell decisions.
//
// Buys are driven by a weighted composite of daily and intraday signals,
// gated differently per market regime. Sells check exit rules in priority
// order: hard stops first, then trailing and indicator-based exits.
package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/indicators"
	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/regime"
)

// Analyzer scores buy candidates and evaluates exits.
type Analyzer struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analysis is the result of scoring one symbol for entry.
type Analysis struct {
	Symbol string
	Price  float64

	Score         float64
	Signals       []string
	DailyCount    int
	IntradayCount int

	RSI float64
	ATR float64

	Buy    bool
	Reason string
}

// AnalyzeBuy scores symbol's daily and intraday candles against the
// regime-adjusted parameters. The benchmark set may be nil, which skips
// the correlation signal; the intraday set may be nil, which skips the
// intraday confirmation gate.
func (a *Analyzer) AnalyzeBuy(symbol string, daily, intraday, benchmark *market.CandleSet, params regime.Params) (Analysis, error) {
	sc := a.cfg.Scoring
	out := Analysis{Symbol: symbol}

	if daily == nil || daily.Len() < sc.BollingerPeriod+1 {
		return out, fmt.Errorf("%s: not enough daily history", symbol)
	}
	candles := daily.Candles
	out.Price = candles[len(candles)-1].Close

	rsi, err := indicators.RSI(candles, sc.RSIPeriod)
	if err != nil {
		return out, fmt.Errorf("%s rsi: %w", symbol, err)
	}
	out.RSI = rsi

	if atr, err := indicators.ATR(candles, a.cfg.Risk.ATRPeriod); err == nil {
		out.ATR = atr
	}

	w := sc.Weights
	add := func(name string, weight float64) {
		out.Score += weight
		out.Signals = append(out.Signals, name)
		out.DailyCount++
	}

	rsiOversold := indicators.Oversold(rsi, params.RSIOversold)
	if rsiOversold {
		add("rsi_oversold", w.RSIOversold)
	}

	goldenCross := false
	if gc, err := indicators.GoldenCross(candles, a.cfg.Regime.ShortMA, a.cfg.Regime.MidMA); err == nil && gc {
		goldenCross = true
		add("golden_cross", w.GoldenCross)
	}

	if macd, err := indicators.MACD(candles, sc.MACDFast, sc.MACDSlow, sc.MACDSignal); err == nil && macd.CrossedUp() {
		add("macd_cross_up", w.MACDCrossUp)
	}

	if bands, err := indicators.Bollinger(candles, sc.BollingerPeriod, sc.BollingerStd); err == nil &&
		bands.NearLower(out.Price, sc.SupportTolerance) {
		add("near_lower_band", w.NearLowerBand)
	}

	if up, err := indicators.MomentumTurningUp(candles, sc.MomentumPeriod); err == nil && up {
		add("momentum_turn", w.MomentumTurn)
	}

	if levels, err := indicators.SupportResistance(candles, sc.SupportPeriod); err == nil &&
		levels.NearSupport(out.Price, sc.SupportTolerance) {
		add("near_support", w.NearSupport)
	}

	volumeRatio := 0.0
	if vr, err := indicators.VolumeRatio(candles, sc.VolumeLookback); err == nil {
		volumeRatio = vr
		if vr >= sc.VolumeSurgeRatio {
			add("volume_surge", w.VolumeSurge)
		}
	}

	if indicators.BullishCandle(candles) {
		add("bullish_candle", w.BullishCandle)
	}

	// Three straight down closes mark a stretched decline where a
	// bounce becomes likely.
	if indicators.ConsecutiveDrops(candles, 3) {
		add("consecutive_drop", w.ConsecutiveDrop)
	}

	// Trend-following signals only count while the market is already
	// trending up; elsewhere the scorer hunts washouts, not strength.
	if params.Regime == regime.Uptrend {
		shortMA, serr := indicators.MA(candles, a.cfg.Regime.ShortMA)
		midMA, merr := indicators.MA(candles, a.cfg.Regime.MidMA)
		if serr == nil && merr == nil && shortMA > midMA {
			add("ma_alignment", w.MAAlignment)
		}
		if daily.UpDays(3) == 2 {
			add("price_uptrend", w.PriceUptrend)
		}
		if up, err := indicators.VolumeTrendUp(candles, 5, 5, 1.1); err == nil && up {
			add("volume_trend", w.VolumeTrend)
		}
	}

	if benchmark != nil {
		if corr, err := indicators.Correlation(candles, benchmark.Candles, sc.CorrelationPeriod); err == nil && corr > 0.5 {
			if bmUp, err := indicators.MomentumTurningUp(benchmark.Candles, sc.MomentumPeriod); err == nil && bmUp {
				out.Score += w.BTCCorrelation
				out.Signals = append(out.Signals, "benchmark_momentum")
			}
		}
	}

	// Intraday confirmation on the shorter timeframe.
	if intraday != nil && intraday.Len() >= sc.MACDSlow+sc.MACDSignal {
		ic := intraday.Candles
		if irsi, err := indicators.RSI(ic, sc.RSIPeriod); err == nil && indicators.Oversold(irsi, params.RSIOversold+5) {
			out.Score += w.IntradayRSI
			out.Signals = append(out.Signals, "intraday_rsi")
			out.IntradayCount++
		}
		if imacd, err := indicators.MACD(ic, sc.MACDFast, sc.MACDSlow, sc.MACDSignal); err == nil && imacd.CrossedUp() {
			out.Score += w.IntradayMACD
			out.Signals = append(out.Signals, "intraday_macd")
			out.IntradayCount++
		}
		if indicators.BullishCandle(ic) {
			out.IntradayCount++
		}
	}

	out.Buy, out.Reason = a.gate(out, params, rsiOversold, goldenCross, volumeRatio, candles, intraday != nil)
	return out, nil
}

// gate applies the per-regime entry rules to a scored analysis.
func (a *Analyzer) gate(out Analysis, params regime.Params, rsiOversold, goldenCross bool, volumeRatio float64, candles []market.Candle, haveIntraday bool) (bool, string) {
	sc := a.cfg.Scoring

	switch params.Regime {
	case regime.Uptrend:
		// Trending markets reward early entries: one strong signal or a
		// modest composite is enough.
		if out.Score < params.MinScore && !goldenCross {
			return false, fmt.Sprintf("score %.1f below %.1f", out.Score, params.MinScore)
		}
		if haveIntraday && out.IntradayCount < 1 {
			return false, "no intraday confirmation"
		}
		return true, strings.Join(out.Signals, "+")

	case regime.Downtrend:
		// Falling markets demand a deep oversold reading plus evidence
		// the decline is exhausting before any entry.
		if !rsiOversold || out.RSI > params.RSIOversold-3 {
			return false, fmt.Sprintf("rsi %.1f not deep enough for downtrend entry", out.RSI)
		}
		safe := (volumeRatio >= 2*sc.VolumeSurgeRatio) ||
			indicators.ReversalPattern(candles) ||
			indicators.DeclineSlowing(candles, 4)
		if !safe {
			return false, "no reversal evidence in downtrend"
		}
		if out.Score < params.MinScore {
			return false, fmt.Sprintf("score %.1f below %.1f", out.Score, params.MinScore)
		}
		return true, strings.Join(out.Signals, "+")

	default:
		if !rsiOversold {
			return false, fmt.Sprintf("rsi %.1f not oversold", out.RSI)
		}
		if out.DailyCount < sc.MinDailySignals {
			return false, fmt.Sprintf("only %d daily signals", out.DailyCount)
		}
		if out.Score < params.MinScore {
			return false, fmt.Sprintf("score %.1f below %.1f", out.Score, params.MinScore)
		}
		if haveIntraday && out.IntradayCount < sc.MinIntradaySignals {
			return false, fmt.Sprintf("only %d intraday signals", out.IntradayCount)
		}
		return true, strings.Join(out.Signals, "+")
	}
}

// RankCandidates sorts buyable analyses by score, highest first. Ties
// break toward the lower RSI, the more washed-out entry.
func RankCandidates(analyses []Analysis) []Analysis {
	out := make([]Analysis, 0, len(analyses))
	for _, an := range analyses {
		if an.Buy {
			out = append(out, an)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].RSI < out[j].RSI
	})
	return out
}
