package indicators

import (
	"fmt"

	"github.com/rustyeddy/trendbot/market"
)

// MACDResult holds the MACD line, its signal line and the histogram for
// the last candle, plus the previous pair for cross detection.
type MACDResult struct {
	MACD       float64
	Signal     float64
	Histogram  float64
	PrevMACD   float64
	PrevSignal float64
}

// CrossedUp reports whether MACD crossed above its signal line on the most
// recent candle.
func (r MACDResult) CrossedUp() bool {
	return r.PrevMACD < r.PrevSignal && r.MACD > r.Signal
}

// CrossedDown reports whether MACD crossed below its signal line on the
// most recent candle.
func (r MACDResult) CrossedDown() bool {
	return r.PrevMACD > r.PrevSignal && r.MACD < r.Signal
}

// MACD calculates Moving Average Convergence Divergence over closes with
// the given fast/slow/signal periods (typically 12/26/9).
func MACD(candles []market.Candle, fast, slow, signal int) (MACDResult, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return MACDResult{}, fmt.Errorf("periods must be positive, got %d/%d/%d", fast, slow, signal)
	}
	if fast >= slow {
		return MACDResult{}, fmt.Errorf("fast period %d must be below slow period %d", fast, slow)
	}
	need := slow + signal + 1
	if len(candles) < need {
		return MACDResult{}, fmt.Errorf("not enough candles: need %d, got %d", need, len(candles))
	}

	fastSeries := emaSeries(candles, fast)
	slowSeries := emaSeries(candles, slow)

	// MACD line exists once the slow EMA is seeded.
	macdLine := make([]float64, 0, len(candles)-slow+1)
	for i := slow - 1; i < len(candles); i++ {
		macdLine = append(macdLine, fastSeries[i]-slowSeries[i])
	}

	signalLine := emaOver(macdLine, signal)

	n := len(macdLine)
	return MACDResult{
		MACD:       macdLine[n-1],
		Signal:     signalLine[n-1],
		Histogram:  macdLine[n-1] - signalLine[n-1],
		PrevMACD:   macdLine[n-2],
		PrevSignal: signalLine[n-2],
	}, nil
}

// emaSeries returns the EMA of closes at every index; entries before the
// seed index hold the running SMA.
func emaSeries(candles []market.Candle, period int) []float64 {
	out := make([]float64, len(candles))
	multiplier := 2.0 / float64(period+1)

	sum := 0.0
	for i, c := range candles {
		if i < period {
			sum += c.Close
			out[i] = sum / float64(i+1)
			continue
		}
		out[i] = (c.Close-out[i-1])*multiplier + out[i-1]
	}
	return out
}

func emaOver(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	multiplier := 2.0 / float64(period+1)

	sum := 0.0
	for i, v := range values {
		if i < period {
			sum += v
			out[i] = sum / float64(i+1)
			continue
		}
		out[i] = (v-out[i-1])*multiplier + out[i-1]
	}
	return out
}
