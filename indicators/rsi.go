package indicators

import "github.com/rustyeddy/trendbot/market"

// RSI calculates the Relative Strength Index over close-to-close changes
// using Wilder's smoothing. The result is bounded to [0, 100]; a flat
// series with no losses returns 100.
func RSI(candles []market.Candle, period int) (float64, error) {
	if err := checkPeriod(candles, period, period+1); err != nil {
		return 0, err
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// Oversold reports whether an RSI value is at or below the threshold.
func Oversold(rsi, threshold float64) bool { return rsi <= threshold }

// Overbought reports whether an RSI value is at or above the threshold.
func Overbought(rsi, threshold float64) bool { return rsi >= threshold }
