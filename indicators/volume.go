package indicators

import (
	"fmt"

	"github.com/rustyeddy/trendbot/market"
)

// VolumeRatio returns the last candle's volume divided by the average
// volume of the lookback candles before it.
func VolumeRatio(candles []market.Candle, lookback int) (float64, error) {
	if err := checkPeriod(candles, lookback, lookback+1); err != nil {
		return 0, err
	}

	sum := 0.0
	for i := len(candles) - 1 - lookback; i < len(candles)-1; i++ {
		sum += candles[i].Volume
	}
	avg := sum / float64(lookback)
	if avg == 0 {
		return 0, fmt.Errorf("zero average volume over %d candles", lookback)
	}
	return candles[len(candles)-1].Volume / avg, nil
}

// VolumeTrendUp reports whether the average volume of the most recent
// recent candles exceeds the average of the prior previous candles by the
// given ratio (1.1 requires a 10% increase).
func VolumeTrendUp(candles []market.Candle, recent, previous int, ratio float64) (bool, error) {
	need := recent + previous
	if err := checkPeriod(candles, recent, need); err != nil {
		return false, err
	}

	recentSum := 0.0
	for i := len(candles) - recent; i < len(candles); i++ {
		recentSum += candles[i].Volume
	}
	prevSum := 0.0
	for i := len(candles) - need; i < len(candles)-recent; i++ {
		prevSum += candles[i].Volume
	}
	if prevSum == 0 {
		return false, fmt.Errorf("zero volume over prior %d candles", previous)
	}
	return (recentSum/float64(recent)) > (prevSum/float64(previous))*ratio, nil
}
