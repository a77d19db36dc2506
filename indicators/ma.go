package indicators

import (
	"fmt"

	"github.com/rustyeddy/trendbot/market"
)

// MA calculates the Simple Moving Average of closes for the given period,
// ending at the last candle.
func MA(candles []market.Candle, period int) (float64, error) {
	if err := checkPeriod(candles, period, period); err != nil {
		return 0, err
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period), nil
}

// MAAt calculates the Simple Moving Average ending `back` candles before the
// last one. MAAt(c, p, 0) equals MA(c, p).
func MAAt(candles []market.Candle, period, back int) (float64, error) {
	if back < 0 {
		return 0, fmt.Errorf("back must be non-negative, got %d", back)
	}
	end := len(candles) - back
	if err := checkPeriod(candles, period, period+back); err != nil {
		return 0, err
	}
	return MA(candles[:end], period)
}

// MASlope returns the percent change of the period-MA over the last
// lookback candles. A positive value means the average is rising.
func MASlope(candles []market.Candle, period, lookback int) (float64, error) {
	now, err := MA(candles, period)
	if err != nil {
		return 0, err
	}
	then, err := MAAt(candles, period, lookback)
	if err != nil {
		return 0, err
	}
	if then == 0 {
		return 0, fmt.Errorf("zero moving average %d candles back", lookback)
	}
	return (now/then - 1) * 100, nil
}

// GoldenCross reports whether the short MA crossed above the long MA on the
// most recent candle.
func GoldenCross(candles []market.Candle, short, long int) (bool, error) {
	shortPrev, err := MAAt(candles, short, 1)
	if err != nil {
		return false, err
	}
	longPrev, err := MAAt(candles, long, 1)
	if err != nil {
		return false, err
	}
	shortNow, err := MA(candles, short)
	if err != nil {
		return false, err
	}
	longNow, err := MA(candles, long)
	if err != nil {
		return false, err
	}
	return shortPrev <= longPrev && shortNow > longNow, nil
}

// DeathCross reports whether the short MA crossed below the long MA on the
// most recent candle.
func DeathCross(candles []market.Candle, short, long int) (bool, error) {
	shortPrev, err := MAAt(candles, short, 1)
	if err != nil {
		return false, err
	}
	longPrev, err := MAAt(candles, long, 1)
	if err != nil {
		return false, err
	}
	shortNow, err := MA(candles, short)
	if err != nil {
		return false, err
	}
	longNow, err := MA(candles, long)
	if err != nil {
		return false, err
	}
	return shortPrev >= longPrev && shortNow < longNow, nil
}
