// Package indicators provides technical analysis calculations over candle
// series. All functions take candles oldest-first and return an error when
// the series is too short for the requested period.
package indicators

import (
	"fmt"

	"github.com/rustyeddy/trendbot/market"
)

func checkPeriod(candles []market.Candle, period, need int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < need {
		return fmt.Errorf("not enough candles: need %d, got %d", need, len(candles))
	}
	return nil
}
