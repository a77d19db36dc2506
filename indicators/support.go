package indicators

import (
	"github.com/rustyeddy/trendbot/market"
)

// Levels holds detected support and resistance prices.
type Levels struct {
	Support    float64
	Resistance float64
}

// SupportResistance scans the last period candles for the lowest low and
// highest high, the simple support/resistance estimate the buy scorer uses.
func SupportResistance(candles []market.Candle, period int) (Levels, error) {
	if err := checkPeriod(candles, period, period); err != nil {
		return Levels{}, err
	}

	window := candles[len(candles)-period:]
	lv := Levels{Support: window[0].Low, Resistance: window[0].High}
	for _, c := range window[1:] {
		if c.Low < lv.Support {
			lv.Support = c.Low
		}
		if c.High > lv.Resistance {
			lv.Resistance = c.High
		}
	}
	return lv, nil
}

// NearSupport reports whether price sits within tolerance above the support
// level (0.03 allows 3%).
func (lv Levels) NearSupport(price, tolerance float64) bool {
	return price <= lv.Support*(1+tolerance)
}
