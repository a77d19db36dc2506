package indicators

import (
	"math"

	"github.com/rustyeddy/trendbot/market"
)

// Bands holds Bollinger band levels for the last candle.
type Bands struct {
	Middle float64
	Upper  float64
	Lower  float64
}

// Bollinger calculates Bollinger bands over closes: a period-SMA middle
// band with upper/lower bands numStd standard deviations away.
func Bollinger(candles []market.Candle, period int, numStd float64) (Bands, error) {
	middle, err := MA(candles, period)
	if err != nil {
		return Bands{}, err
	}

	variance := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		d := candles[i].Close - middle
		variance += d * d
	}
	std := math.Sqrt(variance / float64(period))

	return Bands{
		Middle: middle,
		Upper:  middle + numStd*std,
		Lower:  middle - numStd*std,
	}, nil
}

// NearLower reports whether price is at or below the lower band with the
// given tolerance (0.01 allows 1% above the band).
func (b Bands) NearLower(price, tolerance float64) bool {
	return price <= b.Lower*(1+tolerance)
}
