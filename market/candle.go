// Package market defines the core price types shared by the exchange
// adapters, indicators and strategy code.
package market

import "time"

// Interval is a candle timeframe as the exchange reports it.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval10m Interval = "10m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval6h  Interval = "6h"
	Interval24h Interval = "24h"
)

// Duration returns the wall-clock length of one candle.
func (iv Interval) Duration() time.Duration {
	switch iv {
	case Interval1m:
		return time.Minute
	case Interval10m:
		return 10 * time.Minute
	case Interval30m:
		return 30 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval6h:
		return 6 * time.Hour
	case Interval24h:
		return 24 * time.Hour
	}
	return 0
}

// Candle represents OHLCV data for one interval.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Body returns the absolute size of the candle body.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the high-low span.
func (c Candle) Range() float64 { return c.High - c.Low }

// LowerShadow returns the distance from the bottom of the body to the low.
func (c Candle) LowerShadow() float64 {
	if c.Close >= c.Open {
		return c.Open - c.Low
	}
	return c.Close - c.Low
}

// UpperShadow returns the distance from the high to the top of the body.
func (c Candle) UpperShadow() float64 {
	if c.Close >= c.Open {
		return c.High - c.Close
	}
	return c.High - c.Open
}

// Ticker is a point-in-time quote for one symbol.
type Ticker struct {
	Symbol string
	Price  float64
	Volume float64 // rolling 24h volume in quote currency
	Time   time.Time
}
