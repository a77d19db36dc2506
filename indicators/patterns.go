package indicators

import "github.com/rustyeddy/trendbot/market"

// BullishCandle reports whether the last candle is either a strong body
// candle (body over half the range) closing up, or a hammer (lower shadow
// at least twice the body).
func BullishCandle(candles []market.Candle) bool {
	if len(candles) == 0 {
		return false
	}
	c := candles[len(candles)-1]

	if c.Bullish() && c.Range() > 0 && c.Body() > c.Range()*0.5 {
		return true
	}
	return c.Body() > 0 && c.LowerShadow() > c.Body()*2
}

// Hammer reports whether the candle has a lower shadow at least twice the
// body and a small upper shadow.
func Hammer(c market.Candle) bool {
	body := c.Body()
	return body > 0 && c.LowerShadow() > body*2 && c.UpperShadow() < body*0.5
}

// InvertedHammer reports whether the candle has an upper shadow at least
// twice the body and a small lower shadow.
func InvertedHammer(c market.Candle) bool {
	body := c.Body()
	return body > 0 && c.UpperShadow() > body*2 && c.LowerShadow() < body*0.5
}

// Doji reports whether the candle body is at most a tenth of its range.
func Doji(c market.Candle) bool {
	r := c.Range()
	return r > 0 && c.Body() <= r*0.1
}

// MorningStar reports whether the last three candles form a morning star:
// a large bearish candle, a small-bodied candle, then a large bullish one.
func MorningStar(candles []market.Candle) bool {
	if len(candles) < 3 {
		return false
	}
	first := candles[len(candles)-3]
	second := candles[len(candles)-2]
	third := candles[len(candles)-1]

	firstBearish := !first.Bullish() && first.Range() > 0 && first.Body() > first.Range()*0.6
	secondSmall := second.Body() < first.Body()*0.5
	thirdBullish := third.Bullish() && third.Range() > 0 && third.Body() > third.Range()*0.6

	return firstBearish && secondSmall && thirdBullish
}

// ReversalPattern reports whether the tail of the series shows any bullish
// reversal shape: hammer, inverted hammer, doji or morning star.
func ReversalPattern(candles []market.Candle) bool {
	if len(candles) == 0 {
		return false
	}
	last := candles[len(candles)-1]
	return Hammer(last) || InvertedHammer(last) || Doji(last) || MorningStar(candles)
}

// ConsecutiveDrops reports whether the close fell on each of the last n
// candle-to-candle steps.
func ConsecutiveDrops(candles []market.Candle, n int) bool {
	if len(candles) < n+1 {
		return false
	}
	for i := len(candles) - n; i < len(candles); i++ {
		if candles[i].Close >= candles[i-1].Close {
			return false
		}
	}
	return true
}

// DeclineSlowing reports whether successive drops over the last n steps are
// shrinking, a hint that a downtrend is losing speed.
func DeclineSlowing(candles []market.Candle, n int) bool {
	if len(candles) < n+1 {
		return false
	}
	prevDrop := 0.0
	havePrev := false
	for i := len(candles) - n; i < len(candles); i++ {
		before := candles[i-1].Close
		if before == 0 {
			return false
		}
		drop := (before - candles[i].Close) / before
		if havePrev && drop >= prevDrop {
			return false
		}
		prevDrop = drop
		havePrev = true
	}
	return true
}
