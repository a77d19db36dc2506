package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/trendbot/market"
)

func TestHammer(t *testing.T) {
	// Long lower shadow, small body near the top.
	c := market.Candle{Open: 100, High: 101, Low: 90, Close: 100.8}
	assert.True(t, Hammer(c))

	// Big body, no shadow.
	c = market.Candle{Open: 90, High: 100, Low: 90, Close: 100}
	assert.False(t, Hammer(c))
}

func TestInvertedHammer(t *testing.T) {
	c := market.Candle{Open: 100, High: 110, Low: 99.9, Close: 100.5}
	assert.True(t, InvertedHammer(c))
}

func TestDoji(t *testing.T) {
	c := market.Candle{Open: 100, High: 103, Low: 97, Close: 100.2}
	assert.True(t, Doji(c))

	c = market.Candle{Open: 100, High: 103, Low: 97, Close: 102.5}
	assert.False(t, Doji(c))
}

func TestMorningStar(t *testing.T) {
	candles := []market.Candle{
		{Open: 110, High: 111, Low: 99, Close: 100},     // large bearish
		{Open: 100, High: 101, Low: 99, Close: 100.5},   // small body
		{Open: 100.5, High: 111, Low: 100, Close: 110},  // large bullish
	}
	assert.True(t, MorningStar(candles))
	assert.True(t, ReversalPattern(candles))
}

func TestBullishCandle(t *testing.T) {
	strong := []market.Candle{{Open: 100, High: 111, Low: 99, Close: 110}}
	assert.True(t, BullishCandle(strong))

	weak := []market.Candle{{Open: 100, High: 110, Low: 100, Close: 101}}
	assert.False(t, BullishCandle(weak))
}

func TestConsecutiveDrops(t *testing.T) {
	drops := candlesFromCloses(10, 9, 8, 7)
	assert.True(t, ConsecutiveDrops(drops, 3))
	assert.False(t, ConsecutiveDrops(candlesFromCloses(10, 9, 9.5, 7), 3))
	assert.False(t, ConsecutiveDrops(drops, 4)) // not enough candles
}

func TestDeclineSlowing(t *testing.T) {
	// Drops of 10%, 5%, 1% in a row.
	slowing := candlesFromCloses(100, 90, 85.5, 84.6)
	assert.True(t, DeclineSlowing(slowing, 3))

	accelerating := candlesFromCloses(100, 99, 94, 85)
	assert.False(t, DeclineSlowing(accelerating, 3))
}
