package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkCandles(closes ...float64) []Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Candle, len(closes))
	for i, c := range closes {
		out[i] = Candle{Time: base.Add(time.Duration(i) * time.Hour), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func TestNewCandleSetSortsAndDedupes(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := []Candle{
		{Time: base.Add(2 * time.Hour), Close: 3},
		{Time: base, Close: 1},
		{Time: base.Add(time.Hour), Close: 2},
		{Time: base.Add(time.Hour), Close: 2.5}, // duplicate, later wins
	}

	cs := NewCandleSet("BTC", Interval1h, candles)
	require.Equal(t, 3, cs.Len())
	assert.Equal(t, []float64{1, 2.5, 3}, cs.Closes())
}

func TestCandleSetAt(t *testing.T) {
	cs := NewCandleSet("BTC", Interval1h, mkCandles(1, 2, 3))

	last, err := cs.Last()
	require.NoError(t, err)
	assert.Equal(t, 3.0, last.Close)

	prev, err := cs.At(1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, prev.Close)

	_, err = cs.At(3)
	assert.Error(t, err)
}

func TestCandleSetUpDays(t *testing.T) {
	cs := NewCandleSet("BTC", Interval24h, mkCandles(1, 2, 1.5, 2.5, 3))
	// 2>1, 2.5>1.5, 3>2.5 → 3 up within last 5
	assert.Equal(t, 3, cs.UpDays(5))
}

func TestCandleSetStale(t *testing.T) {
	cs := NewCandleSet("BTC", Interval1h, mkCandles(1, 2))
	last, _ := cs.Last()

	assert.False(t, cs.Stale(last.Time.Add(30*time.Minute), time.Hour))
	assert.True(t, cs.Stale(last.Time.Add(2*time.Hour), time.Hour))

	empty := NewCandleSet("BTC", Interval1h, nil)
	assert.True(t, empty.Stale(time.Now(), time.Hour))
}

func TestCandleShape(t *testing.T) {
	c := Candle{Open: 10, High: 12, Low: 7, Close: 11}
	assert.True(t, c.Bullish())
	assert.Equal(t, 1.0, c.Body())
	assert.Equal(t, 5.0, c.Range())
	assert.Equal(t, 3.0, c.LowerShadow())
	assert.Equal(t, 1.0, c.UpperShadow())
}
