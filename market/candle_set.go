package market

import (
	"fmt"
	"sort"
	"time"
)

// CandleSet holds a chronologically ordered candle series for one symbol
// and interval. Candles are kept oldest-first so that the last element is
// always the most recent closed candle.
type CandleSet struct {
	Symbol   string
	Interval Interval
	Candles  []Candle
}

// NewCandleSet sorts candles by time and returns the set. Duplicate
// timestamps keep the later entry.
func NewCandleSet(symbol string, iv Interval, candles []Candle) *CandleSet {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})
	out := candles[:0]
	for i, c := range candles {
		if i > 0 && c.Time.Equal(out[len(out)-1].Time) {
			out[len(out)-1] = c
			continue
		}
		out = append(out, c)
	}
	return &CandleSet{Symbol: symbol, Interval: iv, Candles: out}
}

// Len returns the number of candles in the set.
func (cs *CandleSet) Len() int { return len(cs.Candles) }

// Last returns the most recent candle, or an error for an empty set.
func (cs *CandleSet) Last() (Candle, error) {
	if len(cs.Candles) == 0 {
		return Candle{}, fmt.Errorf("candle set %s/%s is empty", cs.Symbol, cs.Interval)
	}
	return cs.Candles[len(cs.Candles)-1], nil
}

// At returns the candle offset back from the end: At(0) is the latest,
// At(1) the one before it.
func (cs *CandleSet) At(back int) (Candle, error) {
	idx := len(cs.Candles) - 1 - back
	if idx < 0 {
		return Candle{}, fmt.Errorf("candle set %s/%s: offset %d exceeds %d candles",
			cs.Symbol, cs.Interval, back, len(cs.Candles))
	}
	return cs.Candles[idx], nil
}

// Tail returns the most recent n candles, fewer if the set is shorter.
func (cs *CandleSet) Tail(n int) []Candle {
	if n >= len(cs.Candles) {
		return cs.Candles
	}
	return cs.Candles[len(cs.Candles)-n:]
}

// Closes returns all close prices, oldest first.
func (cs *CandleSet) Closes() []float64 {
	out := make([]float64, len(cs.Candles))
	for i, c := range cs.Candles {
		out[i] = c.Close
	}
	return out
}

// UpDays counts candles that closed above the previous close within the
// most recent lookback candles.
func (cs *CandleSet) UpDays(lookback int) int {
	candles := cs.Tail(lookback)
	up := 0
	for i := 1; i < len(candles); i++ {
		if candles[i].Close > candles[i-1].Close {
			up++
		}
	}
	return up
}

// Stale reports whether the newest candle is older than maxAge relative
// to now. An empty set is always stale.
func (cs *CandleSet) Stale(now time.Time, maxAge time.Duration) bool {
	if len(cs.Candles) == 0 {
		return true
	}
	return now.Sub(cs.Candles[len(cs.Candles)-1].Time) > maxAge
}
