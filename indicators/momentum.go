package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/trendbot/market"
)

// Momentum returns the percent change of the close over the last period
// candles.
func Momentum(candles []market.Candle, period int) (float64, error) {
	if err := checkPeriod(candles, period, period+1); err != nil {
		return 0, err
	}
	then := candles[len(candles)-1-period].Close
	if then == 0 {
		return 0, fmt.Errorf("zero close %d candles back", period)
	}
	return (candles[len(candles)-1].Close/then - 1) * 100, nil
}

// MomentumTurningUp reports whether momentum rose on each of the last two
// candles, i.e. the series shows a fresh upturn.
func MomentumTurningUp(candles []market.Candle, period int) (bool, error) {
	if err := checkPeriod(candles, period, period+3); err != nil {
		return false, err
	}
	n := len(candles)
	m2, err := Momentum(candles[:n-2], period)
	if err != nil {
		return false, err
	}
	m1, err := Momentum(candles[:n-1], period)
	if err != nil {
		return false, err
	}
	m0, err := Momentum(candles, period)
	if err != nil {
		return false, err
	}
	return m2 < m1 && m1 < m0, nil
}

// Volatility returns the sample standard deviation of close-to-close
// percent returns over the last period candles, in percent.
func Volatility(candles []market.Candle, period int) (float64, error) {
	if err := checkPeriod(candles, period, period+1); err != nil {
		return 0, err
	}

	returns := make([]float64, 0, period)
	for i := len(candles) - period; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			return 0, fmt.Errorf("zero close at index %d", i-1)
		}
		returns = append(returns, (candles[i].Close/prev-1)*100)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	if len(returns) > 1 {
		variance /= float64(len(returns) - 1)
	}
	return math.Sqrt(variance), nil
}

// Correlation returns the Pearson correlation of close-to-close returns
// between two equally long candle series over the last period candles.
func Correlation(a, b []market.Candle, period int) (float64, error) {
	if err := checkPeriod(a, period, period+1); err != nil {
		return 0, err
	}
	if err := checkPeriod(b, period, period+1); err != nil {
		return 0, err
	}

	ra := tailReturns(a, period)
	rb := tailReturns(b, period)

	meanA, meanB := mean(ra), mean(rb)
	var cov, varA, varB float64
	for i := range ra {
		da, db := ra[i]-meanA, rb[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0, nil
	}
	return cov / math.Sqrt(varA*varB), nil
}

func tailReturns(candles []market.Candle, period int) []float64 {
	out := make([]float64, 0, period)
	for i := len(candles) - period; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, candles[i].Close/prev-1)
	}
	return out
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
