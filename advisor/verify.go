package advisor

import (
	"context"
	"fmt"
	"math"

	"github.com/rustyeddy/trendbot/exchange"
)

// Grade scores a stance against the market move (percent) observed over
// the verification window.
//
// A defensive call is right when the market actually fell hard and wrong
// when it kept climbing; a reinvestment call is the mirror image. A
// maintain call is right as long as nothing dramatic happened. Moves in
// the gray zone between the thresholds resolve as unclear and stay out
// of the accuracy ratio.
func Grade(stance Stance, movePct float64) Outcome {
	switch stance {
	case StanceDefense:
		if movePct <= -5 {
			return OutcomeCorrect
		}
		if movePct >= 2 {
			return OutcomeIncorrect
		}
		return OutcomeUnclear
	case StanceReinvest:
		if movePct >= 3 {
			return OutcomeCorrect
		}
		if movePct <= -3 {
			return OutcomeIncorrect
		}
		return OutcomeUnclear
	default:
		if math.Abs(movePct) <= 3 {
			return OutcomeCorrect
		}
		return OutcomeIncorrect
	}
}

// Verify grades every due decision against the current benchmark price
// and returns how many records were resolved.
func (a *Advisor) Verify(ctx context.Context, exch exchange.Exchange, benchmarkSymbol string) (int, error) {
	due := a.history.Due(a.now())
	if len(due) == 0 {
		return 0, nil
	}

	tick, err := exch.Ticker(ctx, benchmarkSymbol)
	if err != nil {
		return 0, fmt.Errorf("benchmark ticker: %w", err)
	}

	resolved := 0
	for _, rec := range due {
		if rec.BenchmarkPrice == 0 {
			continue
		}
		move := (tick.Price/rec.BenchmarkPrice - 1) * 100
		outcome := Grade(rec.Stance, move)
		if err := a.history.Resolve(rec.ID, outcome, move, a.now()); err != nil {
			return resolved, err
		}
		resolved++

		a.log.Info().
			Str("record", rec.ID).
			Str("stance", string(rec.Stance)).
			Float64("market_move_pct", move).
			Str("outcome", string(outcome)).
			Msg("advisor decision graded")
	}
	return resolved, nil
}
