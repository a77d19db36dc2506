// Package backtest replays historical daily candles through the scoring
// and exit rules, simulating the trading loop bar by bar with a cash
// balance instead of a live exchange.
package backtest

import (
	"fmt"
	"time"

	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/guard"
	"github.com/rustyeddy/trendbot/ledger"
	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/regime"
	"github.com/rustyeddy/trendbot/scoring"
)

// Trade records one closed (or partially closed) position during a run.
type Trade struct {
	Symbol     string
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Units      float64
	ProfitPct  float64
	PnL        float64 // quote currency, after fees
	Reason     string
}

// Result summarizes a completed run.
type Result struct {
	StartBalance   float64
	FinalBalance   float64 // cash after the last bar
	HoldingsValue  float64 // open positions marked at the last close
	Equity         float64 // cash + holdings
	ReturnPct      float64
	Trades         int
	Wins           int
	Losses         int
	MaxDrawdownPct float64
	Start          time.Time
	End            time.Time

	Closed []Trade
}

// Options controls runner behavior.
type Options struct {
	// Bars to skip before trading so indicators have history.
	Warmup int
	// If true, liquidate open positions at the final close.
	CloseEnd bool
}

// Runner walks the benchmark timeline and applies the regime, scoring,
// and sell rules each bar. Symbol candles are aligned to the benchmark
// by timestamp, so sets with missing days simply trade on stale closes.
type Runner struct {
	cfg       *config.Config
	analyzer  *scoring.Analyzer
	benchmark *market.CandleSet
	symbols   map[string]*market.CandleSet
	opts      Options

	balance   float64
	positions map[string]ledger.Position
	blocked   map[string]time.Time
	closed    []Trade
	wins      int
	losses    int
}

// NewRunner prepares a run over the given benchmark and per-symbol daily
// candle sets. The starting balance is the configured total budget.
func NewRunner(cfg *config.Config, benchmark *market.CandleSet, symbols map[string]*market.CandleSet, opts Options) (*Runner, error) {
	if benchmark == nil || benchmark.Len() == 0 {
		return nil, fmt.Errorf("backtest: benchmark candles required")
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("backtest: at least one symbol candle set required")
	}
	if opts.Warmup <= 0 {
		opts.Warmup = cfg.Regime.LongMA + 1
	}
	if opts.Warmup >= benchmark.Len() {
		return nil, fmt.Errorf("backtest: warmup %d exceeds benchmark history %d", opts.Warmup, benchmark.Len())
	}
	return &Runner{
		cfg:       cfg,
		analyzer:  scoring.New(cfg),
		benchmark: benchmark,
		symbols:   symbols,
		opts:      opts,
		balance:   cfg.Risk.TotalBudget,
		positions: make(map[string]ledger.Position),
		blocked:   make(map[string]time.Time),
	}, nil
}

// Run replays every bar after warmup and returns the summary.
func (r *Runner) Run() (Result, error) {
	start := r.cfg.Risk.TotalBudget
	peak := start
	maxDD := 0.0

	var barTime time.Time
	for i := r.opts.Warmup; i < r.benchmark.Len(); i++ {
		benchWin := window(r.benchmark, i+1)
		barTime = r.benchmark.Candles[i].Time

		current := regime.Detect(r.cfg.Regime, benchWin)
		params := regime.Adjust(r.cfg, current)

		r.sellPass(barTime, params, current)
		r.buyPass(barTime, benchWin, params)

		equity := r.balance + r.holdingsValue(barTime)
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}

	if r.opts.CloseEnd {
		for symbol := range r.positions {
			if price, ok := r.closeAt(symbol, barTime); ok {
				r.closePosition(symbol, barTime, price, 1.0, "end of data")
			}
		}
	}

	holdings := r.holdingsValue(barTime)
	equity := r.balance + holdings
	res := Result{
		StartBalance:   start,
		FinalBalance:   r.balance,
		HoldingsValue:  holdings,
		Equity:         equity,
		ReturnPct:      (equity - start) / start * 100,
		Trades:         len(r.closed),
		Wins:           r.wins,
		Losses:         r.losses,
		MaxDrawdownPct: maxDD,
		Start:          r.benchmark.Candles[r.opts.Warmup].Time,
		End:            barTime,
		Closed:         r.closed,
	}
	return res, nil
}

func (r *Runner) sellPass(barTime time.Time, params regime.Params, current regime.Regime) {
	for symbol, pos := range r.positions {
		win := r.windowAt(symbol, barTime)
		if win == nil || win.Len() == 0 {
			continue
		}
		price := win.Candles[win.Len()-1].Close

		pos = r.analyzer.UpdateTrailing(pos, price, params, win)
		r.positions[symbol] = pos

		dec := r.analyzer.EvaluateSell(pos, win, price, params, current)
		if !dec.Sell {
			continue
		}

		if dec.Partial {
			r.closePosition(symbol, barTime, price, r.cfg.Risk.PartialProfitRatio, dec.Reason)
			continue
		}
		r.closePosition(symbol, barTime, price, 1.0, dec.Reason)

		cooldown := r.cfg.Cooldown.ProfitTaking
		if dec.Kind == guard.SellStopLoss {
			cooldown = r.cfg.Cooldown.StopLoss
		}
		if r.cfg.Cooldown.PingPong > cooldown {
			cooldown = r.cfg.Cooldown.PingPong
		}
		r.blocked[symbol] = barTime.Add(cooldown)
	}
}

func (r *Runner) buyPass(barTime time.Time, benchmark *market.CandleSet, params regime.Params) {
	capacity := params.MaxPositions - len(r.positions)
	if capacity <= 0 {
		return
	}

	var analyses []scoring.Analysis
	for _, symbol := range r.cfg.Watchlist {
		if _, held := r.positions[symbol]; held {
			continue
		}
		if until, ok := r.blocked[symbol]; ok && barTime.Before(until) {
			continue
		}
		win := r.windowAt(symbol, barTime)
		if win == nil {
			continue
		}
		an, err := r.analyzer.AnalyzeBuy(symbol, win, nil, benchmark, params)
		if err != nil {
			continue
		}
		analyses = append(analyses, an)
	}

	bought := 0
	for _, an := range scoring.RankCandidates(analyses) {
		if bought >= capacity {
			break
		}
		ratio := min(r.cfg.Risk.AllocationRatio*params.AllocationScale, r.cfg.Risk.MaxAllocationRatio)
		allocation := r.cfg.Risk.TotalBudget * ratio
		if allocation > r.balance {
			allocation = r.balance
		}
		if allocation < r.cfg.Risk.MinOrderAmount {
			break
		}

		units := allocation / an.Price
		fee := allocation * r.cfg.Risk.FeeRate
		r.balance -= allocation + fee
		r.positions[an.Symbol] = ledger.Position{
			Symbol:          an.Symbol,
			Quantity:        units,
			AvgPrice:        an.Price,
			Invested:        allocation,
			Fees:            fee,
			BuyTime:         barTime,
			EntryRegime:     string(params.Regime),
			ProfitTargetPct: params.ProfitTargetPct,
			StopLossPct:     params.StopLossPct,
			HighestPrice:    an.Price,
		}
		bought++
	}
}

// closePosition sells ratio of the position at price, books the trade,
// and removes the position when nothing remains.
func (r *Runner) closePosition(symbol string, barTime time.Time, price, ratio float64, reason string) {
	pos, ok := r.positions[symbol]
	if !ok {
		return
	}

	units := pos.Quantity * ratio
	proceeds := units * price
	fee := proceeds * r.cfg.Risk.FeeRate
	r.balance += proceeds - fee

	profitPct := pos.ProfitPct(price)
	cost := pos.Invested * ratio
	r.closed = append(r.closed, Trade{
		Symbol:     symbol,
		EntryTime:  pos.BuyTime,
		ExitTime:   barTime,
		EntryPrice: pos.AvgPrice,
		ExitPrice:  price,
		Units:      units,
		ProfitPct:  profitPct,
		PnL:        proceeds - fee - cost,
		Reason:     reason,
	})
	if profitPct > 0 {
		r.wins++
	} else if profitPct < 0 {
		r.losses++
	}

	if ratio >= 1.0 {
		delete(r.positions, symbol)
		return
	}
	pos.Quantity -= units
	pos.Invested -= cost
	pos.PartialTaken = true
	r.positions[symbol] = pos
}

// windowAt returns the symbol's candles up to and including barTime.
func (r *Runner) windowAt(symbol string, barTime time.Time) *market.CandleSet {
	cs, ok := r.symbols[symbol]
	if !ok {
		return nil
	}
	n := 0
	for n < cs.Len() && !cs.Candles[n].Time.After(barTime) {
		n++
	}
	if n == 0 {
		return nil
	}
	return window(cs, n)
}

// closeAt returns the symbol's last close at or before barTime.
func (r *Runner) closeAt(symbol string, barTime time.Time) (float64, bool) {
	win := r.windowAt(symbol, barTime)
	if win == nil || win.Len() == 0 {
		return 0, false
	}
	return win.Candles[win.Len()-1].Close, true
}

func (r *Runner) holdingsValue(barTime time.Time) float64 {
	total := 0.0
	for symbol, pos := range r.positions {
		if price, ok := r.closeAt(symbol, barTime); ok {
			total += pos.Quantity * price
		} else {
			total += pos.Invested
		}
	}
	return total
}

// window views the first n candles of a set without copying.
func window(cs *market.CandleSet, n int) *market.CandleSet {
	if n > cs.Len() {
		n = cs.Len()
	}
	return &market.CandleSet{Symbol: cs.Symbol, Interval: cs.Interval, Candles: cs.Candles[:n]}
}
