package advisor

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/trendbot/exchange"
	"github.com/rustyeddy/trendbot/indicators"
	"github.com/rustyeddy/trendbot/ledger"
	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/regime"
)

// volScale maps the daily-return standard deviation (percent) onto the
// 0-100 volatility index. A 5% daily swing pegs the index.
const volScale = 20.0

// SnapshotBuilder assembles the portfolio and market state the advisor
// reasons over. SentimentDir and FearGreed are optional; a snapshot
// without sentiment inputs is still usable.
type SnapshotBuilder struct {
	Exchange     exchange.Exchange
	Book         *ledger.Ledger
	Benchmark    string
	SentimentDir string
	FearGreed    *FearGreedClient
}

// Build gathers the account balance, open positions, benchmark
// indicators and sentiment inputs into one snapshot.
func (b *SnapshotBuilder) Build(ctx context.Context, r regime.Regime, now time.Time) (Snapshot, error) {
	bal, err := b.Exchange.Balance(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("balance: %w", err)
	}

	snap := Snapshot{
		Time:            now,
		Cash:            bal.Available,
		BenchmarkSymbol: b.Benchmark,
		Regime:          string(r),
	}

	type valued struct {
		view  PositionView
		value float64
	}
	var holdings []valued
	total := bal.Available

	for sym, pos := range b.Book.Positions() {
		tick, err := b.Exchange.Ticker(ctx, sym)
		if err != nil {
			return Snapshot{}, fmt.Errorf("ticker %s: %w", sym, err)
		}
		value := pos.Quantity * tick.Price
		total += value
		holdings = append(holdings, valued{
			view: PositionView{
				Symbol:    sym,
				ProfitPct: pos.ProfitPct(tick.Price),
			},
			value: value,
		})
	}

	snap.TotalValue = total
	if total > 0 {
		snap.CashRatio = bal.Available / total
	}
	for _, h := range holdings {
		if total > 0 {
			h.view.Weight = h.value / total
		}
		snap.Positions = append(snap.Positions, h.view)
	}

	tick, err := b.Exchange.Ticker(ctx, b.Benchmark)
	if err != nil {
		return Snapshot{}, fmt.Errorf("benchmark ticker: %w", err)
	}
	snap.BenchmarkPrice = tick.Price

	// Candle history only feeds the context fields; a snapshot without
	// them is still usable.
	if daily, err := b.Exchange.Candles(ctx, b.Benchmark, market.Interval24h, 30); err == nil {
		if prev, err := daily.At(1); err == nil && prev.Close > 0 {
			snap.BenchmarkChange24h = (tick.Price/prev.Close - 1) * 100
		}
		if vol, err := indicators.Volatility(daily.Candles, 20); err == nil {
			snap.VolatilityIndex = clamp(vol*volScale, 0, 100)
		}
		if ma, err := indicators.MA(daily.Candles, 20); err == nil {
			snap.BenchmarkMA20 = ma
		}
		if rsi, err := indicators.RSI(daily.Candles, 14); err == nil {
			snap.BenchmarkRSI = rsi
		}
	}

	if b.FearGreed != nil {
		if fng, err := b.FearGreed.Fetch(ctx); err == nil {
			snap.FearGreed = fng.Value
			snap.FearGreedLabel = fng.Classification
		}
	}

	if sent, err := LoadSentiment(b.SentimentDir, now); err == nil && len(sent.Sectors) > 0 {
		snap.NewsSectors = len(sent.Sectors)
		snap.NewsNegativeRatio = sent.NegativeRatio
		snap.HighRiskSectors = sent.HighRiskSectors
	}

	return snap, nil
}
