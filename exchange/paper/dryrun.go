package paper

import (
	"context"

	"github.com/rustyeddy/trendbot/exchange"
	"github.com/rustyeddy/trendbot/market"
)

// DryRun trades on paper against live market data. Tickers and candles
// come from the feed, usually a real exchange's public endpoints, while
// balances and orders stay inside the in-memory engine. Every ticker
// fetch refreshes the engine's fill price for that symbol.
type DryRun struct {
	feed exchange.Exchange
	eng  *Engine
}

// NewDryRun wraps feed with a paper engine holding cash quote currency.
func NewDryRun(feed exchange.Exchange, cash, feeRate float64) *DryRun {
	return &DryRun{feed: feed, eng: NewEngine(cash, feeRate)}
}

// Engine exposes the underlying paper engine for inspection.
func (d *DryRun) Engine() *Engine { return d.eng }

func (d *DryRun) Ticker(ctx context.Context, symbol string) (market.Ticker, error) {
	tick, err := d.feed.Ticker(ctx, symbol)
	if err != nil {
		return market.Ticker{}, err
	}
	d.eng.SetPrice(symbol, tick.Price)
	return tick, nil
}

func (d *DryRun) Candles(ctx context.Context, symbol string, iv market.Interval, count int) (*market.CandleSet, error) {
	return d.feed.Candles(ctx, symbol, iv, count)
}

func (d *DryRun) Balance(ctx context.Context) (exchange.Balance, error) {
	return d.eng.Balance(ctx)
}

func (d *DryRun) MarketBuy(ctx context.Context, symbol string, units float64) (exchange.Order, error) {
	return d.eng.MarketBuy(ctx, symbol, units)
}

func (d *DryRun) MarketSell(ctx context.Context, symbol string, units float64) (exchange.Order, error) {
	return d.eng.MarketSell(ctx, symbol, units)
}

func (d *DryRun) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return d.eng.CancelOrder(ctx, symbol, orderID)
}

var _ exchange.Exchange = (*DryRun)(nil)
