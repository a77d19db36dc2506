// Package paper implements exchange.Exchange in memory. It backs dry
// runs, backtests and tests: prices and candles are set by the caller and
// market orders fill instantly at the current price.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/trendbot/exchange"
	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/pkg/id"
)

// Engine is an in-memory exchange. Safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	cash    float64
	feeRate float64
	units   map[string]float64
	prices  map[string]float64
	candles map[string]*market.CandleSet
	orders  []exchange.Order
	now     func() time.Time
}

// NewEngine creates a paper exchange holding the given quote-currency cash.
func NewEngine(cash, feeRate float64) *Engine {
	return &Engine{
		cash:    cash,
		feeRate: feeRate,
		units:   make(map[string]float64),
		prices:  make(map[string]float64),
		candles: make(map[string]*market.CandleSet),
		now:     time.Now,
	}
}

// SetNow swaps the clock, used by backtests to stamp fills.
func (e *Engine) SetNow(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// SetPrice sets the current price for a symbol.
func (e *Engine) SetPrice(symbol string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prices[symbol] = price
}

// SetCandles installs a candle series returned by Candles.
func (e *Engine) SetCandles(cs *market.CandleSet) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.candles[cs.Symbol+"/"+string(cs.Interval)] = cs
}

// Orders returns a copy of every fill so far, oldest first.
func (e *Engine) Orders() []exchange.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]exchange.Order, len(e.orders))
	copy(out, e.orders)
	return out
}

func (e *Engine) Ticker(ctx context.Context, symbol string) (market.Ticker, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	price, ok := e.prices[symbol]
	if !ok {
		return market.Ticker{}, fmt.Errorf("paper: no price for %s", symbol)
	}
	return market.Ticker{Symbol: symbol, Price: price, Time: e.now()}, nil
}

func (e *Engine) Candles(ctx context.Context, symbol string, iv market.Interval, count int) (*market.CandleSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs, ok := e.candles[symbol+"/"+string(iv)]
	if !ok {
		return nil, fmt.Errorf("paper: no candles for %s/%s", symbol, iv)
	}
	if count > 0 && cs.Len() > count {
		return market.NewCandleSet(cs.Symbol, cs.Interval, append([]market.Candle(nil), cs.Tail(count)...)), nil
	}
	return cs, nil
}

func (e *Engine) Balance(ctx context.Context) (exchange.Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	units := make(map[string]float64, len(e.units))
	for sym, u := range e.units {
		if u > 0 {
			units[sym] = u
		}
	}
	return exchange.Balance{Available: e.cash, Units: units}, nil
}

func (e *Engine) MarketBuy(ctx context.Context, symbol string, units float64) (exchange.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	price, ok := e.prices[symbol]
	if !ok {
		return exchange.Order{}, fmt.Errorf("paper: no price for %s", symbol)
	}
	amount := units * price
	fee := amount * e.feeRate
	if amount+fee > e.cash {
		return exchange.Order{}, exchange.ErrInsufficientFunds
	}

	e.cash -= amount + fee
	e.units[symbol] += units

	order := exchange.Order{
		ID:     id.New(),
		Symbol: symbol,
		Side:   exchange.Buy,
		Units:  units,
		Price:  price,
		Fee:    fee,
		Time:   e.now(),
	}
	e.orders = append(e.orders, order)
	return order, nil
}

func (e *Engine) MarketSell(ctx context.Context, symbol string, units float64) (exchange.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	price, ok := e.prices[symbol]
	if !ok {
		return exchange.Order{}, fmt.Errorf("paper: no price for %s", symbol)
	}
	if e.units[symbol] < units {
		return exchange.Order{}, exchange.ErrInsufficientFunds
	}

	amount := units * price
	fee := amount * e.feeRate
	e.cash += amount - fee
	e.units[symbol] -= units

	order := exchange.Order{
		ID:     id.New(),
		Symbol: symbol,
		Side:   exchange.Sell,
		Units:  units,
		Price:  price,
		Fee:    fee,
		Time:   e.now(),
	}
	e.orders = append(e.orders, order)
	return order, nil
}

// CancelOrder always reports not found; paper market orders fill
// immediately.
func (e *Engine) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return exchange.ErrOrderNotFound
}
