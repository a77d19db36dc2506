// Package exchange defines the broker-facing interface the bot trades
// through, implemented by the Bithumb REST client and the paper engine.
package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/trendbot/market"
)

// ErrInsufficientFunds is returned when an order exceeds the available
// balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrOrderNotFound is returned when cancelling an unknown order.
var ErrOrderNotFound = errors.New("order not found")

// Side is the order direction.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Order describes a fill returned by the exchange.
type Order struct {
	ID     string
	Symbol string
	Side   Side
	Units  float64
	Price  float64 // average fill price
	Fee    float64 // fee in quote currency
	Time   time.Time
}

// Amount returns the order value in quote currency before fees.
func (o Order) Amount() float64 { return o.Units * o.Price }

// Balance is an account snapshot in quote currency plus per-symbol units.
type Balance struct {
	Available float64            // spendable quote currency
	InOrders  float64            // quote currency locked in open orders
	Units     map[string]float64 // coin units held per symbol
}

// Exchange is the minimal surface the bot needs from a spot exchange.
type Exchange interface {
	Ticker(ctx context.Context, symbol string) (market.Ticker, error)
	Candles(ctx context.Context, symbol string, iv market.Interval, count int) (*market.CandleSet, error)
	Balance(ctx context.Context) (Balance, error)
	MarketBuy(ctx context.Context, symbol string, units float64) (Order, error)
	MarketSell(ctx context.Context, symbol string, units float64) (Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}
