package bithumb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/trendbot/exchange"
	"github.com/rustyeddy/trendbot/market"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return New(Config{
		BaseURL:        server.URL,
		ConnectKey:     "connect",
		SecretKey:      "secret",
		QuoteCurrency:  "KRW",
		RequestsPerSec: 100,
	})
}

func TestTicker(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/public/ticker/ETH_KRW", r.URL.Path)
		w.Write([]byte(`{
			"status": "0000",
			"data": {
				"closing_price": "4521000",
				"acc_trade_value_24H": "88123456789.12",
				"date": "1717200000000"
			}
		}`))
	})

	tick, err := client.Ticker(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, "ETH", tick.Symbol)
	assert.Equal(t, 4521000.0, tick.Price)
	assert.Equal(t, time.UnixMilli(1717200000000), tick.Time)
}

func TestTickerAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "5100", "message": "Bad Request"}`))
	})

	_, err := client.Ticker(context.Background(), "ETH")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5100")
}

func TestCandles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/public/candlestick/ETH_KRW/24h", r.URL.Path)
		// Bithumb mixes numeric timestamps with string prices.
		w.Write([]byte(`{
			"status": "0000",
			"data": [
				[1717113600000, "4400000", "4450000", "4460000", "4390000", "1200.5"],
				[1717200000000, "4450000", "4521000", "4530000", "4440000", "1350.25"]
			]
		}`))
	})

	cs, err := client.Candles(context.Background(), "ETH", market.Interval24h, 0)
	require.NoError(t, err)
	require.Equal(t, 2, cs.Len())

	last, err := cs.Last()
	require.NoError(t, err)
	assert.Equal(t, 4521000.0, last.Close)
	assert.Equal(t, 4530000.0, last.High)
	assert.Equal(t, 1350.25, last.Volume)
	assert.Equal(t, time.UnixMilli(1717200000000), last.Time)
}

func TestCandlesCountTrims(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": "0000",
			"data": [
				[1717027200000, "1", "1", "1", "1", "1"],
				[1717113600000, "2", "2", "2", "2", "2"],
				[1717200000000, "3", "3", "3", "3", "3"]
			]
		}`))
	})

	cs, err := client.Candles(context.Background(), "ETH", market.Interval24h, 2)
	require.NoError(t, err)
	require.Equal(t, 2, cs.Len())
	assert.Equal(t, []float64{2, 3}, cs.Closes())
}

func TestBalance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/info/balance", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Api-Key"))
		assert.NotEmpty(t, r.Header.Get("Api-Sign"))
		assert.NotEmpty(t, r.Header.Get("Api-Nonce"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/info/balance", r.PostForm.Get("endpoint"))
		assert.Equal(t, "ALL", r.PostForm.Get("currency"))

		w.Write([]byte(`{
			"status": "0000",
			"data": {
				"available_krw": "1500000",
				"in_use_krw": "250000",
				"total_krw": "1750000",
				"total_eth": "1.5",
				"total_xrp": "0"
			}
		}`))
	})

	bal, err := client.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1500000.0, bal.Available)
	assert.Equal(t, 250000.0, bal.InOrders)
	assert.Equal(t, 1.5, bal.Units["ETH"])
	_, held := bal.Units["XRP"]
	assert.False(t, held)
}

func TestBalanceWithoutKeys(t *testing.T) {
	client := New(Config{QuoteCurrency: "KRW", RequestsPerSec: 100})
	_, err := client.Balance(context.Background())
	assert.Error(t, err)
}

func TestMarketBuy(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade/market_buy", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "ETH", r.PostForm.Get("order_currency"))
		assert.Equal(t, "KRW", r.PostForm.Get("payment_currency"))

		w.Write([]byte(`{
			"status": "0000",
			"order_id": "C0101000007408440032",
			"data": [
				{"cont_id": "15313", "units": "0.5", "price": "4500000", "fee": "5625"},
				{"cont_id": "15314", "units": "0.5", "price": "4520000", "fee": "5650"}
			]
		}`))
	})

	order, err := client.MarketBuy(context.Background(), "ETH", 1.0)
	require.NoError(t, err)
	assert.Equal(t, "C0101000007408440032", order.ID)
	assert.Equal(t, exchange.Buy, order.Side)
	assert.Equal(t, 1.0, order.Units)
	assert.InDelta(t, 4510000.0, order.Price, 0.01)
	assert.InDelta(t, 11275.0, order.Fee, 0.01)
}

func TestMarketBuyInsufficientFunds(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "5600", "message": "insufficient balance"}`))
	})

	_, err := client.MarketBuy(context.Background(), "ETH", 100)
	assert.ErrorIs(t, err, exchange.ErrInsufficientFunds)
}

func TestCancelOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade/cancel", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "order-1", r.PostForm.Get("order_id"))
		w.Write([]byte(`{"status": "0000"}`))
	})

	assert.NoError(t, client.CancelOrder(context.Background(), "ETH", "order-1"))
}

func TestCancelOrderNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "5500", "message": "not found"}`))
	})

	err := client.CancelOrder(context.Background(), "ETH", "missing")
	assert.ErrorIs(t, err, exchange.ErrOrderNotFound)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	for i := 0; i < 5; i++ {
		_, err := client.Ticker(context.Background(), "ETH")
		require.Error(t, err)
	}

	// Breaker is now open; the next call fails without reaching the server.
	_, err := client.Ticker(context.Background(), "ETH")
	assert.Error(t, err)
}
