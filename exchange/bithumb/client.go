// Package bithumb implements the exchange.Exchange interface against the
// Bithumb public and private REST APIs.
package bithumb

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/trendbot/exchange"
	"github.com/rustyeddy/trendbot/market"
)

// DefaultBaseURL is the production REST endpoint.
const DefaultBaseURL = "https://api.bithumb.com"

const statusOK = "0000"

// Client is a Bithumb REST API client. Public endpoints need no keys;
// balance and order calls require a connect/secret key pair.
type Client struct {
	baseURL    string
	connectKey string
	secretKey  string
	quote      string

	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker

	// now is swappable for nonce generation in tests.
	now func() time.Time
}

// Config carries the client construction parameters.
type Config struct {
	BaseURL        string
	ConnectKey     string
	SecretKey      string
	QuoteCurrency  string  // "KRW"
	RequestsPerSec float64 // public+private combined budget
}

// New creates a Bithumb client with rate limiting and a circuit breaker
// around every request.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	quote := cfg.QuoteCurrency
	if quote == "" {
		quote = "KRW"
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 8
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "bithumb",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		connectKey: cfg.ConnectKey,
		secretKey:  cfg.SecretKey,
		quote:      quote,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)),
		breaker:    breaker,
		now:        time.Now,
	}
}

func (c *Client) pair(symbol string) string {
	return strings.ToUpper(symbol) + "_" + c.quote
}

// apiError carries the exchange status code and message of a failed call.
type apiError struct {
	Status  string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("bithumb status %s: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

func (c *Client) public(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, req)
}

// private signs and posts a form-encoded request to an authenticated
// endpoint. The signature is HMAC-SHA512 over endpoint, query string and
// nonce joined by NUL bytes, hex-encoded then base64-encoded.
func (c *Client) private(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.connectKey == "" || c.secretKey == "" {
		return nil, fmt.Errorf("bithumb: missing API keys for %s", endpoint)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("endpoint", endpoint)
	query := params.Encode()

	nonce := strconv.FormatInt(c.now().UnixMilli(), 10)

	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write([]byte(endpoint + "\x00" + query + "\x00" + nonce))
	sign := base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(mac.Sum(nil))))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(query))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Api-Key", c.connectKey)
	req.Header.Set("Api-Sign", sign)
	req.Header.Set("Api-Nonce", nonce)

	return c.do(ctx, req)
}

type tickerResp struct {
	Status string `json:"status"`
	Data   struct {
		ClosingPrice     string `json:"closing_price"`
		AccTradeValue24H string `json:"acc_trade_value_24H"`
		Date             string `json:"date"`
	} `json:"data"`
	Message string `json:"message"`
}

// Ticker fetches the current quote for one symbol.
func (c *Client) Ticker(ctx context.Context, symbol string) (market.Ticker, error) {
	body, err := c.public(ctx, "/public/ticker/"+c.pair(symbol))
	if err != nil {
		return market.Ticker{}, fmt.Errorf("ticker %s: %w", symbol, err)
	}

	var resp tickerResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return market.Ticker{}, fmt.Errorf("decode ticker %s: %w", symbol, err)
	}
	if resp.Status != statusOK {
		return market.Ticker{}, &apiError{Status: resp.Status, Message: resp.Message}
	}

	price, err := strconv.ParseFloat(resp.Data.ClosingPrice, 64)
	if err != nil {
		return market.Ticker{}, fmt.Errorf("parse ticker price %q: %w", resp.Data.ClosingPrice, err)
	}
	volume, _ := strconv.ParseFloat(resp.Data.AccTradeValue24H, 64)

	ts := c.now()
	if ms, err := strconv.ParseInt(resp.Data.Date, 10, 64); err == nil {
		ts = time.UnixMilli(ms)
	}

	return market.Ticker{Symbol: strings.ToUpper(symbol), Price: price, Volume: volume, Time: ts}, nil
}

type candleResp struct {
	Status  string            `json:"status"`
	Data    []json.RawMessage `json:"data"`
	Message string            `json:"message"`
}

// Candles fetches up to count most recent OHLCV candles for the interval.
// Bithumb returns rows of [timestamp_ms, open, close, high, low, volume].
func (c *Client) Candles(ctx context.Context, symbol string, iv market.Interval, count int) (*market.CandleSet, error) {
	body, err := c.public(ctx, fmt.Sprintf("/public/candlestick/%s/%s", c.pair(symbol), iv))
	if err != nil {
		return nil, fmt.Errorf("candles %s/%s: %w", symbol, iv, err)
	}

	var resp candleResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode candles %s/%s: %w", symbol, iv, err)
	}
	if resp.Status != statusOK {
		return nil, &apiError{Status: resp.Status, Message: resp.Message}
	}

	candles := make([]market.Candle, 0, len(resp.Data))
	for _, raw := range resp.Data {
		// Rows mix numbers and numeric strings depending on the field.
		var row [6]interface{}
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("decode candle row: %w", err)
		}
		ts, err := rowInt64(row[0])
		if err != nil {
			return nil, fmt.Errorf("parse candle timestamp: %w", err)
		}
		open, err := rowFloat(row[1])
		if err != nil {
			return nil, fmt.Errorf("parse candle open: %w", err)
		}
		closeP, _ := rowFloat(row[2])
		high, _ := rowFloat(row[3])
		low, _ := rowFloat(row[4])
		volume, _ := rowFloat(row[5])

		candles = append(candles, market.Candle{
			Time:   time.UnixMilli(ts),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closeP,
			Volume: volume,
		})
	}

	cs := market.NewCandleSet(strings.ToUpper(symbol), iv, candles)
	if count > 0 && cs.Len() > count {
		cs.Candles = cs.Candles[cs.Len()-count:]
	}
	return cs, nil
}

func rowFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(x, 64)
	}
	return 0, fmt.Errorf("unexpected candle field type %T", v)
}

func rowInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case float64:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("unexpected candle field type %T", v)
}

type balanceResp struct {
	Status  string            `json:"status"`
	Data    map[string]string `json:"data"`
	Message string            `json:"message"`
}

// Balance fetches the account balance for the quote currency and every
// held coin.
func (c *Client) Balance(ctx context.Context) (exchange.Balance, error) {
	params := url.Values{}
	params.Set("currency", "ALL")

	body, err := c.private(ctx, "/info/balance", params)
	if err != nil {
		return exchange.Balance{}, fmt.Errorf("balance: %w", err)
	}

	var resp balanceResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return exchange.Balance{}, fmt.Errorf("decode balance: %w", err)
	}
	if resp.Status != statusOK {
		return exchange.Balance{}, &apiError{Status: resp.Status, Message: resp.Message}
	}

	bal := exchange.Balance{Units: make(map[string]float64)}
	quoteLower := strings.ToLower(c.quote)
	for key, val := range resp.Data {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			continue
		}
		switch {
		case key == "available_"+quoteLower:
			bal.Available = f
		case key == "in_use_"+quoteLower:
			bal.InOrders = f
		case strings.HasPrefix(key, "total_"):
			cur := strings.ToUpper(strings.TrimPrefix(key, "total_"))
			if cur != c.quote && f > 0 {
				bal.Units[cur] = f
			}
		}
	}
	return bal, nil
}

type orderResp struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id"`
	Data    []struct {
		ContID string `json:"cont_id"`
		Units  string `json:"units"`
		Price  string `json:"price"`
		Fee    string `json:"fee"`
	} `json:"data"`
	Message string `json:"message"`
}

func (c *Client) marketOrder(ctx context.Context, endpoint, symbol string, units float64, side exchange.Side) (exchange.Order, error) {
	params := url.Values{}
	params.Set("order_currency", strings.ToUpper(symbol))
	params.Set("payment_currency", c.quote)
	params.Set("units", strconv.FormatFloat(units, 'f', 8, 64))

	body, err := c.private(ctx, endpoint, params)
	if err != nil {
		return exchange.Order{}, fmt.Errorf("market %s %s: %w", side, symbol, err)
	}

	var resp orderResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return exchange.Order{}, fmt.Errorf("decode market %s %s: %w", side, symbol, err)
	}
	if resp.Status != statusOK {
		if resp.Status == "5600" {
			return exchange.Order{}, exchange.ErrInsufficientFunds
		}
		return exchange.Order{}, &apiError{Status: resp.Status, Message: resp.Message}
	}

	order := exchange.Order{
		ID:     resp.OrderID,
		Symbol: strings.ToUpper(symbol),
		Side:   side,
		Time:   c.now(),
	}

	// Average the contract fills; a market order may fill in pieces.
	var totalUnits, totalAmount, totalFee float64
	for _, fill := range resp.Data {
		u, _ := strconv.ParseFloat(fill.Units, 64)
		p, _ := strconv.ParseFloat(fill.Price, 64)
		f, _ := strconv.ParseFloat(fill.Fee, 64)
		totalUnits += u
		totalAmount += u * p
		totalFee += f
	}
	if totalUnits > 0 {
		order.Units = totalUnits
		order.Price = totalAmount / totalUnits
		order.Fee = totalFee
	} else {
		order.Units = units
	}
	return order, nil
}

// MarketBuy places a market buy for the given units of symbol.
func (c *Client) MarketBuy(ctx context.Context, symbol string, units float64) (exchange.Order, error) {
	return c.marketOrder(ctx, "/trade/market_buy", symbol, units, exchange.Buy)
}

// MarketSell places a market sell for the given units of symbol.
func (c *Client) MarketSell(ctx context.Context, symbol string, units float64) (exchange.Order, error) {
	return c.marketOrder(ctx, "/trade/market_sell", symbol, units, exchange.Sell)
}

type cancelResp struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{}
	params.Set("order_currency", strings.ToUpper(symbol))
	params.Set("payment_currency", c.quote)
	params.Set("order_id", orderID)

	body, err := c.private(ctx, "/trade/cancel", params)
	if err != nil {
		return fmt.Errorf("cancel %s: %w", orderID, err)
	}

	var resp cancelResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode cancel %s: %w", orderID, err)
	}
	if resp.Status != statusOK {
		if resp.Status == "5500" {
			return exchange.ErrOrderNotFound
		}
		return &apiError{Status: resp.Status, Message: resp.Message}
	}
	return nil
}
