// Package journal records executed trades and portfolio snapshots so
// runs can be audited and summarized after the fact.
package journal

import "time"

// TradeRecord is one executed order, buy or sell.
type TradeRecord struct {
	TradeID   string
	Symbol    string
	Side      string // "buy" or "sell"
	Quantity  float64
	Price     float64
	Amount    float64
	Fee       float64
	ProfitPct float64 // sells only, 0 for buys
	Reason    string
	Regime    string
	Score     float64
	Time      time.Time
}

// EquitySnapshot captures portfolio value at one point in time.
type EquitySnapshot struct {
	Time          time.Time
	Cash          float64
	HoldingsValue float64
	Total         float64
	Positions     int
	Regime        string
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}
