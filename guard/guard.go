// Package guard blocks re-entry into symbols that were recently sold.
// A stop-loss sell locks the symbol out for a long window, a profit-taking
// sell for a shorter one. Once the window lifts, a brief ping-pong phase
// follows during which the symbol may only be rebought below its last
// sell price, which stops buy/sell oscillation on choppy candles.
package guard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rustyeddy/trendbot/config"
)

// SellKind classifies the sell that triggered a cooldown.
type SellKind string

const (
	SellStopLoss     SellKind = "stop_loss"
	SellProfitTaking SellKind = "profit_taking"
)

type entry struct {
	Kind      SellKind  `json:"kind"`
	SoldAt    time.Time `json:"sold_at"`
	Until     time.Time `json:"until"`
	SellPrice float64   `json:"sell_price"`
}

// Guard is a mutex-guarded cooldown table backed by one JSON file.
type Guard struct {
	mu      sync.Mutex
	path    string
	cfg     config.CooldownConfig
	entries map[string]*entry
	now     func() time.Time
}

// Open loads the cooldown file, creating an empty guard if absent.
func Open(path string, cfg config.CooldownConfig) (*Guard, error) {
	g := &Guard{
		path:    path,
		cfg:     cfg,
		entries: make(map[string]*entry),
		now:     time.Now,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return g, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cooldowns: %w", err)
	}
	if err := json.Unmarshal(data, &g.entries); err != nil {
		return nil, fmt.Errorf("parse cooldowns %s: %w", path, err)
	}
	return g, nil
}

// SetNow overrides the clock for tests.
func (g *Guard) SetNow(now func() time.Time) { g.now = now }

func (g *Guard) save() error {
	data, err := json.MarshalIndent(g.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cooldowns: %w", err)
	}
	tmp := g.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(g.path), 0755); err != nil {
		return fmt.Errorf("create cooldown dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write cooldowns: %w", err)
	}
	if err := os.Rename(tmp, g.path); err != nil {
		return fmt.Errorf("replace cooldowns: %w", err)
	}
	return nil
}

// RecordSell starts the cooldown for symbol after a sell of the given
// kind. The lockout is the kind's window or the ping-pong window,
// whichever ends later.
func (g *Guard) RecordSell(symbol string, kind SellKind, price float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	var d time.Duration
	switch kind {
	case SellStopLoss:
		d = g.cfg.StopLoss
	case SellProfitTaking:
		d = g.cfg.ProfitTaking
	default:
		return fmt.Errorf("unknown sell kind %q", kind)
	}

	g.entries[symbol] = &entry{
		Kind:      kind,
		SoldAt:    now,
		Until:     now.Add(d),
		SellPrice: price,
	}
	return g.save()
}

// expiry is when the entry leaves the ping-pong phase and dies.
func (g *Guard) expiry(e *entry) time.Time {
	return e.Until.Add(g.cfg.PingPong)
}

// Blocked reports whether buying symbol is currently disallowed, with a
// human-readable reason when it is. Entries past their ping-pong phase
// are dropped from memory as a side effect; the file catches up on the
// next Prune or RecordSell.
func (g *Guard) Blocked(symbol string) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[symbol]
	if !ok {
		return false, ""
	}

	now := g.now()
	if !now.Before(g.expiry(e)) {
		delete(g.entries, symbol)
		return false, ""
	}
	if !now.Before(e.Until) {
		// Ping-pong phase: buying is allowed, but only below the sell
		// price, which LastSellPrice exposes to the buy pass.
		return false, ""
	}

	remaining := e.Until.Sub(now).Round(time.Minute)
	return true, fmt.Sprintf("%s cooldown after %s sell, %s remaining", symbol, e.Kind, remaining)
}

// LastSellPrice returns the price of the sell still on record for symbol.
// The second return is false once the ping-pong phase has passed.
func (g *Guard) LastSellPrice(symbol string) (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[symbol]
	if !ok || !g.now().Before(g.expiry(e)) {
		return 0, false
	}
	return e.SellPrice, true
}

// Prune drops every entry past its ping-pong phase and persists the
// result.
func (g *Guard) Prune() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	changed := false
	for sym, e := range g.entries {
		if !now.Before(g.expiry(e)) {
			delete(g.entries, sym)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return g.save()
}

// Active returns the symbols currently under cooldown, for status output.
func (g *Guard) Active() map[string]time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	out := make(map[string]time.Time)
	for sym, e := range g.entries {
		if now.Before(e.Until) {
			out[sym] = e.Until
		}
	}
	return out
}
