// Package ledger persists open positions as a flat JSON file. Every buy,
// partial sell and close rewrites the file atomically so a crash never
// leaves a half-written ledger behind.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Position is one open holding and its profit-tracking metadata.
type Position struct {
	Symbol       string    `json:"symbol"`
	Quantity     float64   `json:"quantity"`
	AvgPrice     float64   `json:"avg_price"`
	Invested     float64   `json:"invested"`
	Fees         float64   `json:"fees"`
	BuyTime      time.Time `json:"buy_time"`
	EntryRegime  string    `json:"entry_regime"`

	// Regime-adjusted exit parameters frozen at entry.
	ProfitTargetPct float64 `json:"profit_target_pct"`
	StopLossPct     float64 `json:"stop_loss_pct"`

	// Profit-protection state maintained while the position is open.
	HighestPrice  float64 `json:"highest_price"`
	TrailingStop  float64 `json:"trailing_stop"`
	DynamicStop   float64 `json:"dynamic_stop,omitempty"`
	PeakProfitPct float64 `json:"peak_profit_pct"`
	PartialTaken  bool    `json:"partial_taken"`
}

// ProfitPct returns the unrealized profit at price, in percent, before fees.
func (p Position) ProfitPct(price float64) float64 {
	if p.AvgPrice == 0 {
		return 0
	}
	return (price/p.AvgPrice - 1) * 100
}

// Ledger is a mutex-guarded position map backed by one JSON file.
type Ledger struct {
	mu   sync.Mutex
	path string
	pos  map[string]*Position
}

// Open loads the ledger file, creating an empty ledger if the file does
// not exist yet.
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path, pos: make(map[string]*Position)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if err := json.Unmarshal(data, &l.pos); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", path, err)
	}
	return l, nil
}

// save writes the ledger atomically. Callers must hold l.mu.
func (l *Ledger) save() error {
	data, err := json.MarshalIndent(l.pos, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// Get returns a copy of the position for symbol.
func (l *Ledger) Get(symbol string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pos[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Has reports whether a position is open for symbol.
func (l *Ledger) Has(symbol string) bool {
	_, ok := l.Get(symbol)
	return ok
}

// Len returns the number of open positions.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pos)
}

// Symbols returns open position symbols in sorted order.
func (l *Ledger) Symbols() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.pos))
	for sym := range l.pos {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Positions returns a copy of every open position keyed by symbol.
func (l *Ledger) Positions() map[string]Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Position, len(l.pos))
	for sym, p := range l.pos {
		out[sym] = *p
	}
	return out
}

// OpenPosition records a fresh buy and persists the ledger.
func (l *Ledger) OpenPosition(p Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.pos[p.Symbol]; exists {
		return fmt.Errorf("position already open for %s", p.Symbol)
	}
	if p.HighestPrice == 0 {
		p.HighestPrice = p.AvgPrice
	}
	l.pos[p.Symbol] = &p
	return l.save()
}

// Update applies fn to the position for symbol and persists the result.
func (l *Ledger) Update(symbol string, fn func(*Position)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pos[symbol]
	if !ok {
		return fmt.Errorf("no open position for %s", symbol)
	}
	fn(p)
	return l.save()
}

// ReducePosition removes quantity sold in a partial sell, marking the
// partial-profit flag. Reducing to zero or below closes the position.
func (l *Ledger) ReducePosition(symbol string, soldQty, fee float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pos[symbol]
	if !ok {
		return fmt.Errorf("no open position for %s", symbol)
	}

	remaining := p.Quantity - soldQty
	if remaining <= 0 {
		delete(l.pos, symbol)
		return l.save()
	}

	ratio := remaining / p.Quantity
	p.Quantity = remaining
	p.Invested *= ratio
	p.Fees += fee
	p.PartialTaken = true
	return l.save()
}

// ClosePosition removes the position and persists the ledger.
func (l *Ledger) ClosePosition(symbol string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.pos[symbol]; !ok {
		return fmt.Errorf("no open position for %s", symbol)
	}
	delete(l.pos, symbol)
	return l.save()
}
