// Package protect runs the profit-protection monitor: a fast polling
// loop that watches open positions for drawdowns from their peak profit
// and sells before a winner turns into a loser.
package protect

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/exchange"
	"github.com/rustyeddy/trendbot/guard"
	"github.com/rustyeddy/trendbot/journal"
	"github.com/rustyeddy/trendbot/ledger"
	"github.com/rustyeddy/trendbot/notify"
	"github.com/rustyeddy/trendbot/pkg/id"
)

// Action is what the monitor decided for one position on one tick.
type Action int

const (
	Hold Action = iota
	SellPartial
	SellAll
)

// Decision pairs an action with its trigger.
type Decision struct {
	Action Action
	Reason string
}

// Evaluate applies the drawdown rules to a position at the given price.
// The rules only arm once the position has seen at least MinPeakProfit:
// a partial drawdown from the peak trims the position, a full drawdown
// closes it.
func Evaluate(cfg config.ProtectionConfig, pos ledger.Position, price float64) Decision {
	profit := pos.ProfitPct(price)
	peak := pos.PeakProfitPct
	if profit > peak {
		peak = profit
	}
	if peak < cfg.MinPeakProfit {
		return Decision{Action: Hold}
	}

	drawdown := peak - profit
	if drawdown >= cfg.FullDrawdown {
		return Decision{
			Action: SellAll,
			Reason: fmt.Sprintf("gave back %.2f%% from peak %.2f%%", drawdown, peak),
		}
	}
	if drawdown >= cfg.PartialDrawdown && !pos.PartialTaken {
		return Decision{
			Action: SellPartial,
			Reason: fmt.Sprintf("gave back %.2f%% from peak %.2f%%", drawdown, peak),
		}
	}
	return Decision{Action: Hold}
}

// Monitor polls tickers for every open position and executes protective
// sells.
type Monitor struct {
	cfg    *config.Config
	exch   exchange.Exchange
	book   *ledger.Ledger
	guard  *guard.Guard
	jrnl   journal.Journal
	notify *notify.Manager
	log    zerolog.Logger
}

func NewMonitor(cfg *config.Config, exch exchange.Exchange, book *ledger.Ledger, g *guard.Guard, jrnl journal.Journal, n *notify.Manager, log zerolog.Logger) *Monitor {
	return &Monitor{
		cfg:    cfg,
		exch:   exch,
		book:   book,
		guard:  g,
		jrnl:   jrnl,
		notify: n,
		log:    log,
	}
}

// Run polls until ctx is cancelled. Errors on individual positions are
// logged and the loop keeps going; only ctx cancellation stops it.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Protection.Interval)
	defer ticker.Stop()

	m.log.Info().
		Dur("interval", m.cfg.Protection.Interval).
		Float64("partial_drawdown", m.cfg.Protection.PartialDrawdown).
		Float64("full_drawdown", m.cfg.Protection.FullDrawdown).
		Msg("profit protection monitor started")

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("profit protection monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep checks every open position once.
func (m *Monitor) Sweep(ctx context.Context) {
	for _, symbol := range m.book.Symbols() {
		if err := m.check(ctx, symbol); err != nil {
			m.log.Error().Err(err).Str("symbol", symbol).Msg("protection check failed")
		}
	}
}

func (m *Monitor) check(ctx context.Context, symbol string) error {
	pos, ok := m.book.Get(symbol)
	if !ok {
		return nil
	}

	tick, err := m.exch.Ticker(ctx, symbol)
	if err != nil {
		return fmt.Errorf("ticker %s: %w", symbol, err)
	}
	price := tick.Price

	// Keep the peak fresh before evaluating the drawdown.
	if profit := pos.ProfitPct(price); profit > pos.PeakProfitPct {
		if err := m.book.Update(symbol, func(p *ledger.Position) {
			p.PeakProfitPct = profit
			if price > p.HighestPrice {
				p.HighestPrice = price
			}
		}); err != nil {
			return err
		}
		pos.PeakProfitPct = profit
	}

	dec := Evaluate(m.cfg.Protection, pos, price)
	switch dec.Action {
	case SellAll:
		return m.sell(ctx, pos, pos.Quantity, false, dec.Reason)
	case SellPartial:
		return m.sell(ctx, pos, pos.Quantity*m.cfg.Protection.PartialRatio, true, dec.Reason)
	default:
		return nil
	}
}

func (m *Monitor) sell(ctx context.Context, pos ledger.Position, units float64, partial bool, reason string) error {
	order, err := m.exch.MarketSell(ctx, pos.Symbol, units)
	if err != nil {
		return fmt.Errorf("protective sell %s: %w", pos.Symbol, err)
	}

	profit := pos.ProfitPct(order.Price)

	if partial {
		if err := m.book.ReducePosition(pos.Symbol, order.Units, order.Fee); err != nil {
			return err
		}
	} else {
		if err := m.book.ClosePosition(pos.Symbol); err != nil {
			return err
		}
		kind := guard.SellProfitTaking
		if profit <= 0 {
			kind = guard.SellStopLoss
		}
		if err := m.guard.RecordSell(pos.Symbol, kind, order.Price); err != nil {
			m.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("cooldown record failed")
		}
	}

	if m.jrnl != nil {
		rec := journal.TradeRecord{
			TradeID:   id.New(),
			Symbol:    pos.Symbol,
			Side:      "sell",
			Quantity:  order.Units,
			Price:     order.Price,
			Amount:    order.Amount(),
			Fee:       order.Fee,
			ProfitPct: profit,
			Reason:    "protection: " + reason,
			Regime:    pos.EntryRegime,
			Time:      order.Time,
		}
		if err := m.jrnl.RecordTrade(rec); err != nil {
			m.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("journal write failed")
		}
	}

	scope := "full"
	if partial {
		scope = "partial"
	}
	m.log.Warn().
		Str("symbol", pos.Symbol).
		Str("scope", scope).
		Float64("price", order.Price).
		Float64("profit_pct", profit).
		Str("reason", reason).
		Msg("protective sell executed")

	if m.notify != nil {
		ev := notify.Event{
			Kind:      notify.KindProtection,
			Title:     fmt.Sprintf("Protective %s sell: %s", scope, pos.Symbol),
			Message:   reason,
			Symbol:    pos.Symbol,
			Price:     order.Price,
			ProfitPct: profit,
			Time:      order.Time,
		}
		if err := m.notify.Send(ev); err != nil {
			m.log.Warn().Err(err).Msg("notification failed")
		}
	}
	return nil
}
