// Package bot wires the trend-following cycle together: detect the
// market regime, run exits on open positions, then score the watchlist
// and buy the best candidates within the advisor's cash ceiling.
package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/trendbot/advisor"
	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/exchange"
	"github.com/rustyeddy/trendbot/guard"
	"github.com/rustyeddy/trendbot/journal"
	"github.com/rustyeddy/trendbot/ledger"
	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/notify"
	"github.com/rustyeddy/trendbot/pkg/id"
	"github.com/rustyeddy/trendbot/regime"
	"github.com/rustyeddy/trendbot/scoring"
)

const (
	dailyCount    = 120
	intradayCount = 60

	// maxDailyAge rejects daily series the exchange stopped updating.
	maxDailyAge = 48 * time.Hour
)

// Bot runs the trend-following strategy over one exchange account.
type Bot struct {
	cfg      *config.Config
	exch     exchange.Exchange
	book     *ledger.Ledger
	guard    *guard.Guard
	jrnl     journal.Journal
	notify   *notify.Manager
	analyzer *scoring.Analyzer
	log      zerolog.Logger
	now      func() time.Time
}

func New(cfg *config.Config, exch exchange.Exchange, book *ledger.Ledger, g *guard.Guard, jrnl journal.Journal, n *notify.Manager, log zerolog.Logger) *Bot {
	return &Bot{
		cfg:      cfg,
		exch:     exch,
		book:     book,
		guard:    g,
		jrnl:     jrnl,
		notify:   n,
		analyzer: scoring.New(cfg),
		log:      log,
		now:      time.Now,
	}
}

// SetNow overrides the clock for tests.
func (b *Bot) SetNow(now func() time.Time) { b.now = now }

// Report summarizes what one cycle did.
type Report struct {
	Regime     regime.Regime
	Params     regime.Params
	Sells      []exchange.Order
	Buys       []exchange.Order
	Candidates []scoring.Analysis
	Skipped    []string
}

// Run executes cycles at the given interval until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.log.Info().
		Dur("interval", interval).
		Strs("watchlist", b.cfg.Watchlist).
		Msg("trend bot started")

	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("trend bot stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := b.Cycle(ctx); err != nil {
				b.log.Error().Err(err).Msg("trading cycle failed")
			}
		}
	}
}

// Cycle runs one full pass: regime detection, exits, then entries.
func (b *Bot) Cycle(ctx context.Context) (Report, error) {
	var rep Report

	benchmark, err := b.exch.Candles(ctx, b.cfg.Regime.BenchmarkSymbol, market.Interval24h, dailyCount)
	if err != nil {
		return rep, fmt.Errorf("benchmark candles: %w", err)
	}

	rep.Regime = regime.Detect(b.cfg.Regime, benchmark)
	rep.Params = regime.Adjust(b.cfg, rep.Regime)

	b.log.Info().
		Str("regime", string(rep.Regime)).
		Str("params", rep.Params.String()).
		Msg("cycle start")

	if err := b.guard.Prune(); err != nil {
		b.log.Warn().Err(err).Msg("cooldown prune failed")
	}

	// Exits run first so freed cash is available to the buy pass.
	rep.Sells = b.sellPass(ctx, rep.Params, rep.Regime)

	if err := b.recordEquity(ctx, rep.Regime); err != nil {
		b.log.Warn().Err(err).Msg("equity snapshot failed")
	}

	buys, candidates, skipped := b.buyPass(ctx, rep.Params, rep.Regime, benchmark)
	rep.Buys = buys
	rep.Candidates = candidates
	rep.Skipped = skipped

	return rep, nil
}

// sellPass evaluates every open position and executes any exits.
func (b *Bot) sellPass(ctx context.Context, params regime.Params, current regime.Regime) []exchange.Order {
	var orders []exchange.Order

	for _, symbol := range b.book.Symbols() {
		order, sold, err := b.checkExit(ctx, symbol, params, current)
		if err != nil {
			b.log.Error().Err(err).Str("symbol", symbol).Msg("exit check failed")
			continue
		}
		if sold {
			orders = append(orders, order)
		}
	}
	return orders
}

func (b *Bot) checkExit(ctx context.Context, symbol string, params regime.Params, current regime.Regime) (exchange.Order, bool, error) {
	pos, ok := b.book.Get(symbol)
	if !ok {
		return exchange.Order{}, false, nil
	}

	tick, err := b.exch.Ticker(ctx, symbol)
	if err != nil {
		return exchange.Order{}, false, fmt.Errorf("ticker: %w", err)
	}

	daily, err := b.exch.Candles(ctx, symbol, market.Interval24h, dailyCount)
	if err != nil {
		b.log.Warn().Err(err).Str("symbol", symbol).Msg("no daily candles, exits run on price only")
		daily = nil
	}

	// Ratchet the stops before judging the exit.
	updated := b.analyzer.UpdateTrailing(pos, tick.Price, params, daily)
	if updated.HighestPrice != pos.HighestPrice || updated.TrailingStop != pos.TrailingStop ||
		updated.DynamicStop != pos.DynamicStop || updated.PeakProfitPct != pos.PeakProfitPct {
		if err := b.book.Update(symbol, func(p *ledger.Position) {
			p.HighestPrice = updated.HighestPrice
			p.TrailingStop = updated.TrailingStop
			p.DynamicStop = updated.DynamicStop
			p.PeakProfitPct = updated.PeakProfitPct
		}); err != nil {
			return exchange.Order{}, false, err
		}
		pos = updated
	}

	dec := b.analyzer.EvaluateSell(pos, daily, tick.Price, params, current)
	if !dec.Sell {
		return exchange.Order{}, false, nil
	}

	units := pos.Quantity
	if dec.Partial {
		units = pos.Quantity * b.cfg.Risk.PartialProfitRatio
	}

	order, err := b.exch.MarketSell(ctx, symbol, units)
	if err != nil {
		return exchange.Order{}, false, fmt.Errorf("sell: %w", err)
	}

	profit := pos.ProfitPct(order.Price)
	if dec.Partial {
		if err := b.book.ReducePosition(symbol, order.Units, order.Fee); err != nil {
			return order, true, err
		}
	} else {
		if err := b.book.ClosePosition(symbol); err != nil {
			return order, true, err
		}
		if err := b.guard.RecordSell(symbol, dec.Kind, order.Price); err != nil {
			b.log.Error().Err(err).Str("symbol", symbol).Msg("cooldown record failed")
		}
	}

	b.recordTrade(journal.TradeRecord{
		TradeID:   id.New(),
		Symbol:    symbol,
		Side:      "sell",
		Quantity:  order.Units,
		Price:     order.Price,
		Amount:    order.Amount(),
		Fee:       order.Fee,
		ProfitPct: profit,
		Reason:    dec.Reason,
		Regime:    string(current),
		Time:      order.Time,
	})

	scope := "full"
	if dec.Partial {
		scope = "partial"
	}
	b.log.Info().
		Str("symbol", symbol).
		Str("scope", scope).
		Float64("price", order.Price).
		Float64("profit_pct", profit).
		Str("reason", dec.Reason).
		Msg("sold")

	b.send(notify.Event{
		Kind:      notify.KindSell,
		Title:     fmt.Sprintf("Sold %s (%s)", symbol, scope),
		Message:   dec.Reason,
		Symbol:    symbol,
		Price:     order.Price,
		ProfitPct: profit,
		Time:      order.Time,
	})
	return order, true, nil
}

// buyPass scores the watchlist and buys the top candidates.
func (b *Bot) buyPass(ctx context.Context, params regime.Params, current regime.Regime, benchmark *market.CandleSet) ([]exchange.Order, []scoring.Analysis, []string) {
	var skipped []string

	capacity := params.MaxPositions - b.book.Len()
	if capacity <= 0 {
		return nil, nil, []string{"position limit reached"}
	}

	var analyses []scoring.Analysis
	for _, symbol := range b.cfg.Watchlist {
		if b.book.Has(symbol) {
			continue
		}
		if blocked, reason := b.guard.Blocked(symbol); blocked {
			skipped = append(skipped, reason)
			continue
		}

		an, err := b.analyze(ctx, symbol, benchmark, params)
		if err != nil {
			b.log.Warn().Err(err).Str("symbol", symbol).Msg("analysis failed")
			continue
		}
		analyses = append(analyses, an)

		b.log.Debug().
			Str("symbol", symbol).
			Float64("score", an.Score).
			Bool("buy", an.Buy).
			Str("reason", an.Reason).
			Msg("scored")
	}

	candidates := scoring.RankCandidates(analyses)
	if len(candidates) == 0 {
		return nil, candidates, skipped
	}

	investable, err := b.investable(ctx)
	if err != nil {
		b.log.Error().Err(err).Msg("investable funds unknown, skipping buys")
		return nil, candidates, append(skipped, "balance unavailable")
	}

	var orders []exchange.Order
	for _, an := range candidates {
		if len(orders) >= capacity {
			break
		}

		// Ping-pong phase: a freshly cooled-down symbol may only be
		// rebought cheaper than it was sold.
		if sellPrice, ok := b.guard.LastSellPrice(an.Symbol); ok && an.Price >= sellPrice {
			skipped = append(skipped, fmt.Sprintf("%s: price %.2f not below last sell %.2f", an.Symbol, an.Price, sellPrice))
			continue
		}

		ratio := min(b.cfg.Risk.AllocationRatio*params.AllocationScale, b.cfg.Risk.MaxAllocationRatio)
		allocation := b.cfg.Risk.TotalBudget * ratio
		if allocation > investable {
			allocation = investable
		}
		if allocation < b.cfg.Risk.MinOrderAmount {
			skipped = append(skipped, fmt.Sprintf("%s: not enough investable cash", an.Symbol))
			break
		}

		order, err := b.buy(ctx, an, allocation, params, current)
		if err != nil {
			b.log.Error().Err(err).Str("symbol", an.Symbol).Msg("buy failed")
			continue
		}
		orders = append(orders, order)
		investable -= order.Amount() + order.Fee
	}
	return orders, candidates, skipped
}

func (b *Bot) analyze(ctx context.Context, symbol string, benchmark *market.CandleSet, params regime.Params) (scoring.Analysis, error) {
	daily, err := b.exch.Candles(ctx, symbol, market.Interval24h, dailyCount)
	if err != nil {
		return scoring.Analysis{}, fmt.Errorf("daily candles: %w", err)
	}
	if daily.Stale(b.now(), maxDailyAge) {
		return scoring.Analysis{}, fmt.Errorf("daily candles stale, newest older than %s", maxDailyAge)
	}

	// Intraday data sharpens entries but its absence never blocks one.
	intraday, err := b.exch.Candles(ctx, symbol, market.Interval1h, intradayCount)
	if err != nil {
		intraday = nil
	}

	return b.analyzer.AnalyzeBuy(symbol, daily, intraday, benchmark, params)
}

func (b *Bot) buy(ctx context.Context, an scoring.Analysis, allocation float64, params regime.Params, current regime.Regime) (exchange.Order, error) {
	units := allocation / an.Price
	order, err := b.exch.MarketBuy(ctx, an.Symbol, units)
	if err != nil {
		return exchange.Order{}, err
	}

	pos := ledger.Position{
		Symbol:          an.Symbol,
		Quantity:        order.Units,
		AvgPrice:        order.Price,
		Invested:        order.Amount(),
		Fees:            order.Fee,
		BuyTime:         order.Time,
		EntryRegime:     string(current),
		ProfitTargetPct: params.ProfitTargetPct,
		StopLossPct:     params.StopLossPct,
		HighestPrice:    order.Price,
	}
	if err := b.book.OpenPosition(pos); err != nil {
		return order, fmt.Errorf("record position: %w", err)
	}

	b.recordTrade(journal.TradeRecord{
		TradeID:  id.New(),
		Symbol:   an.Symbol,
		Side:     "buy",
		Quantity: order.Units,
		Price:    order.Price,
		Amount:   order.Amount(),
		Fee:      order.Fee,
		Reason:   an.Reason,
		Regime:   string(current),
		Score:    an.Score,
		Time:     order.Time,
	})

	b.log.Info().
		Str("symbol", an.Symbol).
		Float64("price", order.Price).
		Float64("units", order.Units).
		Float64("score", an.Score).
		Str("signals", an.Reason).
		Msg("bought")

	b.send(notify.Event{
		Kind:    notify.KindBuy,
		Title:   "Bought " + an.Symbol,
		Message: fmt.Sprintf("score %.1f: %s", an.Score, an.Reason),
		Symbol:  an.Symbol,
		Price:   order.Price,
		Time:    order.Time,
	})
	return order, nil
}

// investable returns how much quote currency the buy pass may spend,
// honoring the advisor's cash ceiling when a decision file exists.
func (b *Bot) investable(ctx context.Context) (float64, error) {
	bal, err := b.exch.Balance(ctx)
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	available := bal.Available

	dec, ok, err := b.loadAdvice()
	if err != nil {
		b.log.Warn().Err(err).Msg("advisor decision unreadable, ignoring")
		return available, nil
	}
	if !ok {
		return available, nil
	}

	total, err := b.portfolioValue(ctx, bal)
	if err != nil {
		return available, nil
	}

	reserve := total * dec.TargetCash
	investable := available - reserve
	if investable < 0 {
		investable = 0
	}

	b.log.Info().
		Str("stance", string(dec.Stance)).
		Float64("target_cash", dec.TargetCash).
		Float64("reserve", reserve).
		Float64("investable", investable).
		Msg("advisor cash ceiling applied")
	return investable, nil
}

func (b *Bot) loadAdvice() (advisor.Decision, bool, error) {
	path := filepath.Join(b.cfg.State.Dir, b.cfg.State.DecisionFile)
	dec, ok, err := advisor.LoadDecision(path)
	if err != nil || !ok {
		return dec, ok, err
	}
	// A stale decision is worse than none.
	if b.now().Sub(dec.Time) > 24*time.Hour {
		return advisor.Decision{}, false, nil
	}
	return dec, true, nil
}

func (b *Bot) portfolioValue(ctx context.Context, bal exchange.Balance) (float64, error) {
	total := bal.Available
	for _, symbol := range b.book.Symbols() {
		pos, ok := b.book.Get(symbol)
		if !ok {
			continue
		}
		tick, err := b.exch.Ticker(ctx, symbol)
		if err != nil {
			return 0, err
		}
		total += pos.Quantity * tick.Price
	}
	return total, nil
}

func (b *Bot) recordEquity(ctx context.Context, current regime.Regime) error {
	if b.jrnl == nil {
		return nil
	}
	bal, err := b.exch.Balance(ctx)
	if err != nil {
		return err
	}
	total, err := b.portfolioValue(ctx, bal)
	if err != nil {
		return err
	}
	return b.jrnl.RecordEquity(journal.EquitySnapshot{
		Time:          b.now(),
		Cash:          bal.Available,
		HoldingsValue: total - bal.Available,
		Total:         total,
		Positions:     b.book.Len(),
		Regime:        string(current),
	})
}

func (b *Bot) recordTrade(rec journal.TradeRecord) {
	if b.jrnl == nil {
		return
	}
	if err := b.jrnl.RecordTrade(rec); err != nil {
		b.log.Error().Err(err).Str("symbol", rec.Symbol).Msg("journal write failed")
	}
}

func (b *Bot) send(ev notify.Event) {
	if b.notify == nil {
		return
	}
	if err := b.notify.Send(ev); err != nil {
		b.log.Warn().Err(err).Msg("notification failed")
	}
}
