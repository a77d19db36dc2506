package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	var rec TradeRecord

	row := j.db.QueryRow(`
		SELECT trade_id, symbol, side, quantity, price, amount, fee, profit_pct, reason, regime, score, time
		FROM trades
		WHERE trade_id = ?`, tradeID)

	err := row.Scan(
		&rec.TradeID,
		&rec.Symbol,
		&rec.Side,
		&rec.Quantity,
		&rec.Price,
		&rec.Amount,
		&rec.Fee,
		&rec.ProfitPct,
		&rec.Reason,
		&rec.Regime,
		&rec.Score,
		&rec.Time,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesBetween returns trades executed within [start, end).
func (j *SQLite) ListTradesBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, symbol, side, quantity, price, amount, fee, profit_pct, reason, regime, score, time
		FROM trades
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		if err := rows.Scan(
			&rec.TradeID,
			&rec.Symbol,
			&rec.Side,
			&rec.Quantity,
			&rec.Price,
			&rec.Amount,
			&rec.Fee,
			&rec.ProfitPct,
			&rec.Reason,
			&rec.Regime,
			&rec.Score,
			&rec.Time,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTradesBySymbol returns every trade for one symbol, oldest first.
func (j *SQLite) ListTradesBySymbol(symbol string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, symbol, side, quantity, price, amount, fee, profit_pct, reason, regime, score, time
		FROM trades
		WHERE symbol = ?
		ORDER BY time ASC`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		if err := rows.Scan(
			&rec.TradeID,
			&rec.Symbol,
			&rec.Side,
			&rec.Quantity,
			&rec.Price,
			&rec.Amount,
			&rec.Fee,
			&rec.ProfitPct,
			&rec.Reason,
			&rec.Regime,
			&rec.Score,
			&rec.Time,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Summary aggregates realized sell results over a time window.
type Summary struct {
	Trades   int
	Sells    int
	Wins     int
	Losses   int
	TotalFee float64
	WinRate  float64
}

// Summarize computes trade statistics for trades within [start, end).
func (j *SQLite) Summarize(start, end time.Time) (Summary, error) {
	trades, err := j.ListTradesBetween(start, end)
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	for _, t := range trades {
		s.Trades++
		s.TotalFee += t.Fee
		if t.Side != "sell" {
			continue
		}
		s.Sells++
		if t.ProfitPct > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	if s.Sells > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Sells)
	}
	return s, nil
}

// LatestEquity returns the most recent equity snapshot.
func (j *SQLite) LatestEquity() (EquitySnapshot, error) {
	var e EquitySnapshot
	row := j.db.QueryRow(`
		SELECT time, cash, holdings_value, total, positions, regime
		FROM equity
		ORDER BY time DESC
		LIMIT 1`)

	err := row.Scan(&e.Time, &e.Cash, &e.HoldingsValue, &e.Total, &e.Positions, &e.Regime)
	if err != nil {
		if err == sql.ErrNoRows {
			return EquitySnapshot{}, fmt.Errorf("no equity snapshots recorded")
		}
		return EquitySnapshot{}, err
	}
	return e, nil
}
