package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, symbol, side, quantity, price, amount, fee, profit_pct, reason, regime, score, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Symbol, t.Side, t.Quantity, t.Price,
		t.Amount, t.Fee, t.ProfitPct, t.Reason, t.Regime, t.Score, t.Time,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, cash, holdings_value, total, positions, regime)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time, e.Cash, e.HoldingsValue, e.Total, e.Positions, e.Regime,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
