package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *SQLite {
	t.Helper()
	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func tradeAt(id, symbol, side string, profitPct float64, at time.Time) TradeRecord {
	return TradeRecord{
		TradeID:   id,
		Symbol:    symbol,
		Side:      side,
		Quantity:  0.5,
		Price:     4_000_000,
		Amount:    2_000_000,
		Fee:       5_000,
		ProfitPct: profitPct,
		Reason:    "profit_target",
		Regime:    "uptrend",
		Score:     7.5,
		Time:      at,
	}
}

func TestRecordAndGetTrade(t *testing.T) {
	j := newTestJournal(t)
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, j.RecordTrade(tradeAt("t1", "ETH", "sell", 5.2, at)))

	rec, err := j.GetTrade("t1")
	require.NoError(t, err)
	assert.Equal(t, "ETH", rec.Symbol)
	assert.Equal(t, "sell", rec.Side)
	assert.Equal(t, 5.2, rec.ProfitPct)
	assert.Equal(t, "profit_target", rec.Reason)
	assert.True(t, rec.Time.Equal(at))
}

func TestGetTradeMissing(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.GetTrade("nope")
	assert.Error(t, err)
}

func TestListTradesBetween(t *testing.T) {
	j := newTestJournal(t)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordTrade(tradeAt("t1", "ETH", "buy", 0, base)))
	require.NoError(t, j.RecordTrade(tradeAt("t2", "XRP", "buy", 0, base.Add(24*time.Hour))))
	require.NoError(t, j.RecordTrade(tradeAt("t3", "ETH", "sell", 3.1, base.Add(48*time.Hour))))

	got, err := j.ListTradesBetween(base, base.Add(36*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].TradeID)
	assert.Equal(t, "t2", got[1].TradeID)
}

func TestListTradesBySymbol(t *testing.T) {
	j := newTestJournal(t)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordTrade(tradeAt("t1", "ETH", "buy", 0, base)))
	require.NoError(t, j.RecordTrade(tradeAt("t2", "XRP", "buy", 0, base.Add(time.Hour))))
	require.NoError(t, j.RecordTrade(tradeAt("t3", "ETH", "sell", -2.0, base.Add(2*time.Hour))))

	got, err := j.ListTradesBySymbol("ETH")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].TradeID)
	assert.Equal(t, "t3", got[1].TradeID)
}

func TestSummarize(t *testing.T) {
	j := newTestJournal(t)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordTrade(tradeAt("t1", "ETH", "buy", 0, base)))
	require.NoError(t, j.RecordTrade(tradeAt("t2", "ETH", "sell", 5.0, base.Add(time.Hour))))
	require.NoError(t, j.RecordTrade(tradeAt("t3", "XRP", "sell", -3.0, base.Add(2*time.Hour))))
	require.NoError(t, j.RecordTrade(tradeAt("t4", "ADA", "sell", 2.0, base.Add(3*time.Hour))))

	s, err := j.Summarize(base, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4, s.Trades)
	assert.Equal(t, 3, s.Sells)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 2.0/3.0, s.WinRate, 1e-9)
	assert.Equal(t, 20_000.0, s.TotalFee)
}

func TestEquitySnapshots(t *testing.T) {
	j := newTestJournal(t)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordEquity(EquitySnapshot{
		Time: base, Cash: 1_000_000, HoldingsValue: 500_000,
		Total: 1_500_000, Positions: 1, Regime: "sideways",
	}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		Time: base.Add(time.Hour), Cash: 800_000, HoldingsValue: 750_000,
		Total: 1_550_000, Positions: 2, Regime: "uptrend",
	}))

	latest, err := j.LatestEquity()
	require.NoError(t, err)
	assert.Equal(t, 1_550_000.0, latest.Total)
	assert.Equal(t, 2, latest.Positions)
	assert.Equal(t, "uptrend", latest.Regime)
}

func TestLatestEquityEmpty(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.LatestEquity()
	assert.Error(t, err)
}
