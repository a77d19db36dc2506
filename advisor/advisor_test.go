package advisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/exchange/paper"
	"github.com/rustyeddy/trendbot/ledger"
	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/regime"
)

type fakeLLM struct {
	reply string
	err   error
	asked []string
}

func (f *fakeLLM) Complete(ctx context.Context, system, user string) (string, error) {
	f.asked = append(f.asked, user)
	return f.reply, f.err
}

func advisorCfg() config.AdvisorConfig {
	return config.AdvisorConfig{
		Provider:     "openai",
		Model:        "test",
		MaxCashRatio: 0.5,
	}
}

func testSnapshot() Snapshot {
	return Snapshot{
		Time:               time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		TotalValue:         5_000_000,
		Cash:               1_000_000,
		CashRatio:          0.2,
		BenchmarkSymbol:    "BTC",
		BenchmarkPrice:     100_000_000,
		BenchmarkChange24h: -1.4,
		VolatilityIndex:    35,
		Regime:             string(regime.Sideways),
		Positions: []PositionView{
			{Symbol: "ETH", ProfitPct: 4.2, Weight: 0.4},
			{Symbol: "XRP", ProfitPct: -1.1, Weight: 0.4},
		},
	}
}

func newTestAdvisor(t *testing.T, llm Completer) (*Advisor, *History) {
	t.Helper()
	h, _ := testHistory(t)
	a := New(advisorCfg(), llm, h, zerolog.Nop())
	a.SetNow(func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) })
	return a, h
}

const goodReply = `{"target_cash_ratio":0.35,"risk_level":"NORMAL","confidence":0.8,"reasons":["volatility rising"],"summary":"trim exposure"}`

func TestAdviseHappyPath(t *testing.T) {
	llm := &fakeLLM{reply: "Here is my view:\n```json\n" + goodReply + "\n```"}
	a, h := newTestAdvisor(t, llm)

	dec, err := a.Advise(context.Background(), testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, 0.35, dec.TargetCash)
	assert.Equal(t, RiskNormal, dec.RiskLevel)
	assert.Equal(t, 0.8, dec.Confidence)
	assert.Equal(t, StanceDefense, dec.Stance, "0.35 target vs 0.20 held is a defensive call")
	assert.False(t, dec.Fallback)

	require.Len(t, llm.asked, 1)
	assert.Contains(t, llm.asked[0], "ETH")
	assert.Contains(t, llm.asked[0], "volatility index: 35")

	recs := h.Recent(1)
	require.Len(t, recs, 1)
	assert.Equal(t, OutcomePending, recs[0].Outcome)
	assert.Equal(t, 100_000_000.0, recs[0].BenchmarkPrice)
	assert.True(t, recs[0].VerifyAfter.Equal(recs[0].Time.Add(72*time.Hour)))
}

func TestAdvisePromptCarriesSentiment(t *testing.T) {
	llm := &fakeLLM{reply: goodReply}
	a, _ := newTestAdvisor(t, llm)

	snap := testSnapshot()
	snap.BenchmarkMA20 = 98_500_000
	snap.BenchmarkRSI = 71
	snap.FearGreed = 18
	snap.FearGreedLabel = "Extreme Fear"
	snap.NewsSectors = 3
	snap.NewsNegativeRatio = 0.62
	snap.HighRiskSectors = []string{"defi", "meme"}

	_, err := a.Advise(context.Background(), snap)
	require.NoError(t, err)

	require.Len(t, llm.asked, 1)
	assert.Contains(t, llm.asked[0], "MA20: 98500000, RSI(14): 71")
	assert.Contains(t, llm.asked[0], "fear & greed index: 18/100 (Extreme Fear)")
	assert.Contains(t, llm.asked[0], "62% negative across 3 sectors, high risk: defi, meme")
}

func TestAdvisePromptOmitsMissingSentiment(t *testing.T) {
	llm := &fakeLLM{reply: goodReply}
	a, _ := newTestAdvisor(t, llm)

	_, err := a.Advise(context.Background(), testSnapshot())
	require.NoError(t, err)

	require.Len(t, llm.asked, 1)
	assert.NotContains(t, llm.asked[0], "fear & greed")
	assert.NotContains(t, llm.asked[0], "news sentiment")
	assert.NotContains(t, llm.asked[0], "MA20")
}

func TestAdviseFallbackOnLLMError(t *testing.T) {
	a, _ := newTestAdvisor(t, &fakeLLM{err: errors.New("connection refused")})

	snap := testSnapshot()
	snap.VolatilityIndex = 80

	dec, err := a.Advise(context.Background(), snap)
	require.NoError(t, err)
	assert.True(t, dec.Fallback)
	assert.Equal(t, 0.5, dec.TargetCash, "high volatility fallback goes to the cash ceiling")
	assert.Equal(t, RiskHigh, dec.RiskLevel)
}

func TestAdviseFallbackOnGarbageReply(t *testing.T) {
	a, _ := newTestAdvisor(t, &fakeLLM{reply: "I think you should buy more, good luck!"})

	dec, err := a.Advise(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.True(t, dec.Fallback)
}

func TestAdviseClampsToMaxCashRatio(t *testing.T) {
	reply := `{"target_cash_ratio":0.9,"risk_level":"HIGH","confidence":0.9,"reasons":[],"summary":"sell everything"}`
	a, _ := newTestAdvisor(t, &fakeLLM{reply: reply})

	dec, err := a.Advise(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, 0.5, dec.TargetCash)
}

func TestAdviseLowAccuracyForcesDefense(t *testing.T) {
	llm := &fakeLLM{reply: goodReply}
	a, h := newTestAdvisor(t, llm)

	// One hit, three misses: 25% accuracy plus a live cold streak.
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, o := range []Outcome{OutcomeCorrect, OutcomeIncorrect, OutcomeIncorrect, OutcomeIncorrect} {
		rec, err := h.Add(pendingRecord(at.Add(time.Duration(i) * time.Hour)))
		require.NoError(t, err)
		require.NoError(t, h.Resolve(rec.ID, o, 0, at))
	}

	dec, err := a.Advise(context.Background(), testSnapshot())
	require.NoError(t, err)

	// 0.35 + 0.15 (accuracy) + 0.10 (streak), clamped to the 0.5 ceiling.
	assert.Equal(t, 0.5, dec.TargetCash)
	assert.Equal(t, RiskCritical, dec.RiskLevel)
	assert.Less(t, dec.Confidence, 0.8, "poor track record discounts confidence")
	assert.Equal(t, 25.0, dec.AccuracyPct)
}

func TestAdviseMidAccuracyLeansDefensive(t *testing.T) {
	llm := &fakeLLM{reply: goodReply}
	a, h := newTestAdvisor(t, llm)

	// One miss then one hit: 50% accuracy with no live streak.
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, o := range []Outcome{OutcomeIncorrect, OutcomeCorrect} {
		rec, err := h.Add(pendingRecord(at.Add(time.Duration(i) * time.Hour)))
		require.NoError(t, err)
		require.NoError(t, h.Resolve(rec.ID, o, 0, at))
	}

	dec, err := a.Advise(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.InDelta(t, 0.45, dec.TargetCash, 1e-9)
	assert.Equal(t, RiskNormal, dec.RiskLevel, "mid accuracy keeps the model's risk level")
}

func TestGrade(t *testing.T) {
	tests := []struct {
		stance Stance
		move   float64
		want   Outcome
	}{
		{StanceDefense, -6, OutcomeCorrect},
		{StanceDefense, 3, OutcomeIncorrect},
		{StanceDefense, -1, OutcomeUnclear},
		{StanceReinvest, 4, OutcomeCorrect},
		{StanceReinvest, -4, OutcomeIncorrect},
		{StanceReinvest, 1, OutcomeUnclear},
		{StanceMaintain, 2, OutcomeCorrect},
		{StanceMaintain, -2.9, OutcomeCorrect},
		{StanceMaintain, 5, OutcomeIncorrect},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Grade(tt.stance, tt.move), "%s %+0.1f", tt.stance, tt.move)
	}
}

func TestVerifyResolvesDueRecords(t *testing.T) {
	a, h := newTestAdvisor(t, &fakeLLM{reply: goodReply})

	// Defense call made 4 days ago at benchmark 100M.
	at := time.Date(2025, 2, 25, 9, 0, 0, 0, time.UTC)
	rec := pendingRecord(at)
	rec.Stance = StanceDefense
	added, err := h.Add(rec)
	require.NoError(t, err)

	eng := paper.NewEngine(0, 0)
	eng.SetPrice("BTC", 93_000_000) // -7% move

	n, err := a.Verify(context.Background(), eng, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := h.Recent(1)
	require.Len(t, got, 1)
	assert.Equal(t, added.ID, got[0].ID)
	assert.Equal(t, OutcomeCorrect, got[0].Outcome)
	assert.InDelta(t, -7.0, got[0].MarketMove, 1e-9)
}

func TestVerifyNothingDue(t *testing.T) {
	a, _ := newTestAdvisor(t, &fakeLLM{})
	eng := paper.NewEngine(0, 0)

	n, err := a.Verify(context.Background(), eng, "BTC")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDecisionFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protection.json")

	_, ok, err := LoadDecision(path)
	require.NoError(t, err)
	assert.False(t, ok)

	dec := Decision{
		Time:       time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		Stance:     StanceDefense,
		TargetCash: 0.4,
		RiskLevel:  RiskHigh,
		Confidence: 0.6,
	}
	require.NoError(t, SaveDecision(path, dec))

	got, ok, err := LoadDecision(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, dec.TargetCash, got.TargetCash)
	assert.Equal(t, StanceDefense, got.Stance)
}

func TestBuildSnapshot(t *testing.T) {
	ctx := context.Background()
	eng := paper.NewEngine(3_000_000, 0.0025)
	eng.SetPrice("ETH", 4_000_000)
	eng.SetPrice("BTC", 100_000_000)

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	// 30 daily candles climbing 100k a day into the 100M ticker price.
	candles := make([]market.Candle, 30)
	for i := range candles {
		close := 100_000_000 - float64(29-i)*100_000
		candles[i] = market.Candle{
			Time:  now.AddDate(0, 0, i-29),
			Open:  close - 50_000,
			High:  close + 50_000,
			Low:   close - 100_000,
			Close: close,
		}
	}
	eng.SetCandles(market.NewCandleSet("BTC", market.Interval24h, candles))

	book, err := ledger.Open(filepath.Join(t.TempDir(), "holdings.json"))
	require.NoError(t, err)

	// Hold 0.5 ETH bought at 3.8M: the paper balance must know about it.
	_, err = eng.MarketBuy(ctx, "ETH", 0.5)
	require.NoError(t, err)
	require.NoError(t, book.OpenPosition(ledger.Position{
		Symbol: "ETH", Quantity: 0.5, AvgPrice: 3_800_000, Invested: 1_900_000,
	}))

	b := SnapshotBuilder{Exchange: eng, Book: book, Benchmark: "BTC"}
	snap, err := b.Build(ctx, regime.Uptrend, now)
	require.NoError(t, err)

	assert.Equal(t, "BTC", snap.BenchmarkSymbol)
	assert.Equal(t, 100_000_000.0, snap.BenchmarkPrice)
	assert.Equal(t, string(regime.Uptrend), snap.Regime)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, "ETH", snap.Positions[0].Symbol)
	assert.InDelta(t, 5.26, snap.Positions[0].ProfitPct, 0.01)
	assert.Greater(t, snap.CashRatio, 0.0)
	assert.Less(t, snap.CashRatio, 1.0)

	assert.InDelta(t, 0.1, snap.BenchmarkChange24h, 0.01)
	assert.InDelta(t, 99_050_000, snap.BenchmarkMA20, 1)
	assert.Greater(t, snap.BenchmarkRSI, 50.0, "a straight climb reads overbought")

	assert.Zero(t, snap.FearGreed, "no index client configured")
	assert.Empty(t, snap.HighRiskSectors)
}

func TestBuildSnapshotSentimentInputs(t *testing.T) {
	ctx := context.Background()
	eng := paper.NewEngine(1_000_000, 0.0025)
	eng.SetPrice("BTC", 100_000_000)

	book, err := ledger.Open(filepath.Join(t.TempDir(), "holdings.json"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"value":"22","value_classification":"Extreme Fear","timestamp":"1740819600"}]}`)
	}))
	defer srv.Close()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	writeSector(t, dir, SectorSentiment{
		Sector: "defi", Positive: 1, Negative: 8, Neutral: 1,
		RiskLevel: RiskHigh, UpdatedAt: now.Add(-time.Hour),
	})

	b := SnapshotBuilder{
		Exchange:     eng,
		Book:         book,
		Benchmark:    "BTC",
		SentimentDir: dir,
		FearGreed:    NewFearGreedClient(srv.URL),
	}
	snap, err := b.Build(ctx, regime.Downtrend, now)
	require.NoError(t, err)

	assert.Equal(t, 22, snap.FearGreed)
	assert.Equal(t, "Extreme Fear", snap.FearGreedLabel)
	assert.Equal(t, 1, snap.NewsSectors)
	assert.InDelta(t, 0.8, snap.NewsNegativeRatio, 0.001)
	assert.Equal(t, []string{"defi"}, snap.HighRiskSectors)
}
