// Package advisor asks an LLM how much of the portfolio should sit in
// cash, sanity-checks the answer, discounts it by the advisor's own
// track record, and grades every recommendation against what the market
// actually did three days later.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/trendbot/config"
)

// Stance classifies a recommendation relative to the current cash ratio.
type Stance string

const (
	StanceDefense  Stance = "defense"
	StanceReinvest Stance = "reinvest"
	StanceMaintain Stance = "maintain"
)

// stanceBand is how far the target must move from the current cash
// ratio before it counts as a directional call.
const stanceBand = 0.05

// Risk levels the model may answer with.
const (
	RiskLow      = "LOW"
	RiskNormal   = "NORMAL"
	RiskHigh     = "HIGH"
	RiskCritical = "CRITICAL"
)

// PositionView is one holding as presented to the model.
type PositionView struct {
	Symbol    string  `json:"symbol"`
	ProfitPct float64 `json:"profit_pct"`
	Weight    float64 `json:"weight"`
}

// Snapshot is the portfolio and market state a decision is based on.
type Snapshot struct {
	Time       time.Time      `json:"time"`
	TotalValue float64        `json:"total_value"`
	Cash       float64        `json:"cash"`
	CashRatio  float64        `json:"cash_ratio"`
	Positions  []PositionView `json:"positions"`

	BenchmarkSymbol    string  `json:"benchmark_symbol"`
	BenchmarkPrice     float64 `json:"benchmark_price"`
	BenchmarkChange24h float64 `json:"benchmark_change_24h"`
	BenchmarkMA20      float64 `json:"benchmark_ma20,omitempty"`
	BenchmarkRSI       float64 `json:"benchmark_rsi,omitempty"`
	VolatilityIndex    float64 `json:"volatility_index"`
	Regime             string  `json:"regime"`

	FearGreed      int    `json:"fear_greed,omitempty"`
	FearGreedLabel string `json:"fear_greed_label,omitempty"`

	NewsSectors       int      `json:"news_sectors,omitempty"`
	NewsNegativeRatio float64  `json:"news_negative_ratio,omitempty"`
	HighRiskSectors   []string `json:"high_risk_sectors,omitempty"`
}

// Decision is the advisor's output after validation and adjustment.
type Decision struct {
	Time           time.Time `json:"time"`
	Stance         Stance    `json:"stance"`
	TargetCash     float64   `json:"target_cash_ratio"`
	RiskLevel      string    `json:"risk_level"`
	Confidence     float64   `json:"confidence"`
	Reasons        []string  `json:"reasons"`
	Summary        string    `json:"summary"`
	Fallback       bool      `json:"fallback,omitempty"`
	AccuracyPct    float64   `json:"advisor_accuracy_pct"`
	BenchmarkPrice float64   `json:"benchmark_price"`
}

// rawDecision is the JSON shape expected back from the model.
type rawDecision struct {
	TargetCashRatio float64  `json:"target_cash_ratio"`
	RiskLevel       string   `json:"risk_level"`
	Confidence      float64  `json:"confidence"`
	Reasons         []string `json:"reasons"`
	Summary         string   `json:"summary"`
}

// Completer is the slice of the LLM client the advisor needs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Advisor produces cash-ratio recommendations and tracks their accuracy.
type Advisor struct {
	cfg     config.AdvisorConfig
	llm     Completer
	history *History
	log     zerolog.Logger
	now     func() time.Time
}

// verifyAfter is how long a decision rests before it is graded.
const verifyAfter = 72 * time.Hour

func New(cfg config.AdvisorConfig, llm Completer, history *History, log zerolog.Logger) *Advisor {
	return &Advisor{
		cfg:     cfg,
		llm:     llm,
		history: history,
		log:     log,
		now:     time.Now,
	}
}

// SetNow overrides the clock for tests.
func (a *Advisor) SetNow(now func() time.Time) { a.now = now }

// Advise asks the model for a target cash ratio, falling back to the
// volatility rule when the model is unreachable or answers garbage. The
// returned decision is already validated, accuracy-adjusted and logged
// to history.
func (a *Advisor) Advise(ctx context.Context, snap Snapshot) (Decision, error) {
	stats := a.history.Stats()

	dec, err := a.ask(ctx, snap)
	if err != nil {
		a.log.Warn().Err(err).Msg("llm advice failed, using volatility fallback")
		dec = a.fallback(snap)
	}

	dec.Time = a.now()
	dec.BenchmarkPrice = snap.BenchmarkPrice
	dec.AccuracyPct = stats.AccuracyPct
	a.adjustForTrackRecord(&dec, stats)
	dec.TargetCash = clamp(dec.TargetCash, 0, a.cfg.MaxCashRatio)
	dec.Stance = classify(dec.TargetCash, snap.CashRatio)

	rec := Record{
		Time:           dec.Time,
		Stance:         dec.Stance,
		TargetCash:     dec.TargetCash,
		CashRatioThen:  snap.CashRatio,
		BenchmarkPrice: snap.BenchmarkPrice,
		RiskLevel:      dec.RiskLevel,
		Confidence:     dec.Confidence,
		Fallback:       dec.Fallback,
		VerifyAfter:    dec.Time.Add(verifyAfter),
	}
	if _, err := a.history.Add(rec); err != nil {
		return dec, fmt.Errorf("record decision: %w", err)
	}

	a.log.Info().
		Str("stance", string(dec.Stance)).
		Float64("target_cash", dec.TargetCash).
		Str("risk", dec.RiskLevel).
		Float64("confidence", dec.Confidence).
		Bool("fallback", dec.Fallback).
		Float64("accuracy_pct", stats.AccuracyPct).
		Msg("advisor decision")
	return dec, nil
}

func (a *Advisor) ask(ctx context.Context, snap Snapshot) (Decision, error) {
	user, err := renderPrompt(snap)
	if err != nil {
		return Decision{}, err
	}

	reply, err := a.llm.Complete(ctx, systemPrompt, user)
	if err != nil {
		return Decision{}, fmt.Errorf("complete: %w", err)
	}

	raw, err := parseReply(reply)
	if err != nil {
		return Decision{}, err
	}

	return Decision{
		TargetCash: raw.TargetCashRatio,
		RiskLevel:  raw.RiskLevel,
		Confidence: clamp(raw.Confidence, 0, 1),
		Reasons:    raw.Reasons,
		Summary:    raw.Summary,
	}, nil
}

// fallback derives a defensive posture from the volatility index alone.
func (a *Advisor) fallback(snap Snapshot) Decision {
	var target float64
	var risk string
	switch {
	case snap.VolatilityIndex >= 70:
		target, risk = a.cfg.MaxCashRatio, RiskHigh
	case snap.VolatilityIndex >= 40:
		target, risk = 0.3, RiskNormal
	default:
		target, risk = 0.15, RiskLow
	}
	return Decision{
		TargetCash: target,
		RiskLevel:  risk,
		Confidence: 0.3,
		Reasons:    []string{fmt.Sprintf("volatility index %.0f", snap.VolatilityIndex)},
		Summary:    "rule-based fallback, model unavailable",
		Fallback:   true,
	}
}

// adjustForTrackRecord shades the recommendation toward cash when the
// advisor has been scoring poorly. A cold streak also costs extra.
func (a *Advisor) adjustForTrackRecord(dec *Decision, stats Stats) {
	if stats.Verified == 0 {
		return
	}

	switch {
	case stats.AccuracyPct < 40:
		dec.TargetCash += 0.15
		dec.RiskLevel = RiskCritical
		dec.Confidence = clamp(dec.Confidence-0.2, 0, 1)
		dec.Reasons = append(dec.Reasons, fmt.Sprintf("accuracy %.0f%%, forcing defensive posture", stats.AccuracyPct))
	case stats.AccuracyPct < 60:
		dec.TargetCash += 0.10
		dec.Confidence = clamp(dec.Confidence-0.1, 0, 1)
		dec.Reasons = append(dec.Reasons, fmt.Sprintf("accuracy %.0f%%, leaning defensive", stats.AccuracyPct))
	case stats.AccuracyPct < 70:
		dec.TargetCash += 0.05
	}

	if stats.ConsecutiveErrors >= 3 {
		dec.TargetCash += 0.10
		dec.Reasons = append(dec.Reasons, fmt.Sprintf("%d straight misses", stats.ConsecutiveErrors))
	}
}

func classify(target, current float64) Stance {
	switch {
	case target > current+stanceBand:
		return StanceDefense
	case target < current-stanceBand:
		return StanceReinvest
	default:
		return StanceMaintain
	}
}

func validRisk(level string) bool {
	switch level {
	case RiskLow, RiskNormal, RiskHigh, RiskCritical:
		return true
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SaveDecision writes the latest decision to path for the trading bot to
// pick up as its cash ceiling.
func SaveDecision(path string, dec Decision) error {
	data, err := json.MarshalIndent(dec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create decision dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write decision: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace decision: %w", err)
	}
	return nil
}

// LoadDecision reads the decision file, returning ok=false when none has
// been written yet.
func LoadDecision(path string) (Decision, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Decision{}, false, nil
		}
		return Decision{}, false, fmt.Errorf("read decision: %w", err)
	}
	var dec Decision
	if err := json.Unmarshal(data, &dec); err != nil {
		return Decision{}, false, fmt.Errorf("parse decision %s: %w", path, err)
	}
	return dec, true, nil
}
