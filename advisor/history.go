package advisor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/trendbot/pkg/id"
)

// Outcome is the verdict on a past decision once the market has moved.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeUnclear   Outcome = "unclear"
)

// Record is one advisor decision awaiting or past verification.
type Record struct {
	ID             string    `json:"id"`
	Time           time.Time `json:"time"`
	Stance         Stance    `json:"stance"`
	TargetCash     float64   `json:"target_cash_ratio"`
	CashRatioThen  float64   `json:"cash_ratio_then"`
	BenchmarkPrice float64   `json:"benchmark_price"`
	RiskLevel      string    `json:"risk_level"`
	Confidence     float64   `json:"confidence"`
	Fallback       bool      `json:"fallback,omitempty"`

	VerifyAfter time.Time `json:"verify_after"`
	Outcome     Outcome   `json:"outcome"`
	MarketMove  float64   `json:"market_move_pct,omitempty"`
	VerifiedAt  time.Time `json:"verified_at,omitempty"`
}

// Stats summarizes how the advisor has been scoring.
type Stats struct {
	Total             int
	Verified          int
	Correct           int
	Incorrect         int
	AccuracyPct       float64
	ConsecutiveErrors int
}

// History is the JSON-backed log of advisor decisions.
type History struct {
	mu      sync.Mutex
	path    string
	records []Record
}

// OpenHistory loads the decision history, creating an empty one if the
// file does not exist.
func OpenHistory(path string) (*History, error) {
	h := &History{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return h, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if err := json.Unmarshal(data, &h.records); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	sort.SliceStable(h.records, func(i, j int) bool {
		return h.records[i].Time.Before(h.records[j].Time)
	})
	return h, nil
}

func (h *History) save() error {
	data, err := json.MarshalIndent(h.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	tmp := h.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(h.path), 0755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

// Add appends a pending record, generating its ID, and persists.
func (h *History) Add(r Record) (Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r.ID == "" {
		r.ID = id.New()
	}
	if r.Outcome == "" {
		r.Outcome = OutcomePending
	}
	h.records = append(h.records, r)
	return r, h.save()
}

// Due returns pending records whose verification time has passed.
func (h *History) Due(now time.Time) []Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Record
	for _, r := range h.records {
		if r.Outcome == OutcomePending && !now.Before(r.VerifyAfter) {
			out = append(out, r)
		}
	}
	return out
}

// Resolve stores the verdict for a pending record.
func (h *History) Resolve(recordID string, outcome Outcome, marketMove float64, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.records {
		if h.records[i].ID != recordID {
			continue
		}
		if h.records[i].Outcome != OutcomePending {
			return fmt.Errorf("record %s already resolved", recordID)
		}
		h.records[i].Outcome = outcome
		h.records[i].MarketMove = marketMove
		h.records[i].VerifiedAt = at
		return h.save()
	}
	return fmt.Errorf("record %s not found", recordID)
}

// Stats computes the accuracy of resolved decisions. Unclear outcomes
// count as verified but sit outside the accuracy ratio, and the
// consecutive error count only resets on a correct call.
func (h *History) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	var s Stats
	s.Total = len(h.records)

	for _, r := range h.records {
		switch r.Outcome {
		case OutcomeCorrect:
			s.Verified++
			s.Correct++
		case OutcomeIncorrect:
			s.Verified++
			s.Incorrect++
		case OutcomeUnclear:
			s.Verified++
		}
	}
	if scored := s.Correct + s.Incorrect; scored > 0 {
		s.AccuracyPct = float64(s.Correct) / float64(scored) * 100
	} else {
		// No track record yet reads as neutral, not as failing.
		s.AccuracyPct = 100
	}

	for i := len(h.records) - 1; i >= 0; i-- {
		switch h.records[i].Outcome {
		case OutcomeIncorrect:
			s.ConsecutiveErrors++
			continue
		case OutcomeCorrect:
			return s
		default:
			// Pending and unclear records neither extend nor break
			// the streak.
			continue
		}
	}
	return s
}

// Recent returns the last n records, newest last.
func (h *History) Recent(n int) []Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > len(h.records) {
		n = len(h.records)
	}
	out := make([]Record, n)
	copy(out, h.records[len(h.records)-n:])
	return out
}
