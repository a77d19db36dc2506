package advisor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// sentimentMaxAge is how long a cached sector reading stays usable.
const sentimentMaxAge = 4 * time.Hour

// SectorSentiment is one sector's news read, written to the sentiment
// directory by an external collector as <sector>.json.
type SectorSentiment struct {
	Sector    string    `json:"sector"`
	Positive  int       `json:"positive"`
	Negative  int       `json:"negative"`
	Neutral   int       `json:"neutral"`
	RiskLevel string    `json:"risk_level"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Articles is the total article count behind the reading.
func (s SectorSentiment) Articles() int {
	return s.Positive + s.Negative + s.Neutral
}

// SentimentSummary aggregates the fresh sector readings.
type SentimentSummary struct {
	Sectors         []SectorSentiment
	NegativeRatio   float64
	HighRiskSectors []string
}

// LoadSentiment reads every sector cache file under dir, dropping stale
// and malformed entries. A missing directory yields an empty summary:
// the collector may simply not be running.
func LoadSentiment(dir string, now time.Time) (SentimentSummary, error) {
	var sum SentimentSummary
	if dir == "" {
		return sum, nil
	}

	files, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return sum, nil
	}
	if err != nil {
		return sum, fmt.Errorf("read sentiment dir: %w", err)
	}

	var positive, negative, neutral int
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			continue
		}
		var s SectorSentiment
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		if s.Sector == "" || now.Sub(s.UpdatedAt) > sentimentMaxAge {
			continue
		}

		sum.Sectors = append(sum.Sectors, s)
		positive += s.Positive
		negative += s.Negative
		neutral += s.Neutral

		switch strings.ToUpper(s.RiskLevel) {
		case RiskHigh, RiskCritical:
			sum.HighRiskSectors = append(sum.HighRiskSectors, s.Sector)
		}
	}

	if total := positive + negative + neutral; total > 0 {
		sum.NegativeRatio = float64(negative) / float64(total)
	}
	sort.Slice(sum.Sectors, func(i, j int) bool {
		return sum.Sectors[i].Sector < sum.Sectors[j].Sector
	})
	sort.Strings(sum.HighRiskSectors)
	return sum, nil
}
