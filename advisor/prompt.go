package advisor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/rustyeddy/trendbot/llm"
)

const systemPrompt = `You are a risk manager for a cryptocurrency spot portfolio.
Given a portfolio and market snapshot, recommend what fraction of the
portfolio should be held in cash. Answer with a single JSON object and
nothing else:

{
  "target_cash_ratio": <number between 0 and 1>,
  "risk_level": "LOW" | "NORMAL" | "HIGH" | "CRITICAL",
  "confidence": <number between 0 and 1>,
  "reasons": [<up to 4 short strings>],
  "summary": <one sentence>
}`

var promptTmpl = template.Must(template.New("advise").Parse(`Portfolio snapshot at {{.Time.Format "2006-01-02 15:04"}} UTC:
- total value: {{printf "%.0f" .TotalValue}} KRW
- cash: {{printf "%.0f" .Cash}} KRW ({{printf "%.1f" .CashRatioPct}}% of portfolio)
- market regime: {{.Regime}}
- {{.BenchmarkSymbol}} price: {{printf "%.0f" .BenchmarkPrice}}, 24h change {{printf "%+.2f" .BenchmarkChange24h}}%
{{- if .BenchmarkMA20}}
- {{.BenchmarkSymbol}} MA20: {{printf "%.0f" .BenchmarkMA20}}, RSI(14): {{printf "%.0f" .BenchmarkRSI}}
{{- end}}
- volatility index: {{printf "%.0f" .VolatilityIndex}}/100
{{- if .FearGreedLabel}}
- fear & greed index: {{.FearGreed}}/100 ({{.FearGreedLabel}})
{{- end}}
{{- if .NewsSectors}}
- news sentiment: {{printf "%.0f" .NewsNegativePct}}% negative across {{.NewsSectors}} sectors{{with .HighRiskList}}, high risk: {{.}}{{end}}
{{- end}}

Open positions:
{{- if .Positions}}
{{- range .Positions}}
- {{.Symbol}}: {{printf "%+.2f" .ProfitPct}}% P/L, {{printf "%.1f" .WeightPct}}% of portfolio
{{- end}}
{{- else}}
- none
{{- end}}

Recommend the target cash ratio.`))

type promptData struct {
	Snapshot
	CashRatioPct    float64
	NewsNegativePct float64
	HighRiskList    string
	Positions       []promptPosition
}

type promptPosition struct {
	Symbol    string
	ProfitPct float64
	WeightPct float64
}

func renderPrompt(snap Snapshot) (string, error) {
	data := promptData{
		Snapshot:        snap,
		CashRatioPct:    snap.CashRatio * 100,
		NewsNegativePct: snap.NewsNegativeRatio * 100,
		HighRiskList:    strings.Join(snap.HighRiskSectors, ", "),
	}
	for _, p := range snap.Positions {
		data.Positions = append(data.Positions, promptPosition{
			Symbol:    p.Symbol,
			ProfitPct: p.ProfitPct,
			WeightPct: p.Weight * 100,
		})
	}

	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

// parseReply extracts and validates the JSON decision from a model reply.
func parseReply(reply string) (rawDecision, error) {
	var raw rawDecision

	obj, err := llm.ExtractJSON(reply)
	if err != nil {
		return raw, fmt.Errorf("extract decision: %w", err)
	}
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return raw, fmt.Errorf("parse decision: %w", err)
	}

	if raw.TargetCashRatio < 0 || raw.TargetCashRatio > 1 {
		return raw, fmt.Errorf("target_cash_ratio %.2f out of range", raw.TargetCashRatio)
	}
	if !validRisk(raw.RiskLevel) {
		return raw, fmt.Errorf("unknown risk_level %q", raw.RiskLevel)
	}
	return raw, nil
}
