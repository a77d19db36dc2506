package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	colorGreen  = 0x2ecc71
	colorRed    = 0xe74c3c
	colorOrange = 0xe67e22
	colorBlue   = 0x3498db
	colorGray   = 0x95a5a6
)

// Discord delivers events to a Discord webhook as embeds.
type Discord struct {
	webhookURL string
	username   string
	client     *http.Client
}

func NewDiscord(webhookURL, username string) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		username:   username,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (d *Discord) Name() string { return "discord" }

type webhookPayload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func (d *Discord) Send(ev Event) error {
	payload := webhookPayload{
		Username: d.username,
		Embeds:   []embed{d.buildEmbed(ev)},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("post discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}

	log.Debug().
		Str("kind", string(ev.Kind)).
		Str("symbol", ev.Symbol).
		Msg("discord notification sent")
	return nil
}

func (d *Discord) buildEmbed(ev Event) embed {
	e := embed{
		Title:       ev.Title,
		Description: ev.Message,
		Color:       kindColor(ev),
		Timestamp:   ev.Time.Format(time.RFC3339),
	}

	if ev.Symbol != "" {
		e.Fields = append(e.Fields, embedField{Name: "Symbol", Value: ev.Symbol, Inline: true})
	}
	if ev.Price > 0 {
		e.Fields = append(e.Fields, embedField{Name: "Price", Value: fmt.Sprintf("%.0f", ev.Price), Inline: true})
	}
	if ev.Kind == KindSell || ev.Kind == KindProtection {
		e.Fields = append(e.Fields, embedField{Name: "P/L", Value: fmt.Sprintf("%+.2f%%", ev.ProfitPct), Inline: true})
	}
	for name, value := range ev.Fields {
		e.Fields = append(e.Fields, embedField{Name: name, Value: value, Inline: false})
	}
	return e
}

func kindColor(ev Event) int {
	switch ev.Kind {
	case KindBuy:
		return colorGreen
	case KindSell:
		if ev.ProfitPct >= 0 {
			return colorGreen
		}
		return colorRed
	case KindProtection:
		return colorOrange
	case KindAdvisor:
		return colorBlue
	case KindError:
		return colorRed
	default:
		return colorGray
	}
}
