package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultFearGreedURL serves the crypto Fear & Greed index.
const DefaultFearGreedURL = "https://api.alternative.me"

// FearGreed is one reading of the market-wide sentiment index: 0 is
// extreme fear, 100 extreme greed.
type FearGreed struct {
	Value          int
	Classification string
	Time           time.Time
}

// FearGreedClient fetches the Fear & Greed index over REST.
type FearGreedClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewFearGreedClient(baseURL string) *FearGreedClient {
	if baseURL == "" {
		baseURL = DefaultFearGreedURL
	}
	return &FearGreedClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch returns the latest index reading.
func (c *FearGreedClient) Fetch(ctx context.Context) (FearGreed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/fng/?limit=1", nil)
	if err != nil {
		return FearGreed{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FearGreed{}, fmt.Errorf("fear & greed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FearGreed{}, fmt.Errorf("fear & greed: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FearGreed{}, err
	}

	// The endpoint returns string-typed numbers.
	var payload struct {
		Data []struct {
			Value          string `json:"value"`
			Classification string `json:"value_classification"`
			Timestamp      string `json:"timestamp"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return FearGreed{}, fmt.Errorf("parse fear & greed: %w", err)
	}
	if len(payload.Data) == 0 {
		return FearGreed{}, fmt.Errorf("fear & greed: empty response")
	}

	d := payload.Data[0]
	value, err := strconv.Atoi(d.Value)
	if err != nil {
		return FearGreed{}, fmt.Errorf("fear & greed value %q: %w", d.Value, err)
	}

	out := FearGreed{Value: value, Classification: d.Classification}
	if ts, err := strconv.ParseInt(d.Timestamp, 10, 64); err == nil {
		out.Time = time.Unix(ts, 0).UTC()
	}
	return out, nil
}
