// Package config loads and validates the bot configuration from a YAML or
// JSON file, merged over built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for both the trend bot and the
// profit protector.
type Config struct {
	Exchange   ExchangeConfig   `json:"exchange" yaml:"exchange"`
	Watchlist  []string         `json:"watchlist" yaml:"watchlist"`
	Scoring    ScoringConfig    `json:"scoring" yaml:"scoring"`
	Regime     RegimeConfig     `json:"regime" yaml:"regime"`
	Risk       RiskConfig       `json:"risk" yaml:"risk"`
	Cooldown   CooldownConfig   `json:"cooldown" yaml:"cooldown"`
	Protection ProtectionConfig `json:"protection" yaml:"protection"`
	Advisor    AdvisorConfig    `json:"advisor" yaml:"advisor"`
	Notify     NotifyConfig     `json:"notify" yaml:"notify"`
	State      StateConfig      `json:"state" yaml:"state"`
}

// ExchangeConfig holds exchange access parameters.
type ExchangeConfig struct {
	BaseURL        string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	ConnectKey     string  `json:"connect_key" yaml:"connect_key"`
	SecretKey      string  `json:"secret_key" yaml:"secret_key"`
	QuoteCurrency  string  `json:"quote_currency" yaml:"quote_currency"`
	RequestsPerSec float64 `json:"requests_per_sec" yaml:"requests_per_sec"`
}

// ScoringConfig holds buy-signal weights and thresholds. Weights sum the
// individual signals into the composite score.
type ScoringConfig struct {
	Weights ScoreWeights `json:"weights" yaml:"weights"`

	RSIPeriod     int     `json:"rsi_period" yaml:"rsi_period"`
	RSIOversold   float64 `json:"rsi_oversold" yaml:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought" yaml:"rsi_overbought"`

	MACDFast   int `json:"macd_fast" yaml:"macd_fast"`
	MACDSlow   int `json:"macd_slow" yaml:"macd_slow"`
	MACDSignal int `json:"macd_signal" yaml:"macd_signal"`

	BollingerPeriod int     `json:"bollinger_period" yaml:"bollinger_period"`
	BollingerStd    float64 `json:"bollinger_std" yaml:"bollinger_std"`

	VolumeLookback    int     `json:"volume_lookback" yaml:"volume_lookback"`
	VolumeSurgeRatio  float64 `json:"volume_surge_ratio" yaml:"volume_surge_ratio"`
	SupportPeriod     int     `json:"support_period" yaml:"support_period"`
	SupportTolerance  float64 `json:"support_tolerance" yaml:"support_tolerance"`
	MomentumPeriod    int     `json:"momentum_period" yaml:"momentum_period"`
	CorrelationPeriod int     `json:"correlation_period" yaml:"correlation_period"`

	// MinScore is the composite score required to buy outside an uptrend.
	MinScore float64 `json:"min_score" yaml:"min_score"`
	// MinScoreUptrend relaxes the requirement while the market trends up.
	MinScoreUptrend float64 `json:"min_score_uptrend" yaml:"min_score_uptrend"`
	// MinDailySignals is the boolean signal count required alongside RSI.
	MinDailySignals    int `json:"min_daily_signals" yaml:"min_daily_signals"`
	MinIntradaySignals int `json:"min_intraday_signals" yaml:"min_intraday_signals"`
}

// ScoreWeights assigns points to each buy signal. Composite thresholds
// (MinScore and friends) are read against whatever scale these sum to.
// MAAlignment, PriceUptrend and VolumeTrend only score while the market
// regime is an uptrend.
type ScoreWeights struct {
	RSIOversold     float64 `json:"rsi_oversold" yaml:"rsi_oversold"`
	GoldenCross     float64 `json:"golden_cross" yaml:"golden_cross"`
	MACDCrossUp     float64 `json:"macd_cross_up" yaml:"macd_cross_up"`
	NearLowerBand   float64 `json:"near_lower_band" yaml:"near_lower_band"`
	MomentumTurn    float64 `json:"momentum_turn" yaml:"momentum_turn"`
	NearSupport     float64 `json:"near_support" yaml:"near_support"`
	VolumeSurge     float64 `json:"volume_surge" yaml:"volume_surge"`
	BullishCandle   float64 `json:"bullish_candle" yaml:"bullish_candle"`
	BTCCorrelation  float64 `json:"btc_correlation" yaml:"btc_correlation"`
	ConsecutiveDrop float64 `json:"consecutive_drop" yaml:"consecutive_drop"`
	MAAlignment     float64 `json:"ma_alignment" yaml:"ma_alignment"`
	PriceUptrend    float64 `json:"price_uptrend" yaml:"price_uptrend"`
	VolumeTrend     float64 `json:"volume_trend" yaml:"volume_trend"`
	IntradayRSI     float64 `json:"intraday_rsi" yaml:"intraday_rsi"`
	IntradayMACD    float64 `json:"intraday_macd" yaml:"intraday_macd"`
}

// RegimeConfig holds market environment detection parameters and the
// per-regime adjustments applied to risk parameters.
type RegimeConfig struct {
	BenchmarkSymbol string `json:"benchmark_symbol" yaml:"benchmark_symbol"`

	ShortMA int `json:"short_ma" yaml:"short_ma"`
	MidMA   int `json:"mid_ma" yaml:"mid_ma"`
	LongMA  int `json:"long_ma" yaml:"long_ma"`

	// Slope thresholds in percent over the slope lookback.
	UptrendShortSlope   float64 `json:"uptrend_short_slope" yaml:"uptrend_short_slope"`
	UptrendMidSlope     float64 `json:"uptrend_mid_slope" yaml:"uptrend_mid_slope"`
	DowntrendShortSlope float64 `json:"downtrend_short_slope" yaml:"downtrend_short_slope"`
	DowntrendMidSlope   float64 `json:"downtrend_mid_slope" yaml:"downtrend_mid_slope"`

	// Uptrend multipliers applied to base risk parameters.
	UptrendProfitScale     float64 `json:"uptrend_profit_scale" yaml:"uptrend_profit_scale"`
	UptrendStopScale       float64 `json:"uptrend_stop_scale" yaml:"uptrend_stop_scale"`
	UptrendTrailingScale   float64 `json:"uptrend_trailing_scale" yaml:"uptrend_trailing_scale"`
	UptrendAllocationScale float64 `json:"uptrend_allocation_scale" yaml:"uptrend_allocation_scale"`

	// Downtrend multipliers.
	DowntrendProfitScale float64 `json:"downtrend_profit_scale" yaml:"downtrend_profit_scale"`
	DowntrendStopScale   float64 `json:"downtrend_stop_scale" yaml:"downtrend_stop_scale"`
}

// RiskConfig holds position sizing and exit parameters.
type RiskConfig struct {
	TotalBudget     float64 `json:"total_budget" yaml:"total_budget"`
	AllocationRatio float64 `json:"allocation_ratio" yaml:"allocation_ratio"`
	// MaxAllocationRatio caps the per-position ratio after any regime
	// scaling is applied.
	MaxAllocationRatio float64 `json:"max_allocation_ratio" yaml:"max_allocation_ratio"`
	MinOrderAmount     float64 `json:"min_order_amount" yaml:"min_order_amount"`
	MaxPositions       int     `json:"max_positions" yaml:"max_positions"`
	FeeRate            float64 `json:"fee_rate" yaml:"fee_rate"`

	ProfitTargetPct float64 `json:"profit_target_pct" yaml:"profit_target_pct"`
	StopLossPct     float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TrailingStopPct float64 `json:"trailing_stop_pct" yaml:"trailing_stop_pct"`
	ATRPeriod       int     `json:"atr_period" yaml:"atr_period"`
	ATRMultiplier   float64 `json:"atr_multiplier" yaml:"atr_multiplier"`

	UsePartialProfit   bool    `json:"use_partial_profit" yaml:"use_partial_profit"`
	PartialProfitPct   float64 `json:"partial_profit_pct" yaml:"partial_profit_pct"`
	PartialProfitRatio float64 `json:"partial_profit_ratio" yaml:"partial_profit_ratio"`
}

// CooldownConfig controls the post-sell trade guards.
type CooldownConfig struct {
	StopLoss     time.Duration `json:"stop_loss" yaml:"stop_loss"`
	ProfitTaking time.Duration `json:"profit_taking" yaml:"profit_taking"`
	PingPong     time.Duration `json:"ping_pong" yaml:"ping_pong"`
}

// ProtectionConfig controls the profit-protection monitor loop.
type ProtectionConfig struct {
	Interval        time.Duration `json:"interval" yaml:"interval"`
	PartialDrawdown float64       `json:"partial_drawdown" yaml:"partial_drawdown"`
	FullDrawdown    float64       `json:"full_drawdown" yaml:"full_drawdown"`
	PartialRatio    float64       `json:"partial_ratio" yaml:"partial_ratio"`
	MinPeakProfit   float64       `json:"min_peak_profit" yaml:"min_peak_profit"`
}

// AdvisorConfig holds LLM advisor parameters.
type AdvisorConfig struct {
	Provider    string        `json:"provider" yaml:"provider"`
	BaseURL     string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey      string        `json:"api_key" yaml:"api_key"`
	Model       string        `json:"model" yaml:"model"`
	MaxTokens   int           `json:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `json:"temperature" yaml:"temperature"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`

	SentimentDir string  `json:"sentiment_dir" yaml:"sentiment_dir"`
	FearGreedURL string  `json:"fear_greed_url,omitempty" yaml:"fear_greed_url,omitempty"`
	MaxCashRatio float64 `json:"max_cash_ratio" yaml:"max_cash_ratio"`
}

// NotifyConfig holds Discord webhook parameters.
type NotifyConfig struct {
	DiscordWebhookURL string `json:"discord_webhook_url" yaml:"discord_webhook_url"`
	Username          string `json:"username,omitempty" yaml:"username,omitempty"`
}

// StateConfig names the flat files and database the bot persists into.
type StateConfig struct {
	Dir          string `json:"dir" yaml:"dir"`
	LedgerFile   string `json:"ledger_file" yaml:"ledger_file"`
	CooldownFile string `json:"cooldown_file" yaml:"cooldown_file"`
	DecisionFile string `json:"decision_file" yaml:"decision_file"`
	HistoryFile  string `json:"history_file" yaml:"history_file"`
	JournalDB    string `json:"journal_db" yaml:"journal_db"`
}

// LoadFromFile loads configuration from a file (JSON or YAML based on
// content), merged over Default().
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on
// extension).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Watchlist) == 0 {
		return fmt.Errorf("watchlist is required")
	}
	if c.Exchange.QuoteCurrency == "" {
		return fmt.Errorf("exchange.quote_currency is required")
	}
	if c.Exchange.RequestsPerSec <= 0 {
		return fmt.Errorf("exchange.requests_per_sec must be positive")
	}
	if c.Risk.TotalBudget <= 0 {
		return fmt.Errorf("risk.total_budget must be positive")
	}
	if c.Risk.AllocationRatio <= 0 || c.Risk.AllocationRatio > 1 {
		return fmt.Errorf("risk.allocation_ratio must be between 0 and 1")
	}
	if c.Risk.MaxAllocationRatio < c.Risk.AllocationRatio || c.Risk.MaxAllocationRatio > 1 {
		return fmt.Errorf("risk.max_allocation_ratio must be between allocation_ratio and 1")
	}
	if c.Regime.UptrendAllocationScale <= 0 {
		return fmt.Errorf("regime.uptrend_allocation_scale must be positive")
	}
	if c.Risk.MaxPositions <= 0 {
		return fmt.Errorf("risk.max_positions must be positive")
	}
	if c.Risk.ProfitTargetPct <= 0 {
		return fmt.Errorf("risk.profit_target_pct must be positive")
	}
	if c.Risk.StopLossPct >= 0 {
		return fmt.Errorf("risk.stop_loss_pct must be negative")
	}
	if c.Risk.TrailingStopPct <= 0 {
		return fmt.Errorf("risk.trailing_stop_pct must be positive")
	}
	if c.Risk.FeeRate < 0 || c.Risk.FeeRate > 0.1 {
		return fmt.Errorf("risk.fee_rate must be between 0 and 0.1")
	}
	if c.Risk.UsePartialProfit {
		if c.Risk.PartialProfitRatio <= 0 || c.Risk.PartialProfitRatio >= 1 {
			return fmt.Errorf("risk.partial_profit_ratio must be between 0 and 1")
		}
	}
	if c.Regime.BenchmarkSymbol == "" {
		return fmt.Errorf("regime.benchmark_symbol is required")
	}
	if c.Regime.ShortMA >= c.Regime.MidMA || c.Regime.MidMA >= c.Regime.LongMA {
		return fmt.Errorf("regime moving averages must satisfy short < mid < long")
	}
	if c.Scoring.RSIOversold <= 0 || c.Scoring.RSIOversold >= c.Scoring.RSIOverbought {
		return fmt.Errorf("scoring RSI thresholds must satisfy 0 < oversold < overbought")
	}
	if c.Scoring.MinScore <= 0 {
		return fmt.Errorf("scoring.min_score must be positive")
	}
	if c.Cooldown.StopLoss <= 0 || c.Cooldown.ProfitTaking <= 0 {
		return fmt.Errorf("cooldown durations must be positive")
	}
	if c.Protection.Interval <= 0 {
		return fmt.Errorf("protection.interval must be positive")
	}
	if c.Protection.PartialDrawdown <= 0 || c.Protection.FullDrawdown <= c.Protection.PartialDrawdown {
		return fmt.Errorf("protection drawdowns must satisfy 0 < partial < full")
	}
	if c.Advisor.MaxCashRatio <= 0 || c.Advisor.MaxCashRatio > 1 {
		return fmt.Errorf("advisor.max_cash_ratio must be between 0 and 1")
	}
	if c.State.Dir == "" {
		return fmt.Errorf("state.dir is required")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Exchange: ExchangeConfig{
			QuoteCurrency:  "KRW",
			RequestsPerSec: 8,
		},
		Watchlist: []string{"ETH", "XRP", "SOL", "ADA"},
		Scoring: ScoringConfig{
			Weights: ScoreWeights{
				RSIOversold:     2,
				GoldenCross:     2,
				MACDCrossUp:     2,
				NearLowerBand:   1,
				MomentumTurn:    1,
				NearSupport:     2,
				VolumeSurge:     3,
				BullishCandle:   2,
				BTCCorrelation:  1,
				ConsecutiveDrop: 2,
				MAAlignment:     2,
				PriceUptrend:    1,
				VolumeTrend:     2,
				IntradayRSI:     1,
				IntradayMACD:    1,
			},
			RSIPeriod:          14,
			RSIOversold:        30,
			RSIOverbought:      70,
			MACDFast:           12,
			MACDSlow:           26,
			MACDSignal:         9,
			BollingerPeriod:    20,
			BollingerStd:       2.0,
			VolumeLookback:     10,
			VolumeSurgeRatio:   1.5,
			SupportPeriod:      20,
			SupportTolerance:   0.03,
			MomentumPeriod:     10,
			CorrelationPeriod:  20,
			MinScore:           6,
			MinScoreUptrend:    4,
			MinDailySignals:    2,
			MinIntradaySignals: 2,
		},
		Regime: RegimeConfig{
			BenchmarkSymbol:        "BTC",
			ShortMA:                5,
			MidMA:                  20,
			LongMA:                 60,
			UptrendShortSlope:      0.5,
			UptrendMidSlope:        0.3,
			DowntrendShortSlope:    -1.0,
			DowntrendMidSlope:      -0.5,
			UptrendProfitScale:     1.8,
			UptrendStopScale:       0.4,
			UptrendTrailingScale:   0.55,
			UptrendAllocationScale: 1.2,
			DowntrendProfitScale:   0.8,
			DowntrendStopScale:     0.6,
		},
		Risk: RiskConfig{
			TotalBudget:        5_000_000,
			AllocationRatio:    0.2,
			MaxAllocationRatio: 0.3,
			MinOrderAmount:     10_000,
			MaxPositions:       4,
			FeeRate:            0.0025,
			ProfitTargetPct:    5.0,
			StopLossPct:        -3.0,
			TrailingStopPct:    2.5,
			ATRPeriod:          14,
			ATRMultiplier:      2.0,
			UsePartialProfit:   true,
			PartialProfitPct:   3.0,
			PartialProfitRatio: 0.5,
		},
		Cooldown: CooldownConfig{
			StopLoss:     24 * time.Hour,
			ProfitTaking: 6 * time.Hour,
			PingPong:     time.Hour,
		},
		Protection: ProtectionConfig{
			Interval:        30 * time.Second,
			PartialDrawdown: 1.5,
			FullDrawdown:    3.0,
			PartialRatio:    0.5,
			MinPeakProfit:   1.0,
		},
		Advisor: AdvisorConfig{
			Provider:     "openai",
			Model:        "gpt-4-turbo-preview",
			MaxTokens:    2048,
			Temperature:  0.3,
			Timeout:      60 * time.Second,
			SentimentDir: "data/sentiment",
			MaxCashRatio: 0.5,
		},
		Notify: NotifyConfig{
			Username: "trendbot",
		},
		State: StateConfig{
			Dir:          "state",
			LedgerFile:   "holdings.json",
			CooldownFile: "cooldowns.json",
			DecisionFile: "protection.json",
			HistoryFile:  "decision_history.json",
			JournalDB:    "journal.db",
		},
	}
}
