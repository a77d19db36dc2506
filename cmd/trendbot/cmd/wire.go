package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rustyeddy/trendbot/advisor"
	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/exchange"
	"github.com/rustyeddy/trendbot/exchange/bithumb"
	"github.com/rustyeddy/trendbot/guard"
	"github.com/rustyeddy/trendbot/journal"
	"github.com/rustyeddy/trendbot/ledger"
	"github.com/rustyeddy/trendbot/notify"
)

// state bundles the persistent stores every long-running command opens.
type state struct {
	book  *ledger.Ledger
	guard *guard.Guard
	jrnl  *journal.SQLite
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func buildExchange(cfg *config.Config) exchange.Exchange {
	return bithumb.New(bithumb.Config{
		BaseURL:        cfg.Exchange.BaseURL,
		ConnectKey:     cfg.Exchange.ConnectKey,
		SecretKey:      cfg.Exchange.SecretKey,
		QuoteCurrency:  cfg.Exchange.QuoteCurrency,
		RequestsPerSec: cfg.Exchange.RequestsPerSec,
	})
}

func openState(cfg *config.Config) (*state, error) {
	if err := os.MkdirAll(cfg.State.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	book, err := ledger.Open(statePath(cfg, cfg.State.LedgerFile))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	g, err := guard.Open(statePath(cfg, cfg.State.CooldownFile), cfg.Cooldown)
	if err != nil {
		return nil, fmt.Errorf("open cooldowns: %w", err)
	}
	jrnl, err := journal.NewSQLite(statePath(cfg, cfg.State.JournalDB))
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &state{book: book, guard: g, jrnl: jrnl}, nil
}

func openHistory(cfg *config.Config) (*advisor.History, error) {
	if err := os.MkdirAll(cfg.State.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	hist, err := advisor.OpenHistory(statePath(cfg, cfg.State.HistoryFile))
	if err != nil {
		return nil, fmt.Errorf("open decision history: %w", err)
	}
	return hist, nil
}

func buildNotifier(cfg *config.Config) *notify.Manager {
	mgr := notify.NewManager()
	if cfg.Notify.DiscordWebhookURL != "" {
		mgr.Add(notify.NewDiscord(cfg.Notify.DiscordWebhookURL, cfg.Notify.Username))
	}
	return mgr
}

func statePath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.State.Dir, name)
}
