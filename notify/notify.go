// Package notify fans trade events out to notification providers.
package notify

import "time"

// Kind classifies a notification.
type Kind string

const (
	KindBuy        Kind = "buy"
	KindSell       Kind = "sell"
	KindProtection Kind = "protection"
	KindAdvisor    Kind = "advisor"
	KindError      Kind = "error"
	KindInfo       Kind = "info"
)

// Event is one notification message.
type Event struct {
	Kind      Kind
	Title     string
	Message   string
	Symbol    string
	Price     float64
	ProfitPct float64
	Time      time.Time
	Fields    map[string]string
}

// Notifier delivers events to one destination.
type Notifier interface {
	Send(Event) error
	Name() string
}

// Manager fans events out to every registered notifier. Delivery errors
// are collected but never stop the remaining providers.
type Manager struct {
	notifiers []Notifier
}

func NewManager(notifiers ...Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

func (m *Manager) Add(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

func (m *Manager) Send(ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Send(ev); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Nop is a Notifier that drops every event, used when no webhook is
// configured.
type Nop struct{}

func (Nop) Send(Event) error { return nil }
func (Nop) Name() string     { return "nop" }
