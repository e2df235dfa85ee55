// Package notification fans operator alerts out to Telegram and Discord.
// Every alert is deduplicated through the shared cache so a flapping
// condition cannot spam the channels.
package notification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/cache"
	"oanda-trading-bot/internal/logging"
)

// AlertType tags an alert for routing and formatting.
type AlertType string

const (
	AlertOpportunity AlertType = "opportunity"
	AlertTradeOpen   AlertType = "trade_open"
	AlertTradeClose  AlertType = "trade_close"
	AlertCircuit     AlertType = "circuit"
	AlertError       AlertType = "error"
)

// Alert is one operator-facing message.
type Alert struct {
	Type      AlertType
	Title     string
	Message   string
	Symbol    string
	Price     float64
	PnL       float64
	Timestamp time.Time
}

// Notifier delivers one alert to one channel.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
	Name() string
}

// Manager deduplicates alerts and fans them out to every configured
// channel. Delivery failures are logged, never propagated to trading.
type Manager struct {
	notifiers []Notifier
	dedup     cache.DedupCache
	enabled   bool
	logger    *logging.Logger
}

// NewManager builds the manager from config. dedup may be nil, which
// disables suppression.
func NewManager(cfg config.NotificationConfig, dedup cache.DedupCache) *Manager {
	m := &Manager{
		dedup:   dedup,
		enabled: cfg.Enabled,
		logger:  logging.WithComponent("notification"),
	}
	if tg := NewTelegramNotifier(cfg.Telegram); tg != nil {
		m.notifiers = append(m.notifiers, tg)
	}
	if dc := NewDiscordNotifier(cfg.Discord); dc != nil {
		m.notifiers = append(m.notifiers, dc)
	}
	return m
}

// AddNotifier registers an extra channel, used by tests.
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send delivers the alert to every channel unless an identical alert
// went out within the dedup window.
func (m *Manager) Send(ctx context.Context, alert Alert) {
	if !m.enabled || len(m.notifiers) == 0 {
		return
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}

	if m.dedup != nil {
		first, err := m.dedup.MarkOnce(ctx, cache.NotificationKey(fingerprint(alert)), cache.DefaultNotifyTTL)
		if err != nil {
			m.logger.Warn("Dedup check failed, sending anyway: %v", err)
		} else if !first {
			m.logger.Debug("Suppressed duplicate %s alert for %s", alert.Type, alert.Symbol)
			return
		}
	}

	for _, n := range m.notifiers {
		if err := n.Send(ctx, alert); err != nil {
			m.logger.Warn("%s delivery failed: %v", n.Name(), err)
		}
	}
}

// fingerprint identifies an alert by what it says, not when it was sent.
func fingerprint(alert Alert) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s", alert.Type, alert.Symbol, alert.Title, alert.Message)))
	return hex.EncodeToString(sum[:8])
}

// Opportunity announces a scored candidate that passed all filters.
func (m *Manager) Opportunity(ctx context.Context, symbol, direction string, score float64, rationale string) {
	m.Send(ctx, Alert{
		Type:    AlertOpportunity,
		Title:   fmt.Sprintf("Opportunity: %s %s (%.0f)", symbol, direction, score),
		Message: rationale,
		Symbol:  symbol,
	})
}

// TradeOpened announces a fill with its protective levels.
func (m *Manager) TradeOpened(ctx context.Context, symbol, direction string, units int, entry, sl, tp float64) {
	m.Send(ctx, Alert{
		Type:  AlertTradeOpen,
		Title: fmt.Sprintf("Opened %s %s", direction, symbol),
		Message: fmt.Sprintf("%d units @ %s\nSL %s | TP %s",
			units,
			broker.FormatPrice(symbol, entry),
			broker.FormatPrice(symbol, sl),
			broker.FormatPrice(symbol, tp)),
		Symbol: symbol,
		Price:  entry,
	})
}

// TradeClosed announces a trade leaving the book with its outcome.
func (m *Manager) TradeClosed(ctx context.Context, symbol, reason string, exitPrice, pnl float64) {
	m.Send(ctx, Alert{
		Type:    AlertTradeClose,
		Title:   fmt.Sprintf("Closed %s (%s)", symbol, reason),
		Message: fmt.Sprintf("Exit %s, P&L %.2f", broker.FormatPrice(symbol, exitPrice), pnl),
		Symbol:  symbol,
		Price:   exitPrice,
		PnL:     pnl,
	})
}

// CircuitTripped announces the breaker halting new entries.
func (m *Manager) CircuitTripped(ctx context.Context, reason string) {
	m.Send(ctx, Alert{
		Type:    AlertCircuit,
		Title:   "Circuit breaker tripped",
		Message: reason,
	})
}

// Error announces an operational failure that needs eyes.
func (m *Manager) Error(ctx context.Context, title, detail string) {
	m.Send(ctx, Alert{
		Type:    AlertError,
		Title:   title,
		Message: detail,
	})
}
