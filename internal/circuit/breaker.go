// Package circuit halts or throttles trading after sustained losses.
package circuit

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/events"
	"oanda-trading-bot/internal/logging"
)

// referenceEquity anchors drawdown percentages so the breaker behaves the
// same regardless of actual account size.
const referenceEquity = 10000.0

// ClosedTrade is the minimal view of a finished trade the breaker needs.
// PnL is preferred; when zero, Pips is converted at a flat rate.
type ClosedTrade struct {
	PnL      float64   `json:"pnl"`
	Pips     float64   `json:"pips"`
	ClosedAt time.Time `json:"closed_at"`
}

func (t ClosedTrade) amount() float64 {
	if t.PnL != 0 {
		return t.PnL
	}
	return t.Pips * 10
}

// Status is the breaker's current verdict, consumed by the orchestrator
// before every session.
type Status struct {
	Active              bool      `json:"active"`
	RiskMultiplier      float64   `json:"risk_multiplier"`
	FrequencyMultiplier float64   `json:"frequency_multiplier"`
	Reason              string    `json:"reason,omitempty"`
	DrawdownPercent     float64   `json:"drawdown_percent"`
	LossStreak          int       `json:"loss_streak"`
	TrippedAt           time.Time `json:"tripped_at,omitempty"`
}

// state is the persisted breaker state.
type state struct {
	Active    bool      `json:"active"`
	Reason    string    `json:"reason"`
	TrippedAt time.Time `json:"tripped_at"`
}

// Breaker evaluates recent trade outcomes against drawdown and loss-streak
// limits. While tripped it halves risk and trade frequency instead of
// blocking outright, and resets only after a sustained recovery.
type Breaker struct {
	mu     sync.Mutex
	cfg    config.CircuitBreakerConfig
	st     state
	bus    *events.EventBus
	logger *logging.Logger
}

// NewBreaker creates a breaker, restoring persisted state from the
// configured state file when present.
func NewBreaker(cfg config.CircuitBreakerConfig, bus *events.EventBus) *Breaker {
	b := &Breaker{
		cfg:    cfg,
		bus:    bus,
		logger: logging.WithComponent("circuit"),
	}
	b.loadState()
	return b
}

func (b *Breaker) loadState() {
	if b.cfg.StateFile == "" {
		return
	}
	data, err := os.ReadFile(b.cfg.StateFile)
	if err != nil {
		return
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		b.logger.Warn("Corrupt breaker state file, ignoring: %v", err)
		return
	}
	b.st = st
	if st.Active {
		b.logger.Warn("Restored tripped breaker state: %s (since %s)", st.Reason, st.TrippedAt.Format(time.RFC3339))
	}
}

// saveState persists the state best-effort. Caller holds the mutex.
func (b *Breaker) saveState() {
	if b.cfg.StateFile == "" {
		return
	}
	data, err := json.MarshalIndent(b.st, "", "  ")
	if err != nil {
		return
	}
	tmp := b.cfg.StateFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		b.logger.Error("Failed to write breaker state: %v", err)
		return
	}
	if err := os.Rename(tmp, b.cfg.StateFile); err != nil {
		b.logger.Error("Failed to replace breaker state: %v", err)
	}
}

// maxDrawdown walks the equity curve built from the trades (oldest first)
// and returns the largest peak-to-trough drop as a percent of the peak.
func maxDrawdown(trades []ClosedTrade) float64 {
	sorted := make([]ClosedTrade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ClosedAt.Before(sorted[j].ClosedAt)
	})

	equity := referenceEquity
	peak := equity
	worst := 0.0
	for _, t := range sorted {
		equity += t.amount()
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak * 100; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// lossStreak counts consecutive losing trades from the most recent back.
func lossStreak(trades []ClosedTrade) int {
	sorted := make([]ClosedTrade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ClosedAt.After(sorted[j].ClosedAt)
	})

	streak := 0
	for _, t := range sorted {
		if t.amount() >= 0 {
			break
		}
		streak++
	}
	return streak
}

// Evaluate recomputes the breaker verdict from the trades closed within the
// lookback window. It trips on excessive drawdown or loss streak, and while
// tripped checks the recovery conditions.
func (b *Breaker) Evaluate(trades []ClosedTrade, now time.Time) Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.cfg.Enabled {
		return Status{RiskMultiplier: 1.0, FrequencyMultiplier: 1.0}
	}

	cutoff := now.AddDate(0, 0, -b.cfg.LookbackDays)
	var window []ClosedTrade
	for _, t := range trades {
		if !t.ClosedAt.Before(cutoff) {
			window = append(window, t)
		}
	}

	drawdown := maxDrawdown(window)
	streak := lossStreak(window)

	if !b.st.Active {
		switch {
		case drawdown >= b.cfg.MaxDrawdownPercent:
			b.trip(fmt.Sprintf("drawdown %.1f%% exceeded %.1f%% limit", drawdown, b.cfg.MaxDrawdownPercent), drawdown, streak, now)
		case streak >= b.cfg.LossStreakThreshold:
			b.trip(fmt.Sprintf("%d consecutive losses reached %d limit", streak, b.cfg.LossStreakThreshold), drawdown, streak, now)
		}
	} else if b.recovered(window, now) {
		b.logger.Info("Circuit breaker recovered, resuming normal operation")
		b.st = state{}
		b.saveState()
		if b.bus != nil {
			b.bus.Publish(events.Event{Type: events.EventCircuitRecovered, Data: map[string]interface{}{}})
		}
	}

	return b.statusLocked(drawdown, streak)
}

func (b *Breaker) trip(reason string, drawdown float64, streak int, now time.Time) {
	b.logger.Warn("Circuit breaker TRIPPED: %s", reason)
	b.st = state{Active: true, Reason: reason, TrippedAt: now}
	b.saveState()
	if b.bus != nil {
		b.bus.PublishCircuitTripped(reason, drawdown, streak)
	}
}

// recovered requires at least one full day tripped, positive P&L over the
// last three days, and that recovery to reach the configured percent of
// reference equity.
func (b *Breaker) recovered(window []ClosedTrade, now time.Time) bool {
	if now.Sub(b.st.TrippedAt) < 24*time.Hour {
		return false
	}
	cutoff := now.AddDate(0, 0, -3)
	recent := 0.0
	for _, t := range window {
		if !t.ClosedAt.Before(cutoff) {
			recent += t.amount()
		}
	}
	if recent <= 0 {
		return false
	}
	return recent/referenceEquity*100 >= b.cfg.RecoveryThreshold
}

func (b *Breaker) statusLocked(drawdown float64, streak int) Status {
	st := Status{
		RiskMultiplier:      1.0,
		FrequencyMultiplier: 1.0,
		DrawdownPercent:     drawdown,
		LossStreak:          streak,
	}
	if b.st.Active {
		st.Active = true
		st.Reason = b.st.Reason
		st.TrippedAt = b.st.TrippedAt
		st.RiskMultiplier = b.cfg.RiskReduction
		st.FrequencyMultiplier = b.cfg.RiskReduction
	}
	return st
}

// Status returns the current verdict without re-evaluating trades.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusLocked(0, 0)
}

// Reset clears the tripped state. Operator use only.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st = state{}
	b.saveState()
	b.logger.Info("Circuit breaker manually reset")
}
