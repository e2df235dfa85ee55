// Package ledger tracks the bot's open trades. The ledger is the single
// source of truth for what the bot believes it has open; the broker is
// reconciled against it at the end of every session.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/logging"
)

// StaleAge is how long an entry may sit in the ledger before cleanup
// removes it as abandoned.
const StaleAge = 72 * time.Hour

// Entry is one tracked open trade.
type Entry struct {
	TradeID    string    `json:"trade_id"`
	Symbol     string    `json:"symbol"`
	Direction  string    `json:"direction"` // "buy" or "sell"
	EntryPrice float64   `json:"entry_price"`
	Units      int       `json:"units"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	OpenedAt   time.Time `json:"opened_at"`
}

// Ledger is a mutex-guarded in-memory set of open trades persisted to a
// JSON file. Writes go through a temp file and an atomic rename so a crash
// mid-write never corrupts the file.
type Ledger struct {
	mu      sync.Mutex
	path    string
	entries []Entry
	logger  *logging.Logger
}

// Load reads the ledger file, creating an empty ledger when the file does
// not exist. A corrupt file is treated as empty rather than fatal.
func Load(path string) (*Ledger, error) {
	l := &Ledger{
		path:   path,
		logger: logging.WithComponent("ledger"),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &l.entries); err != nil {
		l.logger.Warn("Ledger file %s is corrupt, starting empty: %v", path, err)
		l.entries = nil
	}
	return l, nil
}

// save writes the entries to disk atomically. Caller holds the mutex.
func (l *Ledger) save() error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: encoding: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("ledger: creating directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("ledger: writing temp file: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("ledger: replacing %s: %w", l.path, err)
	}
	return nil
}

// Add records a new open trade. It returns false without modifying the
// ledger when the trade ID is already present or another open trade holds
// the same symbol and direction.
func (l *Ledger) Add(entry Entry) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.TradeID == entry.TradeID {
			l.logger.Warn("Rejected duplicate trade ID %s", entry.TradeID)
			return false
		}
		if broker.NormalizeSymbol(e.Symbol) == broker.NormalizeSymbol(entry.Symbol) && e.Direction == entry.Direction {
			l.logger.Warn("Rejected duplicate position %s %s (existing trade %s)", entry.Symbol, entry.Direction, e.TradeID)
			return false
		}
	}

	if entry.OpenedAt.IsZero() {
		entry.OpenedAt = time.Now().UTC()
	}
	l.entries = append(l.entries, entry)
	if err := l.save(); err != nil {
		l.logger.Error("Failed to persist ledger: %v", err)
	}
	return true
}

// Remove deletes a trade by ID and reports whether an entry was actually
// removed. Removing an absent ID is a no-op.
func (l *Ledger) Remove(tradeID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	removed := false
	for _, e := range l.entries {
		if e.TradeID == tradeID {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	if removed {
		if err := l.save(); err != nil {
			l.logger.Error("Failed to persist ledger: %v", err)
		}
	}
	return removed
}

// Get returns the entry for a trade ID.
func (l *Ledger) Get(tradeID string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.TradeID == tradeID {
			return e, true
		}
	}
	return Entry{}, false
}

// Has reports whether a trade with the given symbol and direction is open.
func (l *Ledger) Has(symbol, direction string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	norm := broker.NormalizeSymbol(symbol)
	for _, e := range l.entries {
		if broker.NormalizeSymbol(e.Symbol) == norm && e.Direction == direction {
			return true
		}
	}
	return false
}

// HasSymbol reports whether any open trade holds the symbol in either
// direction.
func (l *Ledger) HasSymbol(symbol string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	norm := broker.NormalizeSymbol(symbol)
	for _, e := range l.entries {
		if broker.NormalizeSymbol(e.Symbol) == norm {
			return true
		}
	}
	return false
}

// All returns a copy of the entries sorted by open time, oldest first.
func (l *Ledger) All() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	sort.Slice(out, func(i, j int) bool {
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

// Size returns the number of tracked trades.
func (l *Ledger) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// CleanupStale removes entries older than StaleAge and returns how many
// were dropped. Entries with a zero open time are kept.
func (l *Ledger) CleanupStale(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	dropped := 0
	for _, e := range l.entries {
		if !e.OpenedAt.IsZero() && now.Sub(e.OpenedAt) > StaleAge {
			l.logger.Warn("Dropping stale ledger entry %s (%s, opened %s)", e.TradeID, e.Symbol, e.OpenedAt.Format(time.RFC3339))
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	if dropped > 0 {
		if err := l.save(); err != nil {
			l.logger.Error("Failed to persist ledger: %v", err)
		}
	}
	return dropped
}

// Reconcile compares the ledger against the broker's open trade list and
// removes entries the broker no longer knows. It returns the removed trade
// IDs. Broker errors leave the ledger untouched.
func (l *Ledger) Reconcile(ctx context.Context, client broker.Client) ([]string, error) {
	openIDs, err := client.ListOpenTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: listing open trades: %w", err)
	}

	open := make(map[string]bool, len(openIDs))
	for _, id := range openIDs {
		open[id] = true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	var removed []string
	for _, e := range l.entries {
		if open[e.TradeID] {
			kept = append(kept, e)
			continue
		}
		removed = append(removed, e.TradeID)
		l.logger.Info("Reconciliation: trade %s (%s) no longer open at broker, removing", e.TradeID, e.Symbol)
	}
	l.entries = kept
	if len(removed) > 0 {
		if err := l.save(); err != nil {
			l.logger.Error("Failed to persist ledger: %v", err)
		}
	}
	return removed, nil
}

// Stats summarizes the ledger for status endpoints.
type Stats struct {
	Total     int            `json:"total"`
	BySymbol  map[string]int `json:"by_symbol"`
	ByDir     map[string]int `json:"by_direction"`
	OldestAge time.Duration  `json:"oldest_age"`
}

// Summary computes ledger statistics.
func (l *Ledger) Summary(now time.Time) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{
		Total:    len(l.entries),
		BySymbol: make(map[string]int),
		ByDir:    make(map[string]int),
	}
	for _, e := range l.entries {
		stats.BySymbol[broker.NormalizeSymbol(e.Symbol)]++
		stats.ByDir[e.Direction]++
		if !e.OpenedAt.IsZero() {
			if age := now.Sub(e.OpenedAt); age > stats.OldestAge {
				stats.OldestAge = age
			}
		}
	}
	return stats
}
