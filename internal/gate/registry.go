package gate

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/logging"
)

// IdeaRecord is one executed trade idea kept for freshness and cooldown
// checks.
type IdeaRecord struct {
	Symbol     string    `json:"symbol"`
	Direction  string    `json:"direction"`
	Rationale  string    `json:"rationale"`
	EntryPrice float64   `json:"entry_price"`
	ATR        float64   `json:"atr"`
	Timestamp  time.Time `json:"timestamp"`
}

type registryFile struct {
	History []IdeaRecord `json:"history"`
}

// Registry persists executed trade ideas so near-identical setups are not
// re-entered while still fresh. Saves are atomic; a corrupt file starts
// empty.
type Registry struct {
	mu      sync.Mutex
	path    string
	history []IdeaRecord
	logger  *logging.Logger
}

// LoadRegistry reads the registry file, creating an empty registry when the
// file does not exist.
func LoadRegistry(path string) (*Registry, error) {
	r := &Registry{
		path:   path,
		logger: logging.WithComponent("gate"),
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, err
	}
	var f registryFile
	if err := json.Unmarshal(data, &f); err != nil {
		r.logger.Warn("Corrupt idea registry %s, starting empty: %v", path, err)
		return r, nil
	}
	r.history = f.History
	return r, nil
}

// save writes the history to disk. Caller holds the mutex.
func (r *Registry) save() {
	data, err := json.MarshalIndent(registryFile{History: r.history}, "", "  ")
	if err != nil {
		return
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		r.logger.Error("Failed to write idea registry: %v", err)
		return
	}
	if err := os.Rename(tmp, r.path); err != nil {
		r.logger.Error("Failed to replace idea registry: %v", err)
	}
}

// Record appends an executed idea and prunes entries older than the
// lookback window, keeping the file bounded.
func (r *Registry) Record(rec IdeaRecord, lookback time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	r.history = append(r.history, rec)

	cutoff := rec.Timestamp.Add(-lookback)
	kept := r.history[:0]
	for _, h := range r.history {
		if !h.Timestamp.Before(cutoff) {
			kept = append(kept, h)
		}
	}
	r.history = kept
	r.save()
}

// Last returns the most recent record for a symbol and direction.
func (r *Registry) Last(symbol, direction string) (IdeaRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	norm := broker.NormalizeSymbol(symbol)
	for i := len(r.history) - 1; i >= 0; i-- {
		h := r.history[i]
		if broker.NormalizeSymbol(h.Symbol) == norm && h.Direction == direction {
			return h, true
		}
	}
	return IdeaRecord{}, false
}

// Size returns the number of recorded ideas.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

var (
	urlPattern   = regexp.MustCompile(`https?://\S+`)
	tokenPattern = regexp.MustCompile(`[a-z0-9.:_]+`)
)

// Tokenize normalizes a rationale into a token set for similarity
// comparison. URLs are stripped first so link noise never inflates overlap.
func Tokenize(text string) map[string]struct{} {
	lower := strings.ToLower(text)
	lower = urlPattern.ReplaceAllString(lower, " ")
	tokens := make(map[string]struct{})
	for _, tok := range tokenPattern.FindAllString(lower, -1) {
		tokens[tok] = struct{}{}
	}
	return tokens
}

// Jaccard returns the Jaccard similarity of two token sets. Two empty sets
// are identical.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// MostSimilar returns the highest Jaccard similarity between the rationale
// and any recorded idea for the same symbol and direction within the
// lookback window.
func (r *Registry) MostSimilar(symbol, direction, rationale string, lookback time.Duration, now time.Time) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	norm := broker.NormalizeSymbol(symbol)
	tokens := Tokenize(rationale)
	cutoff := now.Add(-lookback)

	best := 0.0
	for _, h := range r.history {
		if h.Timestamp.Before(cutoff) {
			continue
		}
		if broker.NormalizeSymbol(h.Symbol) != norm || h.Direction != direction {
			continue
		}
		if sim := Jaccard(tokens, Tokenize(h.Rationale)); sim > best {
			best = sim
		}
	}
	return best
}
