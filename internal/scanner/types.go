package scanner

import (
	"strings"
	"time"
)

// Opportunity is one scored trade candidate emitted by a scan.
type Opportunity struct {
	ScanID         string    `json:"scan_id"`
	Symbol         string    `json:"symbol"`
	Direction      string    `json:"direction"` // "buy" or "sell"
	Score          float64   `json:"score"`     // after correlation adjustment
	RawScore       float64   `json:"raw_score"`
	Confidence     string    `json:"confidence"` // "high", "medium", "low"
	Reasons        []string  `json:"reasons"`
	EntryPrice     float64   `json:"entry_price"`
	StopLoss       float64   `json:"stop_loss"`
	TakeProfit     float64   `json:"take_profit"`
	ATR            float64   `json:"atr"`
	RSI            float64   `json:"rsi"`
	ATRPercent     float64   `json:"atr_percent"`
	RangePosition  float64   `json:"range_position"`
	TrendAligned   bool      `json:"trend_aligned"`
	SessionQuality float64   `json:"session_quality"`
	Correlation    float64   `json:"correlation"`
	Time           time.Time `json:"time"`
}

// Rationale joins the reasons into the free-text form the idea registry
// compares for freshness.
func (o Opportunity) Rationale() string {
	return strings.Join(o.Reasons, "; ")
}

// ScanResult aggregates the opportunities from one scan cycle.
type ScanResult struct {
	ScanID          string        `json:"scan_id"`
	StartTime       time.Time     `json:"start_time"`
	Duration        time.Duration `json:"duration"`
	SymbolsScanned  int           `json:"symbols_scanned"`
	SymbolsSkipped  int           `json:"symbols_skipped"`
	Opportunities   []Opportunity `json:"opportunities"`
}
