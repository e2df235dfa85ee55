package database

import "time"

// TradeRecord is one row of the trade history table.
type TradeRecord struct {
	ID          int64      `json:"id"`
	ExternalID  string     `json:"external_id"`
	Instrument  string     `json:"instrument"`
	Side        string     `json:"side"`
	Units       int        `json:"units"`
	EntryPrice  float64    `json:"entry_price"`
	ExitPrice   *float64   `json:"exit_price,omitempty"`
	StopLoss    *float64   `json:"stop_loss,omitempty"`
	TakeProfit  *float64   `json:"take_profit,omitempty"`
	PnLNet      *float64   `json:"pnl_net,omitempty"`
	ReasonOpen  string     `json:"reason_open"`
	ReasonClose string     `json:"reason_close"`
	OpenedAt    time.Time  `json:"opened_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	Status      string     `json:"status"`
}

// ScanSnapshot is one scored opportunity persisted for later analysis.
type ScanSnapshot struct {
	ID         int64     `json:"id"`
	ScanID     string    `json:"scan_id"`
	Instrument string    `json:"instrument"`
	Direction  string    `json:"direction"`
	Score      float64   `json:"score"`
	Confidence string    `json:"confidence"`
	Reasons    string    `json:"reasons"`
	CreatedAt  time.Time `json:"created_at"`
}

// GateDecision is one admission gate verdict persisted for auditability.
type GateDecision struct {
	ID          int64     `json:"id"`
	Instrument  string    `json:"instrument"`
	Direction   string    `json:"direction"`
	Allowed     bool      `json:"allowed"`
	BlockReason string    `json:"block_reason"`
	Detail      string    `json:"detail"`
	CreatedAt   time.Time `json:"created_at"`
}
