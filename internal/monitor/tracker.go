package monitor

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Tracker emits one structured JSON line per position lifecycle event.
// The stream is meant for offline analysis of stop management, separate
// from the operational log.
type Tracker struct {
	logger zerolog.Logger
}

// NewTracker writes lifecycle events to w. Pass os.Stdout for local runs
// or an opened append-only file in production.
func NewTracker(w io.Writer) *Tracker {
	if w == nil {
		w = os.Stdout
	}
	logger := zerolog.New(w).With().
		Timestamp().
		Str("component", "PositionMonitor").
		Logger()
	return &Tracker{logger: logger}
}

// NewFileTracker appends lifecycle events to the given path.
func NewFileTracker(path string) (*Tracker, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return NewTracker(f), nil
}

func (t *Tracker) trade(tradeID, symbol string) *zerolog.Event {
	return t.logger.Info().Str("trade_id", tradeID).Str("symbol", symbol)
}

// Started records a monitor attaching to a trade.
func (t *Tracker) Started(tradeID, symbol, direction string, entry, sl, tp float64) {
	t.trade(tradeID, symbol).
		Str("event", "MONITOR_STARTED").
		Str("direction", direction).
		Float64("entry", entry).
		Float64("stop_loss", sl).
		Float64("take_profit", tp).
		Msg("monitoring started")
}

// Breakeven records the stop moving to the entry price.
func (t *Tracker) Breakeven(tradeID, symbol string, newStop, profitR float64) {
	t.trade(tradeID, symbol).
		Str("event", "BREAKEVEN_SET").
		Float64("new_stop", newStop).
		Float64("profit_r", profitR).
		Msg("stop moved to breakeven")
}

// Trailed records a trailing stop adjustment.
func (t *Tracker) Trailed(tradeID, symbol string, oldStop, newStop, profitR, atrMult float64) {
	t.trade(tradeID, symbol).
		Str("event", "STOP_TRAILED").
		Float64("old_stop", oldStop).
		Float64("new_stop", newStop).
		Float64("profit_r", profitR).
		Float64("atr_mult", atrMult).
		Msg("trailing stop tightened")
}

// PartialClosed records the one-time partial profit take.
func (t *Tracker) PartialClosed(tradeID, symbol string, closedUnits int, price, profitPips float64) {
	t.trade(tradeID, symbol).
		Str("event", "PARTIAL_CLOSE").
		Int("closed_units", closedUnits).
		Float64("price", price).
		Float64("profit_pips", profitPips).
		Msg("partial position closed")
}

// Closed records the trade leaving the book with its classified reason.
func (t *Tracker) Closed(tradeID, symbol string, reason CloseReason, finalPrice float64) {
	t.trade(tradeID, symbol).
		Str("event", "TRADE_CLOSED").
		Str("reason", string(reason)).
		Float64("final_price", finalPrice).
		Msg("trade closed")
}

// Abandoned records a monitor giving up on a trade after a fatal broker
// response. The ledger entry stays for reconciliation.
func (t *Tracker) Abandoned(tradeID, symbol string, err error) {
	t.logger.Error().
		Str("trade_id", tradeID).
		Str("symbol", symbol).
		Str("event", "MONITOR_ABANDONED").
		Err(err).
		Msg("monitoring abandoned on fatal lookup")
}
