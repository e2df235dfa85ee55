package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// RecordTradeOpen upserts a trade open row keyed by the broker trade ID, so
// a retried write after a crash never creates a duplicate.
func (r *Repository) RecordTradeOpen(ctx context.Context, trade *TradeRecord) error {
	query := `
		INSERT INTO trades (external_id, instrument, side, units, entry_price, stop_loss, take_profit, reason_open, opened_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'OPEN')
		ON CONFLICT (external_id) DO UPDATE
		SET instrument = EXCLUDED.instrument,
		    side = EXCLUDED.side,
		    units = EXCLUDED.units,
		    entry_price = EXCLUDED.entry_price,
		    stop_loss = EXCLUDED.stop_loss,
		    take_profit = EXCLUDED.take_profit,
		    reason_open = EXCLUDED.reason_open,
		    updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		trade.ExternalID, trade.Instrument, trade.Side, trade.Units, trade.EntryPrice,
		trade.StopLoss, trade.TakeProfit, trade.ReasonOpen, trade.OpenedAt,
	).Scan(&trade.ID)
}

// RecordTradeClose marks a trade closed with its exit price and net P&L.
func (r *Repository) RecordTradeClose(ctx context.Context, externalID string, exitPrice, pnlNet float64, reasonClose string, closedAt time.Time) error {
	query := `
		UPDATE trades
		SET exit_price = $2, pnl_net = $3, reason_close = $4, closed_at = $5,
		    status = 'CLOSED', updated_at = CURRENT_TIMESTAMP
		WHERE external_id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query, externalID, exitPrice, pnlNet, reasonClose, closedAt)
	return err
}

// GetTradeByExternalID retrieves a trade by its broker trade ID
func (r *Repository) GetTradeByExternalID(ctx context.Context, externalID string) (*TradeRecord, error) {
	query := `
		SELECT id, external_id, instrument, side, units, entry_price, exit_price,
		       stop_loss, take_profit, pnl_net, COALESCE(reason_open, ''), COALESCE(reason_close, ''),
		       opened_at, closed_at, status
		FROM trades
		WHERE external_id = $1
	`
	trade := &TradeRecord{}
	err := r.db.Pool.QueryRow(ctx, query, externalID).Scan(
		&trade.ID, &trade.ExternalID, &trade.Instrument, &trade.Side, &trade.Units,
		&trade.EntryPrice, &trade.ExitPrice, &trade.StopLoss, &trade.TakeProfit,
		&trade.PnLNet, &trade.ReasonOpen, &trade.ReasonClose,
		&trade.OpenedAt, &trade.ClosedAt, &trade.Status,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// ClosedTradesSince returns closed trades with closed_at after the cutoff,
// newest first. The circuit breaker reads its lookback window through this.
func (r *Repository) ClosedTradesSince(ctx context.Context, cutoff time.Time) ([]TradeRecord, error) {
	query := `
		SELECT id, external_id, instrument, side, units, entry_price, exit_price,
		       stop_loss, take_profit, pnl_net, COALESCE(reason_open, ''), COALESCE(reason_close, ''),
		       opened_at, closed_at, status
		FROM trades
		WHERE status = 'CLOSED' AND closed_at >= $1
		ORDER BY closed_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var trade TradeRecord
		if err := rows.Scan(
			&trade.ID, &trade.ExternalID, &trade.Instrument, &trade.Side, &trade.Units,
			&trade.EntryPrice, &trade.ExitPrice, &trade.StopLoss, &trade.TakeProfit,
			&trade.PnLNet, &trade.ReasonOpen, &trade.ReasonClose,
			&trade.OpenedAt, &trade.ClosedAt, &trade.Status,
		); err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// OpenTradeRecords returns all trades still marked OPEN.
func (r *Repository) OpenTradeRecords(ctx context.Context) ([]TradeRecord, error) {
	query := `
		SELECT id, external_id, instrument, side, units, entry_price, exit_price,
		       stop_loss, take_profit, pnl_net, COALESCE(reason_open, ''), COALESCE(reason_close, ''),
		       opened_at, closed_at, status
		FROM trades
		WHERE status = 'OPEN'
		ORDER BY opened_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var trade TradeRecord
		if err := rows.Scan(
			&trade.ID, &trade.ExternalID, &trade.Instrument, &trade.Side, &trade.Units,
			&trade.EntryPrice, &trade.ExitPrice, &trade.StopLoss, &trade.TakeProfit,
			&trade.PnLNet, &trade.ReasonOpen, &trade.ReasonClose,
			&trade.OpenedAt, &trade.ClosedAt, &trade.Status,
		); err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// RecordScanSnapshot persists one scored opportunity.
func (r *Repository) RecordScanSnapshot(ctx context.Context, snap *ScanSnapshot) error {
	query := `
		INSERT INTO scan_snapshots (scan_id, instrument, direction, score, confidence, reasons)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		snap.ScanID, snap.Instrument, snap.Direction, snap.Score, snap.Confidence, snap.Reasons,
	).Scan(&snap.ID, &snap.CreatedAt)
}

// RecordGateDecision persists one admission gate verdict.
func (r *Repository) RecordGateDecision(ctx context.Context, dec *GateDecision) error {
	query := `
		INSERT INTO gate_decisions (instrument, direction, allowed, block_reason, detail)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		dec.Instrument, dec.Direction, dec.Allowed, dec.BlockReason, dec.Detail,
	).Scan(&dec.ID, &dec.CreatedAt)
}

// RecentGateDecisions returns the latest gate verdicts, newest first.
func (r *Repository) RecentGateDecisions(ctx context.Context, limit int) ([]GateDecision, error) {
	query := `
		SELECT id, instrument, direction, allowed, COALESCE(block_reason, ''), COALESCE(detail, ''), created_at
		FROM gate_decisions
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []GateDecision
	for rows.Next() {
		var dec GateDecision
		if err := rows.Scan(&dec.ID, &dec.Instrument, &dec.Direction, &dec.Allowed, &dec.BlockReason, &dec.Detail, &dec.CreatedAt); err != nil {
			return nil, err
		}
		decisions = append(decisions, dec)
	}
	return decisions, rows.Err()
}
