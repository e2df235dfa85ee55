package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"oanda-trading-bot/internal/logging"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger *logging.Logger
}

// NewDB creates a new database connection from a pgx connection URL
func NewDB(url string) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	// Configure connection pool
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger := logging.WithComponent("database")
	logger.Info("Connected to PostgreSQL")

	return &DB{Pool: pool, logger: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info("Running database migrations...")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id SERIAL PRIMARY KEY,
			external_id VARCHAR(40) NOT NULL UNIQUE,
			instrument VARCHAR(20) NOT NULL,
			side VARCHAR(4) NOT NULL,
			units INTEGER NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			exit_price DECIMAL(20, 8),
			stop_loss DECIMAL(20, 8),
			take_profit DECIMAL(20, 8),
			pnl_net DECIMAL(20, 8),
			reason_open TEXT,
			reason_close VARCHAR(40),
			opened_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ,
			status VARCHAR(10) NOT NULL DEFAULT 'OPEN',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_instrument ON trades(instrument)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at)`,
		`CREATE TABLE IF NOT EXISTS scan_snapshots (
			id SERIAL PRIMARY KEY,
			scan_id VARCHAR(40) NOT NULL,
			instrument VARCHAR(20) NOT NULL,
			direction VARCHAR(4) NOT NULL,
			score DECIMAL(10, 4) NOT NULL,
			confidence VARCHAR(10) NOT NULL,
			reasons TEXT,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_snapshots_scan_id ON scan_snapshots(scan_id)`,
		`CREATE TABLE IF NOT EXISTS gate_decisions (
			id SERIAL PRIMARY KEY,
			instrument VARCHAR(20) NOT NULL,
			direction VARCHAR(4) NOT NULL,
			allowed BOOLEAN NOT NULL,
			block_reason VARCHAR(30),
			detail TEXT,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_gate_decisions_instrument ON gate_decisions(instrument)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info("Database migrations completed")
	return nil
}
