package broker

import (
	"context"
	"errors"
)

// ErrNoTradeID is returned when a filled order's confirmation carries no
// extractable trade ID. The trade exists at the broker but cannot be tracked,
// so callers must treat this as fatal rather than continue silently.
var ErrNoTradeID = errors.New("broker: fill confirmation carried no trade ID")

// ErrInsufficientData is returned when the gateway has no candles or no
// quote for an instrument. It is an abstention signal, not a failure.
var ErrInsufficientData = errors.New("broker: insufficient market data")

// Client is the combined market-data and execution interface the bot
// depends on. Every call takes a context and blocks until completion.
type Client interface {
	// GetCandles returns up to count most recent candles for the
	// instrument at the given granularity (e.g. "H4", "M15", "M10", "D").
	GetCandles(ctx context.Context, instrument, granularity string, count int) ([]Candle, error)

	// GetQuote returns the current bid/ask for the instrument.
	GetQuote(ctx context.Context, instrument string) (*Quote, error)

	// SubmitMarketOrder places a market order with SL/TP attached on fill
	// and returns the broker-assigned trade ID and fill price.
	SubmitMarketOrder(ctx context.Context, req OrderRequest) (*FillConfirmation, error)

	// LookupTrade fetches the live state of a trade. The result is tagged:
	// not-found is an expected terminal signal for the monitor, transient
	// errors are retried on the next poll tick.
	LookupTrade(ctx context.Context, tradeID string) TradeLookup

	// UpdateStopLoss replaces the trade's stop loss order. Repeated calls
	// with identical values are harmless.
	UpdateStopLoss(ctx context.Context, tradeID string, price float64) error

	// ClosePartial closes the given number of units of an open trade.
	ClosePartial(ctx context.Context, tradeID string, units int) error

	// ListOpenTrades returns the IDs of all currently open trades, used by
	// ledger reconciliation.
	ListOpenTrades(ctx context.Context) ([]string, error)

	// AccountBalance returns the current account balance.
	AccountBalance(ctx context.Context) (float64, error)
}

// Compile-time interface checks.
var (
	_ Client = (*OandaClient)(nil)
	_ Client = (*MockClient)(nil)
)
