// Package execution turns an approved plan into a broker order: it
// samples the entry, derives the final stop and target, sizes the
// position, submits, and records the fill everywhere it must be known.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/database"
	"oanda-trading-bot/internal/events"
	"oanda-trading-bot/internal/gate"
	"oanda-trading-bot/internal/indicators"
	"oanda-trading-bot/internal/ledger"
	"oanda-trading-bot/internal/logging"
)

// ErrDuplicatePosition means the ledger already tracks a trade on the
// symbol, so no order was placed.
var ErrDuplicatePosition = errors.New("execution: position already open for symbol")

// TradePersister is the slice of the trade store the executor needs.
// Persistence is best effort: a store failure never unwinds a live fill.
type TradePersister interface {
	RecordTradeOpen(ctx context.Context, rec *database.TradeRecord) error
}

// Request is one approved candidate handed to the executor.
type Request struct {
	Symbol        string
	Direction     string // "buy" or "sell"
	Rationale     string
	RiskFraction  float64 // account fraction, takes effect when AllocationPct is 0
	AllocationPct float64 // percent of balance, overrides risk sizing
}

// Result reports the submitted order after the fill confirmation.
type Result struct {
	TradeID    string
	Symbol     string
	Direction  string
	Units      int
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
}

// Executor submits orders and fans the fill out to the ledger, the idea
// registry, the trade store, and the event bus.
type Executor struct {
	cfg      config.ExecutionConfig
	client   broker.Client
	ledger   *ledger.Ledger
	registry *gate.Registry
	store    TradePersister // nil when persistence is disabled
	bus      *events.EventBus
	logger   *logging.Logger

	ideaLookback time.Duration
}

// NewExecutor wires the executor. store and bus may be nil.
func NewExecutor(cfg config.ExecutionConfig, client broker.Client, led *ledger.Ledger,
	registry *gate.Registry, store TradePersister, bus *events.EventBus, ideaLookback time.Duration) *Executor {
	return &Executor{
		cfg:          cfg,
		client:       client,
		ledger:       led,
		registry:     registry,
		store:        store,
		bus:          bus,
		logger:       logging.WithComponent("execution"),
		ideaLookback: ideaLookback,
	}
}

// Execute places a market order for the request. The entry is sampled
// from two quotes to dodge a momentary spike, levels are derived from H4
// and M15 volatility, and the fill is recorded before returning. An
// invalid level computation aborts before anything reaches the broker.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if e.ledger.HasSymbol(req.Symbol) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePosition, req.Symbol)
	}

	entry, err := e.sampleEntry(ctx, req.Symbol, req.Direction)
	if err != nil {
		return nil, fmt.Errorf("execution: entry sampling for %s: %w", req.Symbol, err)
	}

	h4ATR, m15ATR, m15, err := e.volatility(ctx, req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("execution: volatility reads for %s: %w", req.Symbol, err)
	}

	levels, err := ComputeLevels(e.cfg, req.Symbol, req.Direction, entry, h4ATR, m15ATR, m15)
	if err != nil {
		e.logger.Error("Aborting %s %s order: %v", req.Symbol, req.Direction, err)
		if e.bus != nil {
			e.bus.PublishError("execution", "order aborted on invalid levels", err)
		}
		return nil, err
	}

	balance, err := e.client.AccountBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("execution: account balance: %w", err)
	}
	units := PositionUnits(e.cfg, balance, req.RiskFraction, req.AllocationPct, levels.RiskDistance())
	if units <= 0 {
		return nil, fmt.Errorf("execution: sized %s to zero units (balance %.2f)", req.Symbol, balance)
	}

	signedUnits := units
	if req.Direction == "sell" {
		signedUnits = -units
	}

	fill, err := e.client.SubmitMarketOrder(ctx, broker.OrderRequest{
		Instrument: req.Symbol,
		Units:      signedUnits,
		StopLoss:   levels.StopLoss,
		TakeProfit: levels.TakeProfit,
	})
	if err != nil {
		return nil, fmt.Errorf("execution: order for %s: %w", req.Symbol, err)
	}

	entryPrice := fill.FillPrice
	if entryPrice <= 0 {
		entryPrice = levels.Entry
	}

	e.recordFill(ctx, req, fill.TradeID, entryPrice, levels, signedUnits)

	e.logger.Info("Opened %s %s trade %s: %d units @ %.5f sl=%.5f tp=%.5f",
		req.Symbol, req.Direction, fill.TradeID, signedUnits, entryPrice, levels.StopLoss, levels.TakeProfit)

	return &Result{
		TradeID:    fill.TradeID,
		Symbol:     req.Symbol,
		Direction:  req.Direction,
		Units:      signedUnits,
		EntryPrice: entryPrice,
		StopLoss:   levels.StopLoss,
		TakeProfit: levels.TakeProfit,
	}, nil
}

// sampleEntry takes two quotes a breath apart and uses the conservative
// side: the lower ask for a buy, the higher bid for a sell.
func (e *Executor) sampleEntry(ctx context.Context, symbol, direction string) (float64, error) {
	first, err := e.client.GetQuote(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if e.cfg.QuoteSampleDelay > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Duration(e.cfg.QuoteSampleDelay) * time.Second):
		}
	}
	second, err := e.client.GetQuote(ctx, symbol)
	if err != nil {
		second = first
	}

	if direction == "buy" {
		if first.Ask < second.Ask {
			return first.Ask, nil
		}
		return second.Ask, nil
	}
	if first.Bid > second.Bid {
		return first.Bid, nil
	}
	return second.Bid, nil
}

// volatility reads the H4 ATR for the primary stop distance and the M15
// ATR for the stop floor and swing window.
func (e *Executor) volatility(ctx context.Context, symbol string) (h4ATR, m15ATR float64, m15 []broker.Candle, err error) {
	h4, err := e.client.GetCandles(ctx, symbol, "H4", 60)
	if err != nil {
		return 0, 0, nil, err
	}
	highs := make([]float64, len(h4))
	lows := make([]float64, len(h4))
	closeSeries := make([]float64, len(h4))
	for i, c := range h4 {
		highs[i] = c.High
		lows[i] = c.Low
		closeSeries[i] = c.Close
	}
	h4ATR, ok := indicators.ATRWilder(highs, lows, closeSeries, 14)
	if !ok {
		return 0, 0, nil, broker.ErrInsufficientData
	}

	m15, err = e.client.GetCandles(ctx, symbol, "M15", 30)
	if err != nil {
		// The H4 stop still works alone; the floor just does not apply.
		e.logger.Warn("%s M15 candles unavailable, stop floor skipped: %v", symbol, err)
		return h4ATR, 0, nil, nil
	}
	return h4ATR, m15StopATR(m15), m15, nil
}

// recordFill fans the confirmed fill out to every store. Only the ledger
// is load-bearing; registry and database failures are logged and dropped.
func (e *Executor) recordFill(ctx context.Context, req Request, tradeID string, entryPrice float64, levels Levels, signedUnits int) {
	now := time.Now().UTC()

	if !e.ledger.Add(ledger.Entry{
		TradeID:    tradeID,
		Symbol:     req.Symbol,
		Direction:  req.Direction,
		EntryPrice: entryPrice,
		Units:      signedUnits,
		StopLoss:   levels.StopLoss,
		TakeProfit: levels.TakeProfit,
		OpenedAt:   now,
	}) {
		e.logger.Error("Ledger rejected trade %s after fill, monitor will not track it", tradeID)
	}

	if e.registry != nil {
		e.registry.Record(gate.IdeaRecord{
			Symbol:     req.Symbol,
			Direction:  req.Direction,
			Rationale:  req.Rationale,
			EntryPrice: entryPrice,
			Timestamp:  now,
		}, e.ideaLookback)
	}

	if e.store != nil {
		sl, tp := levels.StopLoss, levels.TakeProfit
		if err := e.store.RecordTradeOpen(ctx, &database.TradeRecord{
			ExternalID: tradeID,
			Instrument: req.Symbol,
			Side:       req.Direction,
			Units:      signedUnits,
			EntryPrice: entryPrice,
			StopLoss:   &sl,
			TakeProfit: &tp,
			ReasonOpen: req.Rationale,
			OpenedAt:   now,
			Status:     "OPEN",
		}); err != nil {
			e.logger.Warn("Trade %s not persisted: %v", tradeID, err)
		}
	}

	if e.bus != nil {
		e.bus.PublishTradeOpened(tradeID, req.Symbol, req.Direction, entryPrice, levels.StopLoss, levels.TakeProfit, signedUnits)
	}
}
