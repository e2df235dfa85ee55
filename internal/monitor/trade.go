package monitor

import (
	"context"
	"math"
	"strings"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/events"
	"oanda-trading-bot/internal/indicators"
	"oanda-trading-bot/internal/ledger"
	"oanda-trading-bot/internal/logging"
)

// atrRefreshTicks is how many poll ticks an ATR reading stays fresh.
const atrRefreshTicks = 10

// TradeCloser is the slice of the trade store the monitor writes to when
// a trade leaves the book. Best effort.
type TradeCloser interface {
	RecordTradeClose(ctx context.Context, externalID string, exitPrice, pnlNet float64, reasonClose string, closedAt time.Time) error
}

// tradeMonitor manages one open trade: breakeven, the one-time partial
// close, and progressive ATR trailing, until the trade disappears from
// the broker.
type tradeMonitor struct {
	cfg     config.MonitorConfig
	client  broker.Client
	led     *ledger.Ledger
	bus     *events.EventBus
	tracker *Tracker
	store   TradeCloser
	logger  *logging.Logger

	entry     ledger.Entry
	riskDist  float64 // entry to initial stop, fixed at attach time
	currentSL float64
	lastPrice float64
	atr       float64
	atrTicks  int

	breakevenSet bool
	partialDone  bool
	reducedSeen  bool // the broker reported fewer units than opened
}

func newTradeMonitor(cfg config.MonitorConfig, client broker.Client, led *ledger.Ledger,
	bus *events.EventBus, tracker *Tracker, store TradeCloser, entry ledger.Entry) *tradeMonitor {
	return &tradeMonitor{
		cfg:       cfg,
		client:    client,
		led:       led,
		bus:       bus,
		tracker:   tracker,
		store:     store,
		logger:    logging.WithComponent("monitor").WithField("trade_id", entry.TradeID),
		entry:     entry,
		riskDist:  math.Abs(entry.EntryPrice - entry.StopLoss),
		currentSL: entry.StopLoss,
	}
}

// run polls until the trade closes or the context is canceled.
func (tm *tradeMonitor) run(ctx context.Context) {
	if tm.tracker != nil {
		tm.tracker.Started(tm.entry.TradeID, tm.entry.Symbol, tm.entry.Direction,
			tm.entry.EntryPrice, tm.entry.StopLoss, tm.entry.TakeProfit)
	}
	for {
		delay, done := tm.step(ctx)
		if done {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// step performs one poll tick and returns the delay before the next one.
func (tm *tradeMonitor) step(ctx context.Context) (time.Duration, bool) {
	lookup := tm.client.LookupTrade(ctx, tm.entry.TradeID)
	switch lookup.Status {
	case broker.StatusTransient:
		tm.logger.Warn("Transient lookup failure, retrying: %v", lookup.Err)
		return tm.seconds(tm.cfg.ErrorBackoff), false

	case broker.StatusFatal:
		tm.logger.Error("Fatal lookup failure, abandoning monitor: %v", lookup.Err)
		if tm.tracker != nil {
			tm.tracker.Abandoned(tm.entry.TradeID, tm.entry.Symbol, lookup.Err)
		}
		return 0, true

	case broker.StatusNotFound:
		tm.finalize(ctx, nil)
		return 0, true
	}

	trade := lookup.Trade
	if trade.CurrentUnits == 0 {
		tm.finalize(ctx, trade)
		return 0, true
	}
	if absInt(trade.CurrentUnits) < absInt(trade.InitialUnits) {
		tm.reducedSeen = true
	}

	quote, err := tm.client.GetQuote(ctx, tm.entry.Symbol)
	if err != nil {
		tm.logger.Warn("No price for %s, backing off: %v", tm.entry.Symbol, err)
		return tm.seconds(tm.cfg.MissingPriceBackoff), false
	}
	price := quote.Bid
	if tm.entry.Direction == "sell" {
		price = quote.Ask
	}
	tm.lastPrice = price

	tm.refreshATR(ctx)
	tm.manage(ctx, trade, price)

	return tm.seconds(tm.cfg.PollInterval), false
}

// manage applies the exit management ladder for one tick.
func (tm *tradeMonitor) manage(ctx context.Context, trade *broker.TradeState, price float64) {
	profit := price - tm.entry.EntryPrice
	if tm.entry.Direction == "sell" {
		profit = tm.entry.EntryPrice - price
	}
	profitR := 0.0
	if tm.riskDist > 0 {
		profitR = profit / tm.riskDist
	}

	tm.maybePartialClose(ctx, trade, price, profit, profitR)
	tm.maybeBreakeven(ctx, price, profitR)
	tm.maybeTrail(ctx, price, profitR)
}

// maybePartialClose banks part of the position once, when profit clears
// both the R trigger and the fixed pip floor.
func (tm *tradeMonitor) maybePartialClose(ctx context.Context, trade *broker.TradeState, price, profit, profitR float64) {
	if tm.partialDone || tm.cfg.PartialCloseRatio <= 0 {
		return
	}

	minPips := tm.cfg.PartialMinPips
	if strings.HasSuffix(broker.NormalizeSymbol(tm.entry.Symbol), "JPY") {
		minPips = tm.cfg.PartialMinPipsJPY
	}
	pipMult := broker.PipMultiplier(tm.entry.Symbol)
	profitPips := profit * pipMult
	triggerPips := math.Max(minPips, tm.cfg.PartialTriggerR*tm.riskDist*pipMult)
	if profitPips < triggerPips {
		return
	}

	units := int(math.Floor(float64(absInt(trade.CurrentUnits)) * tm.cfg.PartialCloseRatio))
	if units <= 0 {
		return
	}
	if err := tm.client.ClosePartial(ctx, tm.entry.TradeID, units); err != nil {
		tm.logger.Warn("Partial close failed, will retry next tick: %v", err)
		return
	}
	tm.partialDone = true
	tm.logger.Info("Partial close %s: %d units at %.5f (%.1f pips)", tm.entry.Symbol, units, price, profitPips)
	if tm.tracker != nil {
		tm.tracker.PartialClosed(tm.entry.TradeID, tm.entry.Symbol, units, price, profitPips)
	}
	if tm.bus != nil {
		tm.bus.PublishPartialClose(tm.entry.TradeID, tm.entry.Symbol, units, price)
	}
}

// maybeBreakeven moves the stop to the entry once profit clears the
// configured R multiple.
func (tm *tradeMonitor) maybeBreakeven(ctx context.Context, price, profitR float64) {
	if tm.breakevenSet || profitR < tm.cfg.BreakevenTriggerR {
		return
	}
	newStop := broker.RoundPrice(tm.entry.Symbol, tm.entry.EntryPrice)
	if !tm.tightens(newStop) {
		tm.breakevenSet = true
		return
	}
	if err := tm.client.UpdateStopLoss(ctx, tm.entry.TradeID, newStop); err != nil {
		tm.logger.Warn("Breakeven update failed, will retry next tick: %v", err)
		return
	}
	tm.currentSL = newStop
	tm.breakevenSet = true
	tm.logger.Info("Breakeven set for %s at %.5f (%.2fR)", tm.entry.Symbol, newStop, profitR)
	if tm.tracker != nil {
		tm.tracker.Breakeven(tm.entry.TradeID, tm.entry.Symbol, newStop, profitR)
	}
	if tm.bus != nil {
		tm.bus.PublishStopMoved(tm.entry.TradeID, tm.entry.Symbol, "breakeven", newStop)
	}
}

// maybeTrail tightens the stop behind price by an ATR multiple that
// shrinks as profit grows. The stop only ever moves toward price.
func (tm *tradeMonitor) maybeTrail(ctx context.Context, price, profitR float64) {
	if !tm.breakevenSet || tm.atr <= 0 {
		return
	}

	mult := tm.trailMult(profitR)
	var candidate float64
	if tm.entry.Direction == "buy" {
		candidate = price - tm.atr*mult
	} else {
		candidate = price + tm.atr*mult
	}
	candidate = broker.RoundPrice(tm.entry.Symbol, candidate)
	if !tm.tightens(candidate) {
		return
	}

	old := tm.currentSL
	if err := tm.client.UpdateStopLoss(ctx, tm.entry.TradeID, candidate); err != nil {
		tm.logger.Warn("Trail update failed, will retry next tick: %v", err)
		return
	}
	tm.currentSL = candidate
	tm.logger.Info("Trailed %s stop %.5f -> %.5f (%.2fR, %.1fx ATR)", tm.entry.Symbol, old, candidate, profitR, mult)
	if tm.tracker != nil {
		tm.tracker.Trailed(tm.entry.TradeID, tm.entry.Symbol, old, candidate, profitR, mult)
	}
	if tm.bus != nil {
		tm.bus.PublishStopMoved(tm.entry.TradeID, tm.entry.Symbol, "trail", candidate)
	}
}

// trailMult picks the ATR multiple for the profit tier, clamped to the
// configured near/far band.
func (tm *tradeMonitor) trailMult(profitR float64) float64 {
	var mult float64
	switch {
	case profitR < 1.5:
		mult = tm.cfg.TrailMultNear
	case profitR < 2.5:
		mult = tm.cfg.TrailMultMid
	default:
		mult = tm.cfg.TrailMultFar
	}
	return math.Min(tm.cfg.TrailMultNear, math.Max(tm.cfg.TrailMultFar, mult))
}

// tightens reports whether the candidate stop moves toward price.
func (tm *tradeMonitor) tightens(candidate float64) bool {
	if tm.entry.Direction == "buy" {
		return candidate > tm.currentSL
	}
	return candidate < tm.currentSL
}

// finalize handles a trade that left the broker's book: classify the
// close from the last seen price, clear the ledger, and fan out.
func (tm *tradeMonitor) finalize(ctx context.Context, trade *broker.TradeState) {
	finalPrice := tm.lastPrice
	pnl := 0.0
	if trade != nil {
		pnl = trade.RealizedPL
		if trade.AverageClosePrice > 0 {
			finalPrice = trade.AverageClosePrice
		}
	}

	reason := ClassifyCloseReason(CloseInput{
		Symbol:      tm.entry.Symbol,
		Direction:   tm.entry.Direction,
		EntryPrice:  tm.entry.EntryPrice,
		StopLoss:    tm.entry.StopLoss,
		TakeProfit:  tm.entry.TakeProfit,
		FinalPrice:  finalPrice,
		RealizedPL:  pnl,
		PartialSeen: tm.partialDone || tm.reducedSeen,
	})
	tm.led.Remove(tm.entry.TradeID)

	tm.logger.Info("Trade %s closed: %s at %.5f", tm.entry.TradeID, reason, finalPrice)
	if tm.tracker != nil {
		tm.tracker.Closed(tm.entry.TradeID, tm.entry.Symbol, reason, finalPrice)
	}
	if tm.bus != nil {
		tm.bus.PublishTradeClosed(tm.entry.TradeID, tm.entry.Symbol, string(reason), finalPrice, pnl)
	}
	if tm.store != nil {
		if err := tm.store.RecordTradeClose(ctx, tm.entry.TradeID, finalPrice, pnl, string(reason), time.Now().UTC()); err != nil {
			tm.logger.Warn("Close for %s not persisted: %v", tm.entry.TradeID, err)
		}
	}
}

// refreshATR recomputes the M15 ATR used for trailing every few ticks.
func (tm *tradeMonitor) refreshATR(ctx context.Context) {
	if tm.atrTicks > 0 {
		tm.atrTicks--
		return
	}
	tm.atrTicks = atrRefreshTicks

	candles, err := tm.client.GetCandles(ctx, tm.entry.Symbol, "M15", 30)
	if err != nil || len(candles) < 15 {
		return
	}
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closeSeries := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closeSeries[i] = c.Close
	}
	if atr, ok := indicators.ATRWilder(highs, lows, closeSeries, 14); ok {
		tm.atr = atr
	}
}

func (tm *tradeMonitor) seconds(n int) time.Duration {
	if n <= 0 {
		n = 10
	}
	return time.Duration(n) * time.Second
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
