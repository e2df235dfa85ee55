package bot

import (
	"context"
	"time"

	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/cache"
	"oanda-trading-bot/internal/circuit"
	"oanda-trading-bot/internal/database"
	"oanda-trading-bot/internal/execution"
	"oanda-trading-bot/internal/gate"
	"oanda-trading-bot/internal/indicators"
	"oanda-trading-bot/internal/planner"
	"oanda-trading-bot/internal/risk"
	"oanda-trading-bot/internal/scanner"
	"oanda-trading-bot/internal/sentiment"
)

const (
	// lowConfidenceMargin is added to the score floor for opportunities
	// the scanner graded low confidence.
	lowConfidenceMargin = 5.0

	// gateH4Candles covers EMA200 plus headroom; gateDailyCandles covers
	// the structure tags.
	gateH4Candles    = 250
	gateDailyCandles = 120
)

// runSession executes one full trading session.
func (b *Bot) runSession(ctx context.Context) {
	now := time.Now().UTC()

	b.mu.Lock()
	b.sessionsRun++
	session := b.sessionsRun
	b.lastSession = now
	b.mu.Unlock()

	log := b.logger.WithField("session", session)

	if stale := b.deps.Ledger.CleanupStale(now); stale > 0 {
		log.Warn("Dropped %d stale ledger entries", stale)
	}

	status := b.evaluateBreaker(ctx, now)
	if status.Active {
		log.Warn("Circuit breaker active (%s): trading at %.2fx risk, %.2fx frequency",
			status.Reason, status.RiskMultiplier, status.FrequencyMultiplier)
		if b.deps.Notifier != nil {
			b.deps.Notifier.CircuitTripped(ctx, status.Reason)
		}
	}
	if skipForFrequency(status.FrequencyMultiplier, session) {
		log.Info("Reduced trade frequency (%.2fx), skipping session", status.FrequencyMultiplier)
		return
	}

	result, err := b.deps.Scanner.Scan(ctx)
	if err != nil {
		log.Error("Scan failed: %v", err)
		return
	}
	if len(result.Opportunities) == 0 {
		log.Info("No opportunities this session")
		b.reconcile(ctx)
		return
	}

	var snap *sentiment.Snapshot
	if b.deps.Sentiment != nil && b.cfg.SentimentConfig.Enabled {
		s := b.deps.Sentiment.Current(ctx)
		snap = &s
		log.Info("Sentiment: %s regime, composite %.1f (%s)", s.RiskRegime, s.Composite, s.Bucket)
	}

	tradesThisSession := 0
	for _, opp := range result.Opportunities {
		select {
		case <-b.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		if tradesThisSession >= b.sessionCap() {
			log.Info("Session trade cap reached (%d)", tradesThisSession)
			break
		}

		score := opp.Score
		if snap != nil {
			adj := b.deps.Sentiment.Adjust(*snap, opp.Symbol, opp.Direction, score)
			if adj.Delta != 0 {
				log.Info("%s %s sentiment adjust %+.1f: %s", opp.Symbol, opp.Direction, adj.Delta, adj.Narrative)
			}
			score += adj.Delta
		}

		if ok, why := b.passesScoreFilter(opp, score, tradesThisSession); !ok {
			log.Debug("Skipping %s %s: %s", opp.Symbol, opp.Direction, why)
			continue
		}
		if !b.claimSessionSlot(ctx, opp.Symbol) {
			log.Info("Skipping %s: already attempted this session", opp.Symbol)
			continue
		}

		if b.tryCandidate(ctx, opp, score, status, now) {
			tradesThisSession++
			b.mu.Lock()
			b.tradesOpened++
			b.mu.Unlock()
			if tradesThisSession < b.sessionCap() {
				if !b.sleepInterruptible(ctx, b.interTradeDelay()) {
					return
				}
			}
		}
	}

	b.reconcile(ctx)
	log.Info("Session complete: %d trades opened, %d positions ledgered", tradesThisSession, b.deps.Ledger.Size())
}

// evaluateBreaker feeds the breaker the recent closed trades. Without
// persistence the breaker still runs on its saved state.
func (b *Bot) evaluateBreaker(ctx context.Context, now time.Time) circuit.Status {
	var closed []circuit.ClosedTrade
	if b.deps.Repo != nil {
		lookback := time.Duration(b.cfg.CircuitBreakerConfig.LookbackDays) * 24 * time.Hour
		if lookback <= 0 {
			lookback = 7 * 24 * time.Hour
		}
		records, err := b.deps.Repo.ClosedTradesSince(ctx, now.Add(-lookback))
		if err != nil {
			b.logger.Warn("Closed-trade history unavailable: %v", err)
		} else {
			closed = toClosedTrades(records)
		}
	}
	return b.deps.Breaker.Evaluate(closed, now)
}

func toClosedTrades(records []database.TradeRecord) []circuit.ClosedTrade {
	out := make([]circuit.ClosedTrade, 0, len(records))
	for _, r := range records {
		if r.PnLNet == nil || r.ClosedAt == nil {
			continue
		}
		out = append(out, circuit.ClosedTrade{PnL: *r.PnLNet, ClosedAt: *r.ClosedAt})
	}
	return out
}

// skipForFrequency thins sessions when the breaker asks for reduced
// frequency: every other session below 1.0x, two of three below 0.5x.
func skipForFrequency(multiplier float64, session int) bool {
	switch {
	case multiplier >= 1.0:
		return false
	case multiplier >= 0.5:
		return session%2 == 0
	default:
		return session%3 != 1
	}
}

// passesScoreFilter applies the execution score thresholds. The floor drops
// to the frequency threshold for the first trade of a session, low
// confidence raises it, and sub-floor scores can still trade in scalp mode
// when the session window and correlation are clean.
func (b *Bot) passesScoreFilter(opp scanner.Opportunity, score float64, tradesThisSession int) (bool, string) {
	cfg := b.cfg.BotConfig

	floor := cfg.BaseMinScore
	if tradesThisSession == 0 && cfg.FrequencyMinScore > 0 {
		floor = cfg.FrequencyMinScore
	}

	if score >= floor {
		if opp.Confidence == "low" && score < floor+lowConfidenceMargin {
			return false, "low confidence needs a higher score"
		}
		return true, ""
	}

	if cfg.ScalpMinScore > 0 && score >= cfg.ScalpMinScore {
		if opp.Confidence == "low" {
			return false, "low confidence excluded from scalp mode"
		}
		if opp.SessionQuality < cfg.ScalpMinSession {
			return false, "session quality too low for scalp mode"
		}
		if opp.Correlation > cfg.ScalpMaxCorrelation {
			return false, "correlation too high for scalp mode"
		}
		return true, ""
	}

	return false, "score below floor"
}

// claimSessionSlot enforces one attempt per pair per session across
// restarts. A dedup failure never blocks trading.
func (b *Bot) claimSessionSlot(ctx context.Context, symbol string) bool {
	if b.deps.Dedup == nil {
		return true
	}
	first, err := b.deps.Dedup.MarkOnce(ctx, cache.SessionKey(broker.NormalizeSymbol(symbol)), b.sessionInterval())
	if err != nil {
		b.logger.Warn("Session dedup unavailable for %s: %v", symbol, err)
		return true
	}
	return first
}

// tryCandidate runs one opportunity through the hard risk filters, the
// pre-entry rechecks, and execution. It reports whether a trade was opened.
func (b *Bot) tryCandidate(ctx context.Context, opp scanner.Opportunity, score float64, status circuit.Status, now time.Time) bool {
	log := b.logger.WithField("symbol", opp.Symbol)

	quote, err := b.deps.Client.GetQuote(ctx, opp.Symbol)
	if err != nil {
		log.Warn("No quote: %v", err)
		return false
	}

	h4, err := b.deps.Client.GetCandles(ctx, opp.Symbol, "H4", gateH4Candles)
	if err != nil {
		log.Warn("No H4 data: %v", err)
		return false
	}
	daily, err := b.deps.Client.GetCandles(ctx, opp.Symbol, "D", gateDailyCandles)
	if err != nil {
		log.Warn("No daily data: %v", err)
		daily = nil
	}

	open := make([]risk.OpenPosition, 0, b.deps.Ledger.Size())
	for _, e := range b.deps.Ledger.All() {
		open = append(open, risk.OpenPosition{Symbol: e.Symbol, Direction: e.Direction})
	}
	if ok, reason := b.deps.Risk.Check(risk.CheckInput{
		Symbol:    opp.Symbol,
		Direction: opp.Direction,
		Bid:       quote.Bid,
		Ask:       quote.Ask,
		ATR:       opp.ATR,
		AvgATR:    baselineATR(h4),
		Open:      open,
		Now:       now,
	}); !ok {
		log.Info("Risk check failed: %s", reason)
		if b.deps.Bus != nil {
			b.deps.Bus.PublishBlocked(opp.Symbol, opp.Direction, reason)
		}
		return false
	}

	cand := gate.Candidate{
		Symbol:     opp.Symbol,
		Direction:  opp.Direction,
		EntryPrice: opp.EntryPrice,
		StopLoss:   opp.StopLoss,
		TakeProfit: opp.TakeProfit,
		Rationale:  opp.Rationale(),
		Score:      score,
	}
	mkt := gate.Market{H4: h4, Daily: daily, Price: midPrice(quote)}

	plan, ok := b.recheckEntry(ctx, cand, mkt, opp, now)
	if !ok {
		return false
	}

	riskFraction := plan.RiskFraction * status.RiskMultiplier
	if b.cfg.BotConfig.DryRun {
		log.Info("DRY RUN: would open %s %s at risk %.3f%% (quality %.1f)",
			opp.Direction, opp.Symbol, riskFraction*100, plan.Quality.Composite)
		return true
	}

	result, err := b.deps.Executor.Execute(ctx, execution.Request{
		Symbol:       opp.Symbol,
		Direction:    opp.Direction,
		Rationale:    opp.Rationale(),
		RiskFraction: riskFraction,
	})
	if err != nil {
		log.Error("Execution failed: %v", err)
		return false
	}

	if entry, found := b.deps.Ledger.Get(result.TradeID); found {
		b.deps.Monitors.Watch(entry)
	}
	if b.deps.Notifier != nil {
		b.deps.Notifier.TradeOpened(ctx, result.Symbol, result.Direction, result.Units,
			result.EntryPrice, result.StopLoss, result.TakeProfit)
	}
	log.Info("Opened %s %s: %d units at %s, trade %s",
		result.Direction, result.Symbol, result.Units,
		broker.FormatPrice(result.Symbol, result.EntryPrice), result.TradeID)
	return true
}

// recheckEntry runs the gate and the planner the configured number of
// times with a pause between passes. Every pass must admit and approve;
// the last plan is the one executed.
func (b *Bot) recheckEntry(ctx context.Context, cand gate.Candidate, mkt gate.Market, opp scanner.Opportunity, now time.Time) (*planner.TradePlan, bool) {
	log := b.logger.WithField("symbol", cand.Symbol)

	rechecks := b.cfg.BotConfig.PreEntryRechecks
	if rechecks <= 0 {
		rechecks = 1
	}

	var plan *planner.TradePlan
	for attempt := 1; attempt <= rechecks; attempt++ {
		dec := b.deps.Gate.Evaluate(cand, mkt, now)
		b.recordGateDecision(ctx, cand, dec)
		if !dec.Allowed {
			log.Info("Gate blocked on recheck %d/%d: %s (%s)", attempt, rechecks, dec.Reason, dec.Detail)
			if b.deps.Bus != nil {
				b.deps.Bus.PublishBlocked(cand.Symbol, cand.Direction, string(dec.Reason))
			}
			return nil, false
		}

		p, err := b.deps.Planner.Plan(ctx, planner.CandidateContext{
			Symbol:       cand.Symbol,
			Direction:    cand.Direction,
			ATR:          opp.ATR,
			ATRPercent:   opp.ATRPercent,
			RSI:          opp.RSI,
			RangePos:     opp.RangePosition,
			TrendAligned: opp.TrendAligned,
			Relaxed:      hasTag(dec.Tags, gate.TagTrendRelaxed),
		})
		if err != nil {
			log.Warn("Planning failed on recheck %d/%d: %v", attempt, rechecks, err)
			return nil, false
		}
		if !p.Approved {
			log.Info("Plan rejected on recheck %d/%d: %s", attempt, rechecks, p.RejectReason)
			return nil, false
		}
		plan = p

		if attempt < rechecks {
			if !b.sleepInterruptible(ctx, b.recheckSleep()) {
				return nil, false
			}
		}
	}
	return plan, true
}

func (b *Bot) recordGateDecision(ctx context.Context, cand gate.Candidate, dec gate.Decision) {
	if b.deps.Repo == nil {
		return
	}
	err := b.deps.Repo.RecordGateDecision(ctx, &database.GateDecision{
		Instrument:  broker.BrokerInstrument(cand.Symbol),
		Direction:   cand.Direction,
		Allowed:     dec.Allowed,
		BlockReason: string(dec.Reason),
		Detail:      dec.Detail,
	})
	if err != nil {
		b.logger.Warn("Gate decision not persisted: %v", err)
	}
}

// reconcile drops ledger entries the broker no longer reports open.
func (b *Bot) reconcile(ctx context.Context) {
	removed, err := b.deps.Ledger.Reconcile(ctx, b.deps.Client)
	if err != nil {
		b.logger.Warn("Ledger reconciliation failed: %v", err)
		return
	}
	if len(removed) > 0 {
		b.logger.Warn("Reconciliation removed %d trades no longer open at the broker: %v", len(removed), removed)
	}
}

func (b *Bot) sessionCap() int {
	if b.cfg.RiskConfig.MaxTradesPerSession <= 0 {
		return 1
	}
	return b.cfg.RiskConfig.MaxTradesPerSession
}

func (b *Bot) interTradeDelay() time.Duration {
	if b.cfg.BotConfig.InterTradeDelay <= 0 {
		return 2 * time.Second
	}
	return time.Duration(b.cfg.BotConfig.InterTradeDelay) * time.Second
}

func (b *Bot) recheckSleep() time.Duration {
	if b.cfg.BotConfig.RecheckSleep <= 0 {
		return 20 * time.Second
	}
	return time.Duration(b.cfg.BotConfig.RecheckSleep) * time.Second
}

// baselineATR is the spike-check reference: the Wilder ATR of the series
// with the most recent bars excluded.
func baselineATR(h4 []broker.Candle) float64 {
	const trim = 10
	if len(h4) <= trim+15 {
		return 0
	}
	prior := h4[:len(h4)-trim]
	highs := make([]float64, len(prior))
	lows := make([]float64, len(prior))
	closeSeries := make([]float64, len(prior))
	for i, c := range prior {
		highs[i] = c.High
		lows[i] = c.Low
		closeSeries[i] = c.Close
	}
	atr, ok := indicators.ATRWilder(highs, lows, closeSeries, 14)
	if !ok {
		return 0
	}
	return atr
}

func midPrice(q *broker.Quote) float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	if q.Bid > 0 {
		return q.Bid
	}
	return q.Ask
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
