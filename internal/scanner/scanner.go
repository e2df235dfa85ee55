// Package scanner scores every configured instrument on H4 data and emits
// ranked opportunities. Scanning never places orders; the gate and planner
// decide what actually trades.
package scanner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/events"
	"oanda-trading-bot/internal/logging"
)

// Scanner orchestrates concurrent opportunity scans across instruments.
type Scanner struct {
	cfg    config.ScannerConfig
	groups map[string][]string
	client broker.Client
	bus    *events.EventBus
	logger *logging.Logger

	mu         sync.RWMutex
	lastResult *ScanResult
}

// NewScanner creates a scanner. groups are the shared correlation groups
// from the risk configuration.
func NewScanner(cfg config.ScannerConfig, groups map[string][]string, client broker.Client, bus *events.EventBus) *Scanner {
	return &Scanner{
		cfg:    cfg,
		groups: groups,
		client: client,
		bus:    bus,
		logger: logging.WithComponent("scanner"),
	}
}

// LastResult returns the most recent scan result.
func (sc *Scanner) LastResult() *ScanResult {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastResult
}

// Scan runs one full scan cycle: fetch, score both directions, apply the
// correlation penalty, filter, and rank.
func (sc *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	start := time.Now()
	scanID := uuid.New().String()
	log := sc.logger.WithScanID(scanID)
	log.Info("Starting scan of %d instruments", len(sc.cfg.Instruments))

	if sc.bus != nil {
		sc.bus.Publish(events.Event{Type: events.EventScanStarted, Data: map[string]interface{}{"scan_id": scanID}})
	}

	type scanItem struct {
		opp     *Opportunity
		skipped bool
	}

	symbolChan := make(chan string, len(sc.cfg.Instruments))
	resultChan := make(chan scanItem, len(sc.cfg.Instruments))
	var wg sync.WaitGroup

	workers := sc.cfg.WorkerCount
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symbolChan {
				opp, ok := sc.scanSymbol(ctx, scanID, symbol)
				resultChan <- scanItem{opp: opp, skipped: !ok}
			}
		}()
	}

	for _, symbol := range sc.cfg.Instruments {
		symbolChan <- symbol
	}
	close(symbolChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var raw []Opportunity
	skipped := 0
	for item := range resultChan {
		if item.skipped {
			skipped++
			continue
		}
		if item.opp != nil {
			raw = append(raw, *item.opp)
		}
	}

	// Correlation penalty, then the post-adjustment floor.
	adjusted := AdjustForCorrelation(raw, sc.groups)
	var kept []Opportunity
	for _, o := range adjusted {
		if o.Score >= sc.cfg.MinScore {
			o.Confidence = ConfidenceFor(o.Score, len(o.Reasons))
			kept = append(kept, o)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if sc.cfg.MaxResults > 0 && len(kept) > sc.cfg.MaxResults {
		kept = kept[:sc.cfg.MaxResults]
	}

	result := &ScanResult{
		ScanID:         scanID,
		StartTime:      start,
		Duration:       time.Since(start),
		SymbolsScanned: len(sc.cfg.Instruments) - skipped,
		SymbolsSkipped: skipped,
		Opportunities:  kept,
	}

	sc.mu.Lock()
	sc.lastResult = result
	sc.mu.Unlock()

	for _, o := range kept {
		log.Info("Opportunity: %s %s score=%.1f (raw %.1f, corr %.1f) confidence=%s",
			o.Symbol, o.Direction, o.Score, o.RawScore, o.Correlation, o.Confidence)
		if sc.bus != nil {
			sc.bus.PublishOpportunity(scanID, o.Symbol, o.Direction, o.Score, o.Confidence)
		}
	}
	log.Info("Scan complete: %d opportunities from %d instruments (%d skipped) in %s",
		len(kept), len(sc.cfg.Instruments), skipped, result.Duration.Round(time.Millisecond))

	if sc.bus != nil {
		sc.bus.Publish(events.Event{Type: events.EventScanCompleted, Data: map[string]interface{}{
			"scan_id":       scanID,
			"opportunities": len(kept),
		}})
	}
	return result, nil
}

// scanSymbol scores one instrument in both directions and keeps the better
// one when it clears the raw floor. The bool result reports whether the
// symbol could be evaluated at all.
func (sc *Scanner) scanSymbol(ctx context.Context, scanID, symbol string) (*Opportunity, bool) {
	candles, err := sc.client.GetCandles(ctx, symbol, sc.cfg.Granularity, sc.cfg.CandleCount)
	if err != nil {
		sc.logger.Warn("Skipping %s: %v", symbol, err)
		return nil, false
	}
	metrics, ok := ComputeMetrics(candles)
	if !ok {
		sc.logger.Warn("Skipping %s: only %d candles", symbol, len(candles))
		return nil, false
	}

	hour := time.Now().UTC().Hour()
	buyScore, buyReasons, buyAligned := ScoreDirection(metrics, symbol, "buy", hour)
	sellScore, sellReasons, sellAligned := ScoreDirection(metrics, symbol, "sell", hour)

	direction, score, reasons, aligned := "buy", buyScore, buyReasons, buyAligned
	if sellScore > buyScore {
		direction, score, reasons, aligned = "sell", sellScore, sellReasons, sellAligned
	}
	if score < sc.cfg.MinRawScore {
		return nil, true
	}

	entry := metrics.LastClose
	sl, tp := SuggestLevels(symbol, direction, entry, metrics.ATR, sc.cfg.ATRSLMult, sc.cfg.ATRTPMult)

	return &Opportunity{
		ScanID:         scanID,
		Symbol:         symbol,
		Direction:      direction,
		RawScore:       score,
		Score:          score,
		Reasons:        reasons,
		EntryPrice:     entry,
		StopLoss:       sl,
		TakeProfit:     tp,
		ATR:            metrics.ATR,
		RSI:            metrics.RSI,
		ATRPercent:     metrics.ATRPercent,
		RangePosition:  metrics.RangePos,
		TrendAligned:   aligned,
		SessionQuality: SessionQuality(symbol, hour),
		Time:           time.Now().UTC(),
	}, true
}
