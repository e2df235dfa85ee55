package bot

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/cache"
	"oanda-trading-bot/internal/circuit"
	"oanda-trading-bot/internal/database"
	"oanda-trading-bot/internal/gate"
	"oanda-trading-bot/internal/ledger"
	"oanda-trading-bot/internal/monitor"
	"oanda-trading-bot/internal/risk"
	"oanda-trading-bot/internal/scanner"
)

func testBotConfig() *config.Config {
	return &config.Config{
		BotConfig: config.BotConfig{
			SessionInterval:     3600,
			InterTradeDelay:     1,
			PreEntryRechecks:    2,
			RecheckSleep:        1,
			BaseMinScore:        65,
			FrequencyMinScore:   55,
			ScalpMinScore:       38,
			ScalpMinSession:     0.25,
			ScalpMaxCorrelation: 0.85,
		},
		RiskConfig: config.RiskConfig{
			MaxOpenTrades:       3,
			MaxTradesPerSession: 3,
			MaxSpreadRegular:    0.00030,
			MaxSpreadJPY:        0.050,
			MaxSpreadMetals:     0.060,
			WeekendBlockEnabled: true,
		},
	}
}

func newTestBot(t *testing.T, cfg *config.Config, deps Deps) *Bot {
	t.Helper()
	if deps.Ledger == nil {
		led, err := ledger.Load(filepath.Join(t.TempDir(), "ledger.json"))
		if err != nil {
			t.Fatalf("load ledger: %v", err)
		}
		deps.Ledger = led
	}
	if deps.Client == nil {
		deps.Client = broker.NewMockClient()
	}
	if deps.Monitors == nil {
		deps.Monitors = monitor.NewManager(cfg.MonitorConfig, deps.Client, deps.Ledger, nil, monitor.NewTracker(io.Discard), nil)
	}
	return New(cfg, deps)
}

// flatH4 returns n identical candles, enough history for the gate and the
// volatility baseline without tripping either.
func flatH4(n int, price float64) []broker.Candle {
	candles := make([]broker.Candle, n)
	for i := range candles {
		candles[i] = broker.Candle{Open: price, High: price, Low: price, Close: price}
	}
	return candles
}

func TestSkipForFrequency(t *testing.T) {
	tests := []struct {
		name       string
		multiplier float64
		session    int
		want       bool
	}{
		{"full frequency never skips", 1.0, 2, false},
		{"full frequency odd session", 1.0, 3, false},
		{"half frequency even session", 0.6, 2, true},
		{"half frequency odd session", 0.6, 3, false},
		{"quarter frequency runs one in three", 0.3, 1, false},
		{"quarter frequency skips second", 0.3, 2, true},
		{"quarter frequency skips third", 0.3, 3, true},
		{"quarter frequency runs fourth", 0.3, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := skipForFrequency(tt.multiplier, tt.session); got != tt.want {
				t.Errorf("skipForFrequency(%.1f, %d) = %v, want %v", tt.multiplier, tt.session, got, tt.want)
			}
		})
	}
}

func TestPassesScoreFilter(t *testing.T) {
	b := newTestBot(t, testBotConfig(), Deps{})

	tests := []struct {
		name   string
		opp    scanner.Opportunity
		score  float64
		trades int
		want   bool
	}{
		{
			name:  "clears the base floor",
			opp:   scanner.Opportunity{Confidence: "high"},
			score: 70, trades: 1, want: true,
		},
		{
			name:  "below base floor after first trade",
			opp:   scanner.Opportunity{Confidence: "high", SessionQuality: 0.1, Correlation: 0.9},
			score: 60, trades: 1, want: false,
		},
		{
			name:  "first trade uses the frequency floor",
			opp:   scanner.Opportunity{Confidence: "medium"},
			score: 58, trades: 0, want: true,
		},
		{
			name:  "low confidence needs the margin",
			opp:   scanner.Opportunity{Confidence: "low"},
			score: 66, trades: 1, want: false,
		},
		{
			name:  "low confidence with margin passes",
			opp:   scanner.Opportunity{Confidence: "low"},
			score: 71, trades: 1, want: true,
		},
		{
			name:  "scalp mode on a clean session",
			opp:   scanner.Opportunity{Confidence: "medium", SessionQuality: 0.5, Correlation: 0.2},
			score: 45, trades: 1, want: true,
		},
		{
			name:  "scalp mode blocked by session quality",
			opp:   scanner.Opportunity{Confidence: "medium", SessionQuality: 0.1, Correlation: 0.2},
			score: 45, trades: 1, want: false,
		},
		{
			name:  "scalp mode blocked by correlation",
			opp:   scanner.Opportunity{Confidence: "medium", SessionQuality: 0.5, Correlation: 0.95},
			score: 45, trades: 1, want: false,
		},
		{
			name:  "scalp mode excludes low confidence",
			opp:   scanner.Opportunity{Confidence: "low", SessionQuality: 0.5, Correlation: 0.2},
			score: 45, trades: 1, want: false,
		},
		{
			name:  "below the scalp floor",
			opp:   scanner.Opportunity{Confidence: "high", SessionQuality: 0.9, Correlation: 0.0},
			score: 30, trades: 1, want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, why := b.passesScoreFilter(tt.opp, tt.score, tt.trades)
			if got != tt.want {
				t.Errorf("passesScoreFilter(score=%.0f, trades=%d) = %v (%s), want %v",
					tt.score, tt.trades, got, why, tt.want)
			}
		})
	}
}

func TestClaimSessionSlot(t *testing.T) {
	b := newTestBot(t, testBotConfig(), Deps{Dedup: cache.NewMemoryDedupCache()})
	ctx := context.Background()

	if !b.claimSessionSlot(ctx, "EUR_USD") {
		t.Error("first claim must win")
	}
	if b.claimSessionSlot(ctx, "EUR_USD") {
		t.Error("second claim for the same pair must lose")
	}
	// Broker-format spelling maps to the same slot.
	if b.claimSessionSlot(ctx, "EURUSD") {
		t.Error("alternate spelling must share the slot")
	}
	if !b.claimSessionSlot(ctx, "GBP_USD") {
		t.Error("other pairs are unaffected")
	}

	noDedup := newTestBot(t, testBotConfig(), Deps{})
	if !noDedup.claimSessionSlot(ctx, "EUR_USD") || !noDedup.claimSessionSlot(ctx, "EUR_USD") {
		t.Error("without a dedup cache every claim wins")
	}
}

func TestToClosedTrades(t *testing.T) {
	pnl := -42.5
	closedAt := time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC)
	records := []database.TradeRecord{
		{PnLNet: &pnl, ClosedAt: &closedAt},
		{PnLNet: nil, ClosedAt: &closedAt},
		{PnLNet: &pnl, ClosedAt: nil},
	}

	got := toClosedTrades(records)
	if len(got) != 1 {
		t.Fatalf("converted %d trades, want 1", len(got))
	}
	if got[0].PnL != pnl || !got[0].ClosedAt.Equal(closedAt) {
		t.Errorf("converted trade = %+v", got[0])
	}
}

func TestTryCandidateBlockedByRiskCheck(t *testing.T) {
	client := broker.NewMockClient()
	client.SetQuote("EUR_USD", 1.1000, 1.1001)
	client.SetCandles("EUR_USD", "H4", flatH4(250, 1.1000))
	client.SetCandles("EUR_USD", "D", flatH4(120, 1.1000))

	cfg := testBotConfig()
	b := newTestBot(t, cfg, Deps{
		Client: client,
		Risk:   risk.NewManager(cfg.RiskConfig),
	})

	opp := scanner.Opportunity{
		Symbol:     "EUR_USD",
		Direction:  "buy",
		EntryPrice: 1.1000,
		StopLoss:   1.0950,
		TakeProfit: 1.1100,
		ATR:        0.0020,
	}
	// Saturday is inside the weekend block regardless of market data.
	saturday := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	if b.tryCandidate(context.Background(), opp, 70, circuit.Status{RiskMultiplier: 1, FrequencyMultiplier: 1}, saturday) {
		t.Error("weekend candidate must not trade")
	}
	if b.deps.Ledger.Size() != 0 {
		t.Errorf("ledger size = %d, want 0", b.deps.Ledger.Size())
	}
}

func TestRecheckEntryBlockedWithoutHistory(t *testing.T) {
	registry, err := gate.LoadRegistry(filepath.Join(t.TempDir(), "ideas.json"))
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}

	cfg := testBotConfig()
	b := newTestBot(t, cfg, Deps{Gate: gate.New(config.GateConfig{}, registry)})

	cand := gate.Candidate{Symbol: "EUR_USD", Direction: "buy", EntryPrice: 1.1, StopLoss: 1.09, TakeProfit: 1.12}
	// Too few H4 candles for the gate to judge the market.
	mkt := gate.Market{H4: make([]broker.Candle, 10), Price: 1.1}

	plan, ok := b.recheckEntry(context.Background(), cand, mkt, scanner.Opportunity{Symbol: "EUR_USD", Direction: "buy"}, time.Now().UTC())
	if ok || plan != nil {
		t.Errorf("recheckEntry = (%v, %v), want blocked", plan, ok)
	}
}

func TestSessionTradesThroughTrippedBreaker(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	breaker := circuit.NewBreaker(config.CircuitBreakerConfig{
		Enabled:             true,
		LossStreakThreshold: 2,
		MaxDrawdownPercent:  50,
		RiskReduction:       0.5,
		LookbackDays:        7,
	}, nil)
	losses := []circuit.ClosedTrade{
		{PnL: -50, ClosedAt: now.Add(-2 * time.Hour)},
		{PnL: -60, ClosedAt: now.Add(-1 * time.Hour)},
	}
	if st := breaker.Evaluate(losses, now); !st.Active {
		t.Fatalf("breaker did not trip: %+v", st)
	}

	client := broker.NewMockClient()
	sc := scanner.NewScanner(config.ScannerConfig{WorkerCount: 1}, nil, client, nil)
	b := newTestBot(t, testBotConfig(), Deps{Client: client, Scanner: sc, Breaker: breaker})

	// A tripped breaker throttles trading, it does not halt the session:
	// the scan must still run.
	b.runSession(context.Background())
	first := sc.LastResult()
	if first == nil {
		t.Fatal("session skipped the scan while the breaker was tripped")
	}

	// The 0.5x frequency multiplier thins out the next (even) session.
	b.runSession(context.Background())
	if sc.LastResult() != first {
		t.Error("even session should have been skipped at half frequency")
	}
}

func TestStatusSurface(t *testing.T) {
	b := newTestBot(t, testBotConfig(), Deps{})

	status := b.Status()
	if status["running"] != false {
		t.Error("bot must report not running before Start")
	}
	if status["open_trades"] != 0 {
		t.Errorf("open_trades = %v, want 0", status["open_trades"])
	}
	if got := b.OpenTrades(); len(got) != 0 {
		t.Errorf("OpenTrades = %d entries, want 0", len(got))
	}
}
