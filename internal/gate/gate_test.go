package gate

import (
	"path/filepath"
	"testing"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
)

func testGateConfig() config.GateConfig {
	return config.GateConfig{
		CooldownHours:         6,
		CooldownATRMult:       0.8,
		CooldownPctMove:       0.6,
		FreshnessLookbackDays: 14,
		FreshnessSimilarity:   0.85,
		MinADX:                17,
		ADXRelaxDelta:         2,
		MinATRPercent:         0.22,
		MaxATRPercent:         3.2,
		AllowTrendRelax:       true,
		MinRiskReward:         1.3,
		LowVolatilityFloor:    0.15,
	}
}

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	r, err := LoadRegistry(filepath.Join(t.TempDir(), "registry.json"))
	if err != nil {
		t.Fatalf("LoadRegistry error = %v", err)
	}
	return New(testGateConfig(), r)
}

// trendingCandles builds a steady trend with per-bar range wick.
func trendingCandles(n int, start, step, wick float64) []broker.Candle {
	candles := make([]broker.Candle, n)
	prev := start
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		close := start + step*float64(i+1)
		high := close + wick
		low := prev - wick
		if step < 0 {
			high = prev + wick
			low = close - wick
		}
		candles[i] = broker.Candle{
			Time: base.Add(time.Duration(i) * 4 * time.Hour),
			Open: prev, High: high, Low: low, Close: close, Complete: true,
		}
		prev = close
	}
	return candles
}

func uptrendMarket() Market {
	h4 := trendingCandles(250, 1.0, 0.003, 0.002)
	return Market{H4: h4, Price: h4[len(h4)-1].Close}
}

func buyCandidate(mkt Market) Candidate {
	entry := mkt.Price
	return Candidate{
		Symbol:     "EUR_USD",
		Direction:  "buy",
		EntryPrice: entry,
		StopLoss:   entry - 0.010,
		TakeProfit: entry + 0.020,
		Rationale:  "momentum continuation with trend alignment",
	}
}

func TestEvaluateAllowsCleanCandidate(t *testing.T) {
	g := newTestGate(t)
	mkt := uptrendMarket()

	dec := g.Evaluate(buyCandidate(mkt), mkt, time.Now())
	if !dec.Allowed {
		t.Fatalf("expected allow, got %s (%s)", dec.Reason, dec.Detail)
	}
}

func TestEvaluateBlocksInsufficientData(t *testing.T) {
	g := newTestGate(t)
	mkt := Market{H4: trendingCandles(30, 1.0, 0.003, 0.002), Price: 1.09}

	dec := g.Evaluate(buyCandidate(mkt), mkt, time.Now())
	if dec.Allowed || dec.Reason != ReasonNoData {
		t.Errorf("Decision = %+v, want NO_DATA block", dec)
	}
}

func TestEvaluateBlocksStaleIdea(t *testing.T) {
	g := newTestGate(t)
	mkt := uptrendMarket()
	now := time.Now()

	cand := buyCandidate(mkt)
	g.Registry().Record(IdeaRecord{
		Symbol: cand.Symbol, Direction: cand.Direction,
		Rationale: cand.Rationale, EntryPrice: cand.EntryPrice,
		Timestamp: now.Add(-48 * time.Hour),
	}, 14*24*time.Hour)

	dec := g.Evaluate(cand, mkt, now)
	if dec.Allowed || dec.Reason != ReasonStaleIdea {
		t.Errorf("Decision = %+v, want STALE_IDEA block", dec)
	}
}

func TestEvaluateCooldownTime(t *testing.T) {
	g := newTestGate(t)
	mkt := uptrendMarket()
	now := time.Now()

	// A trade 2 hours ago on the same pair and direction, with an
	// unrelated rationale so freshness does not fire first.
	g.Registry().Record(IdeaRecord{
		Symbol: "EUR_USD", Direction: "buy",
		Rationale: "completely unrelated range fade setup",
		EntryPrice: mkt.Price, ATR: 0.007,
		Timestamp: now.Add(-2 * time.Hour),
	}, 14*24*time.Hour)

	dec := g.Evaluate(buyCandidate(mkt), mkt, now)
	if dec.Allowed || dec.Reason != ReasonCooldownTime {
		t.Errorf("Decision = %+v, want COOLDOWN_TIME block", dec)
	}
}

func TestEvaluateCooldownPrice(t *testing.T) {
	g := newTestGate(t)
	mkt := uptrendMarket()
	now := time.Now()

	// Cooldown elapsed but price has not moved away from the last entry.
	g.Registry().Record(IdeaRecord{
		Symbol: "EUR_USD", Direction: "buy",
		Rationale: "completely unrelated range fade setup",
		EntryPrice: mkt.Price,
		Timestamp: now.Add(-10 * time.Hour),
	}, 14*24*time.Hour)

	dec := g.Evaluate(buyCandidate(mkt), mkt, now)
	if dec.Allowed || dec.Reason != ReasonCooldownPrice {
		t.Errorf("Decision = %+v, want COOLDOWN_PRICE block", dec)
	}
}

func TestEvaluateGuardrails(t *testing.T) {
	g := newTestGate(t)
	mkt := uptrendMarket()
	now := time.Now()

	t.Run("invalid levels", func(t *testing.T) {
		cand := buyCandidate(mkt)
		cand.StopLoss = 0
		dec := g.Evaluate(cand, mkt, now)
		if dec.Allowed || dec.Reason != ReasonInvalidLevels {
			t.Errorf("Decision = %+v, want INVALID_LEVELS block", dec)
		}
	})

	t.Run("risk reward too low", func(t *testing.T) {
		cand := buyCandidate(mkt)
		cand.TakeProfit = cand.EntryPrice + 0.010 // 1.0R
		dec := g.Evaluate(cand, mkt, now)
		if dec.Allowed || dec.Reason != ReasonRiskReward {
			t.Errorf("Decision = %+v, want RR_TOO_LOW block", dec)
		}
	})
}

func TestEvaluateBlocksQuietMarket(t *testing.T) {
	g := newTestGate(t)
	// Microscopic trend at a 100.00 handle: directional but nearly no range.
	h4 := trendingCandles(250, 100.0, 0.003, 0.001)
	mkt := Market{H4: h4, Price: h4[len(h4)-1].Close}

	cand := Candidate{
		Symbol: "USD_JPY", Direction: "buy",
		EntryPrice: mkt.Price, StopLoss: mkt.Price - 0.5, TakeProfit: mkt.Price + 1.0,
		Rationale: "quiet grind higher",
	}
	dec := g.Evaluate(cand, mkt, time.Now())
	if dec.Allowed || dec.Reason != ReasonATROutOfBand {
		t.Errorf("Decision = %+v, want ATR_OUT_OF_BAND block", dec)
	}
}

func TestEvaluateBlocksFlatMarket(t *testing.T) {
	g := newTestGate(t)
	// Flat closes: no directional movement at all.
	h4 := make([]broker.Candle, 250)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range h4 {
		h4[i] = broker.Candle{
			Time: base.Add(time.Duration(i) * 4 * time.Hour),
			Open: 1.10, High: 1.101, Low: 1.099, Close: 1.10, Complete: true,
		}
	}
	mkt := Market{H4: h4, Price: 1.10}

	dec := g.Evaluate(buyCandidate(mkt), mkt, time.Now())
	if dec.Allowed {
		t.Fatalf("flat market should block, got allow with tags %v", dec.Tags)
	}
	if dec.Reason != ReasonWeakADX {
		t.Errorf("Reason = %s, want WEAK_ADX", dec.Reason)
	}
}

func TestStructureTags(t *testing.T) {
	h4 := trendingCandles(250, 1.0, 0.003, 0.002)

	// A steady uptrend breaks its prior swing high; the no-structure tag
	// must not appear alongside a positive check.
	tags := StructureTags(nil, h4, "buy", 0.005)
	if len(tags) == 0 {
		t.Fatal("uptrend produced no tags")
	}
	for _, tag := range tags {
		if tag == TagNoStructure {
			t.Errorf("tags = %v, no-structure tag next to a confirmed check", tags)
		}
	}

	// Too little history fails every check and yields the informational tag.
	short := trendingCandles(20, 1.0, 0.003, 0.002)
	tags = StructureTags(nil, short, "buy", 0.005)
	if len(tags) != 1 || tags[0] != TagNoStructure {
		t.Errorf("tags = %v, want only %s", tags, TagNoStructure)
	}
}
