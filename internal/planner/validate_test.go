package planner

import (
	"strings"
	"testing"
	"time"

	"oanda-trading-bot/internal/broker"
)

func uptrendCandles(n int, start, step float64) []broker.Candle {
	candles := make([]broker.Candle, n)
	prev := start
	base := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		cl := start + step*float64(i+1)
		candles[i] = broker.Candle{
			Time: base.Add(time.Duration(i) * time.Hour),
			Open: prev, High: cl + 0.002, Low: prev - 0.002, Close: cl, Complete: true,
		}
		prev = cl
	}
	return candles
}

// zigzagCandles oscillate around a base with no net drift, keeping RSI
// near 50 and price hugging its EMA20.
func zigzagCandles(n int, base, amp float64) []broker.Candle {
	candles := make([]broker.Candle, n)
	t0 := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		cl := base
		if i%2 == 1 {
			cl = base + amp
		}
		candles[i] = broker.Candle{
			Time: t0.Add(time.Duration(i) * 10 * time.Minute),
			Open: base, High: cl + 0.0015, Low: cl - 0.0015, Close: cl, Complete: true,
		}
	}
	return candles
}

func TestTimeframeScore(t *testing.T) {
	uptrend := uptrendCandles(120, 1.05, 0.003)

	buyScore, ok := TimeframeScore(uptrend, "buy")
	if !ok {
		t.Fatal("buy score not computed")
	}
	sellScore, ok := TimeframeScore(uptrend, "sell")
	if !ok {
		t.Fatal("sell score not computed")
	}

	if buyScore <= sellScore {
		t.Errorf("uptrend should favor buy: buy=%.2f sell=%.2f", buyScore, sellScore)
	}
	if buyScore > timeframeMaxScore || sellScore > timeframeMaxScore {
		t.Errorf("scores exceed ceiling: buy=%.2f sell=%.2f", buyScore, sellScore)
	}

	if _, ok := TimeframeScore(uptrend[:20], "buy"); ok {
		t.Error("short series should not produce a score")
	}
}

func TestValidateTimeframes(t *testing.T) {
	uptrend := uptrendCandles(120, 1.05, 0.003)
	frames := map[string][]broker.Candle{"H1": uptrend, "M15": uptrend}

	pct, pass := ValidateTimeframes(frames, "buy")
	if !pass {
		t.Errorf("buy should pass in a clean uptrend, got %.1f%%", pct)
	}

	pct, pass = ValidateTimeframes(frames, "sell")
	if pass {
		t.Errorf("sell should fail in a clean uptrend, got %.1f%%", pct)
	}

	if _, pass := ValidateTimeframes(map[string][]broker.Candle{"H1": uptrend[:10]}, "buy"); pass {
		t.Error("validation should fail when no timeframe has enough data")
	}
}

func TestCheckTiming(t *testing.T) {
	t.Run("pullback near EMA20 passes", func(t *testing.T) {
		ok, note := CheckTiming(zigzagCandles(120, 1.10, 0.001), "buy", false)
		if !ok {
			t.Fatalf("timing failed: %s", note)
		}
		if !strings.Contains(note, "pullback") {
			t.Errorf("note = %q, want pullback entry", note)
		}
	})

	t.Run("exhausted RSI fails", func(t *testing.T) {
		ok, note := CheckTiming(uptrendCandles(120, 1.05, 0.003), "buy", false)
		if ok {
			t.Fatal("one-way climb should be rejected as exhausted")
		}
		if !strings.Contains(note, "exhausted") {
			t.Errorf("note = %q, want RSI exhausted", note)
		}
	})

	t.Run("too few candles fails", func(t *testing.T) {
		if ok, _ := CheckTiming(zigzagCandles(30, 1.10, 0.001), "buy", false); ok {
			t.Error("30 candles should not be enough")
		}
	})

	t.Run("counter momentum fails sell", func(t *testing.T) {
		ok, note := CheckTiming(uptrendCandles(120, 1.05, 0.0005), "sell", false)
		if ok {
			t.Fatalf("sell into rising momentum should fail, note=%s", note)
		}
	})
}
