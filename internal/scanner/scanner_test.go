package scanner

import (
	"context"
	"testing"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
)

func trendCandles(n int, start, step float64) []broker.Candle {
	candles := make([]broker.Candle, n)
	prev := start
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		cl := start + step*float64(i+1)
		candles[i] = broker.Candle{
			Time: base.Add(time.Duration(i) * 4 * time.Hour),
			Open: prev, High: cl + 0.002, Low: prev - 0.002, Close: cl, Complete: true,
		}
		prev = cl
	}
	return candles
}

func TestScanProducesRankedOpportunities(t *testing.T) {
	client := broker.NewMockClient()
	client.SetCandles("EUR_USD", "H4", trendCandles(100, 1.05, 0.003))
	client.SetCandles("GBP_USD", "H4", trendCandles(100, 1.25, 0.003))

	cfg := config.ScannerConfig{
		Instruments: []string{"EUR_USD", "GBP_USD", "USD_CHF"},
		Granularity: "H4",
		CandleCount: 100,
		WorkerCount: 2,
		MinRawScore: 0,
		MinScore:    0,
		ATRSLMult:   2.0,
		ATRTPMult:   3.0,
	}
	groups := map[string][]string{"usd_majors": {"EUR_USD", "GBP_USD"}}

	sc := NewScanner(cfg, groups, client, nil)
	result, err := sc.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan error = %v", err)
	}

	// USD_CHF has no candles and must be skipped, not failed.
	if result.SymbolsSkipped != 1 {
		t.Errorf("SymbolsSkipped = %d, want 1", result.SymbolsSkipped)
	}
	if len(result.Opportunities) != 2 {
		t.Fatalf("opportunities = %d, want 2", len(result.Opportunities))
	}

	for _, o := range result.Opportunities {
		if o.ScanID != result.ScanID {
			t.Errorf("%s scan ID mismatch", o.Symbol)
		}
		if o.Score < 0 || o.Score > 100 {
			t.Errorf("%s score %.1f outside [0, 100]", o.Symbol, o.Score)
		}
		if o.Direction == "buy" {
			if !(o.StopLoss < o.EntryPrice && o.EntryPrice < o.TakeProfit) {
				t.Errorf("%s buy levels out of order: sl=%v entry=%v tp=%v", o.Symbol, o.StopLoss, o.EntryPrice, o.TakeProfit)
			}
		} else {
			if !(o.TakeProfit < o.EntryPrice && o.EntryPrice < o.StopLoss) {
				t.Errorf("%s sell levels out of order: tp=%v entry=%v sl=%v", o.Symbol, o.TakeProfit, o.EntryPrice, o.StopLoss)
			}
		}
		// Both survivors share a correlation group in the same direction.
		if o.Correlation != 0.3 {
			t.Errorf("%s correlation = %v, want 0.3", o.Symbol, o.Correlation)
		}
	}

	// Ranked by adjusted score, best first.
	for i := 1; i < len(result.Opportunities); i++ {
		if result.Opportunities[i].Score > result.Opportunities[i-1].Score {
			t.Error("opportunities not sorted by score descending")
		}
	}

	if sc.LastResult() != result {
		t.Error("LastResult should return the latest scan")
	}
}

func TestScanCapsResults(t *testing.T) {
	client := broker.NewMockClient()
	client.SetCandles("EUR_USD", "H4", trendCandles(100, 1.05, 0.003))
	client.SetCandles("GBP_USD", "H4", trendCandles(100, 1.25, 0.003))

	cfg := config.ScannerConfig{
		Instruments: []string{"EUR_USD", "GBP_USD"},
		Granularity: "H4",
		CandleCount: 100,
		WorkerCount: 2,
		MinRawScore: 0,
		MinScore:    0,
		ATRSLMult:   2.0,
		ATRTPMult:   3.0,
		MaxResults:  1,
	}
	sc := NewScanner(cfg, nil, client, nil)
	result, err := sc.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan error = %v", err)
	}
	if len(result.Opportunities) != 1 {
		t.Fatalf("opportunities = %d, want the configured cap of 1", len(result.Opportunities))
	}

	// Without the cap both pairs qualify; the survivor must be the best one.
	cfg.MaxResults = 0
	uncapped, err := NewScanner(cfg, nil, client, nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan error = %v", err)
	}
	if len(uncapped.Opportunities) != 2 {
		t.Fatalf("uncapped opportunities = %d, want 2", len(uncapped.Opportunities))
	}
	if result.Opportunities[0].Score < uncapped.Opportunities[1].Score {
		t.Error("cap kept a lower-scored opportunity")
	}
}

func TestScanRespectsMinScore(t *testing.T) {
	client := broker.NewMockClient()
	client.SetCandles("EUR_USD", "H4", trendCandles(100, 1.05, 0.003))

	cfg := config.ScannerConfig{
		Instruments: []string{"EUR_USD"},
		Granularity: "H4",
		CandleCount: 100,
		WorkerCount: 1,
		MinRawScore: 101, // nothing can clear this
		MinScore:    101,
		ATRSLMult:   2.0,
		ATRTPMult:   3.0,
	}
	sc := NewScanner(cfg, nil, client, nil)
	result, err := sc.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan error = %v", err)
	}
	if len(result.Opportunities) != 0 {
		t.Errorf("opportunities = %d, want 0", len(result.Opportunities))
	}
}
