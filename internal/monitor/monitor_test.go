package monitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/ledger"
)

func testMonitorConfig() config.MonitorConfig {
	return config.MonitorConfig{
		PollInterval:        1,
		MissingPriceBackoff: 1,
		ErrorBackoff:        1,
		BreakevenTriggerR:   0.7,
		PartialCloseRatio:   0.25,
		PartialTriggerR:     1.5,
		PartialMinPips:      35,
		PartialMinPipsJPY:   30,
		TrailMultNear:       1.5,
		TrailMultMid:        1.2,
		TrailMultFar:        1.0,
		ShutdownGrace:       1,
	}
}

func flatM15(base, span float64) []broker.Candle {
	candles := make([]broker.Candle, 30)
	t0 := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i] = broker.Candle{
			Time: t0.Add(time.Duration(i) * 15 * time.Minute),
			Open: base, High: base + span, Low: base - span, Close: base, Complete: true,
		}
	}
	return candles
}

func testEntry() ledger.Entry {
	return ledger.Entry{
		TradeID:    "7",
		Symbol:     "EUR_USD",
		Direction:  "buy",
		EntryPrice: 1.1000,
		Units:      10000,
		StopLoss:   1.0950,
		TakeProfit: 1.1100,
		OpenedAt:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

func newTestMonitor(t *testing.T) (*tradeMonitor, *broker.MockClient, *ledger.Ledger) {
	t.Helper()
	client := broker.NewMockClient()
	client.SetTrade(&broker.TradeState{
		TradeID: "7", Instrument: "EUR_USD",
		InitialUnits: 10000, CurrentUnits: 10000,
		EntryPrice: 1.1000, State: "OPEN",
	})
	// Half-pip range bars give a 10 pip Wilder ATR for trailing.
	client.SetCandles("EUR_USD", "M15", flatM15(1.1000, 0.0005))

	led, err := ledger.Load(filepath.Join(t.TempDir(), "ledger.json"))
	if err != nil {
		t.Fatalf("ledger.Load error = %v", err)
	}
	led.Add(testEntry())

	return newTradeMonitor(testMonitorConfig(), client, led, nil, nil, nil, testEntry()), client, led
}

func TestClassifyCloseReason(t *testing.T) {
	buy := func(final, pnl float64, partial bool) CloseInput {
		return CloseInput{
			Symbol: "EUR_USD", Direction: "buy",
			EntryPrice: 1.1000, StopLoss: 1.0950, TakeProfit: 1.1100,
			FinalPrice: final, RealizedPL: pnl, PartialSeen: partial,
		}
	}

	tests := []struct {
		name string
		in   CloseInput
		want CloseReason
	}{
		{"buy one pip shy of target", buy(1.1099, 85, false), ClosedTakeProfit},
		{"buy crosses target", buy(1.1105, 100, false), ClosedTakeProfit},
		{"buy tags the stop", buy(1.0951, -48, false), ClosedStopLoss},
		{"buy crosses the stop", buy(1.0940, -60, false), ClosedStopLoss},
		{"trailed out mid-run", buy(1.1060, 55, false), ClosedTrailing},
		{"shallow profitable close falls to pnl", buy(1.1020, 18, false), ClosedTakeProfit},
		{"shallow losing close falls to pnl", buy(1.1020, -3, false), ClosedStopLoss},
		{"breakeven close with flat pnl", buy(1.1000, 0, false), ClosedExternally},
		{"no final price, no pnl", buy(0, 0, false), ClosedExternally},
		{"no final price, positive pnl", buy(0, 40, false), ClosedTakeProfit},
		{"partial then target", buy(1.1099, 85, true), ClosedPartialThenTP},
		{"partial then trailed", buy(1.1060, 55, true), ClosedPartialThenTP},
		{"partial then stop", buy(1.0951, -20, true), ClosedPartialThenSL},
		{"partial then unexplained", buy(1.1000, 0, true), ClosedPartial},
		{
			name: "sell one pip shy of target",
			in: CloseInput{
				Symbol: "EUR_USD", Direction: "sell",
				EntryPrice: 1.1000, StopLoss: 1.1050, TakeProfit: 1.0900,
				FinalPrice: 1.0902, RealizedPL: 80,
			},
			want: ClosedTakeProfit,
		},
		{
			name: "sell through the stop",
			in: CloseInput{
				Symbol: "EUR_USD", Direction: "sell",
				EntryPrice: 1.1000, StopLoss: 1.1050, TakeProfit: 1.0900,
				FinalPrice: 1.1055, RealizedPL: -55,
			},
			want: ClosedStopLoss,
		},
		{
			name: "yen pair tolerance is pip scaled",
			in: CloseInput{
				Symbol: "USD_JPY", Direction: "buy",
				EntryPrice: 150.00, StopLoss: 149.50, TakeProfit: 151.00,
				FinalPrice: 150.98, RealizedPL: 90,
			},
			want: ClosedTakeProfit,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyCloseReason(tt.in); got != tt.want {
				t.Errorf("ClassifyCloseReason(final=%.4f, pnl=%.0f) = %s, want %s",
					tt.in.FinalPrice, tt.in.RealizedPL, got, tt.want)
			}
		})
	}

	t.Run("deterministic", func(t *testing.T) {
		in := buy(1.1060, 55, false)
		if ClassifyCloseReason(in) != ClassifyCloseReason(in) {
			t.Error("same input must always classify the same way")
		}
	})
}

func TestMonitorBreakevenAndTrailing(t *testing.T) {
	tm, client, _ := newTestMonitor(t)
	ctx := context.Background()

	// 40 pips up: 0.8R clears the 0.7R breakeven trigger, then the near
	// tier trails 1.5 x ATR behind price.
	client.SetQuote("EUR_USD", 1.1040, 1.1042)
	if _, done := tm.step(ctx); done {
		t.Fatal("monitor finished early")
	}
	updates := client.StopUpdates["7"]
	if len(updates) != 2 {
		t.Fatalf("stop updates = %v, want breakeven then trail", updates)
	}
	if updates[0] != 1.1000 {
		t.Errorf("breakeven stop = %v, want 1.10000", updates[0])
	}
	if updates[1] != 1.1025 {
		t.Errorf("trail stop = %v, want 1.10250", updates[1])
	}

	// Price retreats: the stop must not loosen.
	client.SetQuote("EUR_USD", 1.1010, 1.1012)
	tm.step(ctx)
	if len(client.StopUpdates["7"]) != 2 {
		t.Errorf("stop moved on a pullback: %v", client.StopUpdates["7"])
	}

	// 80 pips up: 1.6R switches to the mid tier (1.2 x ATR).
	client.SetQuote("EUR_USD", 1.1080, 1.1082)
	tm.step(ctx)
	updates = client.StopUpdates["7"]
	if updates[len(updates)-1] != 1.1068 {
		t.Errorf("mid tier trail = %v, want 1.10680", updates[len(updates)-1])
	}

	// Every update so far only ever tightened.
	for i := 1; i < len(updates); i++ {
		if updates[i] <= updates[i-1] {
			t.Errorf("stop loosened: %v", updates)
		}
	}
}

func TestMonitorPartialCloseOnce(t *testing.T) {
	tm, client, _ := newTestMonitor(t)
	ctx := context.Background()

	// Trigger is max(35 pips, 1.5R = 75 pips). 60 pips must not fire.
	client.SetQuote("EUR_USD", 1.1060, 1.1062)
	tm.step(ctx)
	if len(client.PartialCloses["7"]) != 0 {
		t.Fatalf("partial fired below trigger: %v", client.PartialCloses["7"])
	}

	// 80 pips fires once, closing 25% of the position.
	client.SetQuote("EUR_USD", 1.1080, 1.1082)
	tm.step(ctx)
	if got := client.PartialCloses["7"]; len(got) != 1 || got[0] != 2500 {
		t.Fatalf("partial closes = %v, want one close of 2500", got)
	}

	// Further profit never re-fires it.
	client.SetQuote("EUR_USD", 1.1095, 1.1097)
	tm.step(ctx)
	if len(client.PartialCloses["7"]) != 1 {
		t.Errorf("partial fired twice: %v", client.PartialCloses["7"])
	}
}

func TestMonitorClassifiesDisappearedTrade(t *testing.T) {
	tm, client, led := newTestMonitor(t)
	ctx := context.Background()

	client.SetQuote("EUR_USD", 1.1099, 1.1101)
	tm.step(ctx)

	client.RemoveTrade("7")
	if _, done := tm.step(ctx); !done {
		t.Fatal("monitor should finish when the trade disappears")
	}
	if _, ok := led.Get("7"); ok {
		t.Error("closed trade still in the ledger")
	}
	// Last seen price one pip from the target classifies as a TP hit.
	got := ClassifyCloseReason(CloseInput{
		Symbol: "EUR_USD", Direction: "buy",
		EntryPrice: 1.1000, StopLoss: 1.0950, TakeProfit: 1.1100,
		FinalPrice: tm.lastPrice,
	})
	if got != ClosedTakeProfit {
		t.Errorf("close reason = %s, want %s", got, ClosedTakeProfit)
	}
}

func TestMonitorBacksOffOnTransientError(t *testing.T) {
	tm, client, _ := newTestMonitor(t)
	client.LookupOverride = &broker.TradeLookup{Status: broker.StatusTransient}

	delay, done := tm.step(context.Background())
	if done {
		t.Fatal("transient error must not stop the monitor")
	}
	if delay != time.Second {
		t.Errorf("delay = %v, want the error backoff", delay)
	}
}

func TestManagerWatchAndShutdown(t *testing.T) {
	client := broker.NewMockClient()
	led, err := ledger.Load(filepath.Join(t.TempDir(), "ledger.json"))
	if err != nil {
		t.Fatalf("ledger.Load error = %v", err)
	}
	entry := testEntry()
	led.Add(entry)

	mgr := NewManager(testMonitorConfig(), client, led, nil, nil, nil)

	// No such trade at the broker: the monitor finalizes on its first tick.
	mgr.Watch(entry)
	mgr.Watch(entry) // second watch on the same ID is a no-op

	deadline := time.After(2 * time.Second)
	for len(mgr.Active()) > 0 {
		select {
		case <-deadline:
			t.Fatal("monitor did not finish")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if _, ok := led.Get(entry.TradeID); ok {
		t.Error("ledger entry should be removed after the not-found close")
	}
	mgr.Shutdown()
}
