package circuit

import (
	"path/filepath"
	"testing"
	"time"

	"oanda-trading-bot/config"
)

func testConfig(t *testing.T) config.CircuitBreakerConfig {
	t.Helper()
	return config.CircuitBreakerConfig{
		Enabled:             true,
		StateFile:           filepath.Join(t.TempDir(), "breaker.json"),
		MaxDrawdownPercent:  8.0,
		LossStreakThreshold: 4,
		RiskReduction:       0.5,
		RecoveryThreshold:   2.0,
		LookbackDays:        7,
	}
}

func losses(n int, amount float64, now time.Time) []ClosedTrade {
	trades := make([]ClosedTrade, n)
	for i := 0; i < n; i++ {
		trades[i] = ClosedTrade{PnL: amount, ClosedAt: now.Add(-time.Duration(n-i) * time.Hour)}
	}
	return trades
}

func TestTripsOnLossStreak(t *testing.T) {
	b := NewBreaker(testConfig(t), nil)
	now := time.Now()

	st := b.Evaluate(losses(3, -50, now), now)
	if st.Active {
		t.Fatal("3 losses should not trip a 4-loss breaker")
	}
	if st.RiskMultiplier != 1.0 {
		t.Errorf("RiskMultiplier = %v, want 1.0", st.RiskMultiplier)
	}

	st = b.Evaluate(losses(4, -50, now), now)
	if !st.Active {
		t.Fatal("4 consecutive losses should trip")
	}
	if st.RiskMultiplier != 0.5 || st.FrequencyMultiplier != 0.5 {
		t.Errorf("multipliers = %v/%v, want 0.5/0.5", st.RiskMultiplier, st.FrequencyMultiplier)
	}
}

func TestWinBreaksStreak(t *testing.T) {
	b := NewBreaker(testConfig(t), nil)
	now := time.Now()

	trades := losses(4, -50, now)
	// Most recent trade is a win, so the streak restarts at zero.
	trades = append(trades, ClosedTrade{PnL: 120, ClosedAt: now.Add(-time.Minute)})

	st := b.Evaluate(trades, now)
	if st.Active {
		t.Error("a recent win should reset the streak")
	}
	if st.LossStreak != 0 {
		t.Errorf("LossStreak = %d, want 0", st.LossStreak)
	}
}

func TestTripsOnDrawdown(t *testing.T) {
	b := NewBreaker(testConfig(t), nil)
	now := time.Now()

	// One win then one large loss: 10% drop from the peak.
	trades := []ClosedTrade{
		{PnL: 500, ClosedAt: now.Add(-3 * time.Hour)},
		{PnL: -1050, ClosedAt: now.Add(-2 * time.Hour)},
		{PnL: 10, ClosedAt: now.Add(-time.Hour)},
	}
	st := b.Evaluate(trades, now)
	if !st.Active {
		t.Fatalf("drawdown %.1f%% should trip the 8%% limit", st.DrawdownPercent)
	}
}

func TestRecoveryNeedsTimeAndProfit(t *testing.T) {
	cfg := testConfig(t)
	b := NewBreaker(cfg, nil)
	now := time.Now()

	st := b.Evaluate(losses(4, -50, now), now)
	if !st.Active {
		t.Fatal("breaker should be tripped")
	}

	// Profitable trades the same day: too soon to recover.
	sameDay := []ClosedTrade{{PnL: 300, ClosedAt: now.Add(time.Hour)}}
	st = b.Evaluate(sameDay, now.Add(2*time.Hour))
	if !st.Active {
		t.Error("recovery requires at least a full day tripped")
	}

	// Two days later with enough profit (>= 2% of reference equity).
	later := now.Add(48 * time.Hour)
	recoveryTrades := []ClosedTrade{
		{PnL: 150, ClosedAt: later.Add(-20 * time.Hour)},
		{PnL: 100, ClosedAt: later.Add(-5 * time.Hour)},
	}
	st = b.Evaluate(recoveryTrades, later)
	if st.Active {
		t.Errorf("breaker should recover: %+v", st)
	}
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	cfg := testConfig(t)
	now := time.Now()

	b := NewBreaker(cfg, nil)
	if st := b.Evaluate(losses(4, -50, now), now); !st.Active {
		t.Fatal("breaker should be tripped")
	}

	restored := NewBreaker(cfg, nil)
	if st := restored.Status(); !st.Active {
		t.Error("tripped state should survive a restart")
	}
}

func TestOldTradesOutsideLookbackIgnored(t *testing.T) {
	b := NewBreaker(testConfig(t), nil)
	now := time.Now()

	old := make([]ClosedTrade, 4)
	for i := range old {
		old[i] = ClosedTrade{PnL: -50, ClosedAt: now.AddDate(0, 0, -10)}
	}
	if st := b.Evaluate(old, now); st.Active {
		t.Error("losses outside the lookback window should not trip")
	}
}
