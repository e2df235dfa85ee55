package indicators

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestEMA(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		period   int
		expected float64
		ok       bool
	}{
		{
			name:   "insufficient history returns not ok",
			values: []float64{1, 2},
			period: 3,
			ok:     false,
		},
		{
			name:     "seeds with first value not SMA",
			values:   []float64{10, 11, 12},
			period:   3,
			expected: 11.25, // 10 -> 10.5 -> 11.25 with multiplier 0.5
			ok:       true,
		},
		{
			name:     "constant series returns the constant",
			values:   []float64{5, 5, 5, 5, 5},
			period:   4,
			expected: 5,
			ok:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EMA(tt.values, tt.period)
			if ok != tt.ok {
				t.Fatalf("EMA ok = %v, want %v", ok, tt.ok)
			}
			if ok && !almostEqual(got, tt.expected, 1e-9) {
				t.Errorf("EMA = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name     string
		closes   []float64
		period   int
		expected float64
		ok       bool
	}{
		{
			name:   "too few closes",
			closes: []float64{1, 2, 3},
			period: 14,
			ok:     false,
		},
		{
			name:     "all gains returns 100",
			closes:   []float64{1, 2, 3, 4, 5, 6},
			period:   5,
			expected: 100,
			ok:       true,
		},
		{
			name: "balanced gains and losses near 50",
			closes: []float64{
				100, 101, 100, 101, 100, 101, 100, 101, 100, 101,
				100, 101, 100, 101, 100,
			},
			period:   14,
			expected: 50,
			ok:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RSI(tt.closes, tt.period)
			if ok != tt.ok {
				t.Fatalf("RSI ok = %v, want %v", ok, tt.ok)
			}
			if ok && !almostEqual(got, tt.expected, 1.0) {
				t.Errorf("RSI = %v, want ~%v", got, tt.expected)
			}
		})
	}
}

func TestWilderSmooth(t *testing.T) {
	values := []float64{2, 4, 6, 8}
	smoothed := WilderSmooth(values, 2)
	if len(smoothed) != 3 {
		t.Fatalf("len(smoothed) = %d, want 3", len(smoothed))
	}
	// initial = (2+4)/2 = 3; then (3*1+6)/2 = 4.5; then (4.5*1+8)/2 = 6.25
	want := []float64{3, 4.5, 6.25}
	for i := range want {
		if !almostEqual(smoothed[i], want[i], 1e-9) {
			t.Errorf("smoothed[%d] = %v, want %v", i, smoothed[i], want[i])
		}
	}
}

func TestATRWilder(t *testing.T) {
	highs := []float64{11, 12, 13, 12.5, 13.5}
	lows := []float64{9, 10, 11, 11.0, 12.0}
	closes := []float64{10, 11, 12, 12.0, 13.0}

	atr, ok := ATRWilder(highs, lows, closes, 3)
	if !ok {
		t.Fatal("ATRWilder returned not ok for sufficient data")
	}
	if atr <= 0 {
		t.Errorf("ATR = %v, want > 0", atr)
	}

	if _, ok := ATRWilder(highs[:2], lows[:2], closes[:2], 3); ok {
		t.Error("ATRWilder should report not ok for short series")
	}
}

func TestADX(t *testing.T) {
	// A steadily trending series should produce a meaningful ADX.
	n := 40
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		base := 100 + float64(i)*0.5
		highs[i] = base + 0.4
		lows[i] = base - 0.4
		closes[i] = base
	}

	adx, ok := ADX(highs, lows, closes, 14)
	if !ok {
		t.Fatal("ADX returned not ok for sufficient data")
	}
	if adx < 0 || adx > 100 {
		t.Errorf("ADX = %v, want within [0, 100]", adx)
	}
	if adx < 50 {
		t.Errorf("ADX = %v for a clean uptrend, want strong (>= 50)", adx)
	}

	if _, ok := ADX(highs[:10], lows[:10], closes[:10], 14); ok {
		t.Error("ADX should report not ok for short series")
	}
}

func TestMomentum(t *testing.T) {
	closes := []float64{100, 102, 104, 106, 108, 110}

	got, ok := Momentum(closes, 5)
	if !ok {
		t.Fatal("Momentum returned not ok")
	}
	// base is closes[len-5] = 102, last = 110
	want := (110.0 - 102.0) / 102.0 * 100
	if !almostEqual(got, want, 1e-9) {
		t.Errorf("Momentum = %v, want %v", got, want)
	}
}

func TestRangePosition(t *testing.T) {
	tests := []struct {
		name     string
		highs    []float64
		lows     []float64
		closes   []float64
		lookback int
		expected float64
	}{
		{
			name:     "close at the low",
			highs:    []float64{2, 2, 2},
			lows:     []float64{1, 1, 1},
			closes:   []float64{1.5, 1.2, 1.0},
			lookback: 3,
			expected: 0,
		},
		{
			name:     "close at the high",
			highs:    []float64{2, 2, 2},
			lows:     []float64{1, 1, 1},
			closes:   []float64{1.5, 1.8, 2.0},
			lookback: 3,
			expected: 1,
		},
		{
			name:     "flat band returns mid",
			highs:    []float64{1, 1, 1},
			lows:     []float64{1, 1, 1},
			closes:   []float64{1, 1, 1},
			lookback: 3,
			expected: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RangePosition(tt.highs, tt.lows, tt.closes, tt.lookback)
			if !ok {
				t.Fatal("RangePosition returned not ok")
			}
			if !almostEqual(got, tt.expected, 1e-9) {
				t.Errorf("RangePosition = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRealizedVolatility(t *testing.T) {
	flat := []float64{100, 100, 100, 100, 100, 100}
	got, ok := RealizedVolatility(flat, 5)
	if !ok {
		t.Fatal("RealizedVolatility returned not ok")
	}
	if got != 0 {
		t.Errorf("volatility of flat series = %v, want 0", got)
	}

	choppy := []float64{100, 102, 99, 103, 98, 104}
	gotChoppy, ok := RealizedVolatility(choppy, 5)
	if !ok {
		t.Fatal("RealizedVolatility returned not ok for choppy series")
	}
	if gotChoppy <= 0 {
		t.Errorf("volatility of choppy series = %v, want > 0", gotChoppy)
	}
}
