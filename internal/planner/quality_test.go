package planner

import (
	"math"
	"testing"
)

func TestComputeQualityBounded(t *testing.T) {
	tests := []struct {
		name string
		in   QualityInputs
	}{
		{
			name: "strong buy setup",
			in: QualityInputs{
				TrendAligned: true, ADX: 25, ATRPercent: 1.2, RSI: 42,
				Mom5: 0.6, Mom20: 1.1, RangePos: 0.22, Direction: "buy",
				TimingPassed: true, SpreadPips: 0.4,
			},
		},
		{
			name: "weak sell setup",
			in: QualityInputs{
				TrendAligned: false, ADX: 8, ATRPercent: 0.1, RSI: 50,
				Mom5: 1.0, Mom20: 2.0, RangePos: 0.1, Direction: "sell",
				TimingPassed: false, SpreadPips: 3.0,
			},
		},
		{name: "zero value inputs", in: QualityInputs{Direction: "buy"}},
		{name: "neutral fallback", in: NeutralInputs("sell")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeQuality(tt.in)
			if got.Composite < 0 || got.Composite > 100 {
				t.Errorf("Composite = %.2f, outside [0, 100]", got.Composite)
			}
			for name, v := range got.Components {
				if v < 0 || v > 100 {
					t.Errorf("component %s = %.2f, outside [0, 100]", name, v)
				}
			}
		})
	}
}

func TestComputeQualityOrdersSetups(t *testing.T) {
	strong := ComputeQuality(QualityInputs{
		TrendAligned: true, ADX: 25, ATRPercent: 1.2, RSI: 45,
		Mom5: 0.6, Mom20: 1.1, RangePos: 0.2, Direction: "buy",
		TimingPassed: true, SpreadPips: 0.4,
	})
	weak := ComputeQuality(QualityInputs{
		TrendAligned: false, ADX: 8, ATRPercent: 0.1, RSI: 85,
		Mom5: -1.0, Mom20: -2.0, RangePos: 0.95, Direction: "buy",
		TimingPassed: false, SpreadPips: 3.0,
	})
	if strong.Composite <= weak.Composite {
		t.Errorf("strong setup %.2f should outscore weak setup %.2f", strong.Composite, weak.Composite)
	}
}

func TestRiskFraction(t *testing.T) {
	const riskMin, riskMax = 0.005, 0.010
	span := riskMax - riskMin

	tests := []struct {
		name    string
		quality float64
		want    float64
	}{
		{"floor below 55", 40, riskMin},
		{"breakpoint 55", 55, riskMin},
		{"breakpoint 70", 70, riskMin + span*0.25},
		{"breakpoint 85", 85, riskMin + span*0.55},
		{"ceiling at 100", 100, riskMax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RiskFraction(tt.quality, riskMin, riskMax)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RiskFraction(%.0f) = %.6f, want %.6f", tt.quality, got, tt.want)
			}
		})
	}

	// The curve never steps backward as quality rises.
	prev := 0.0
	for q := 0.0; q <= 100; q++ {
		got := RiskFraction(q, riskMin, riskMax)
		if got < prev {
			t.Fatalf("RiskFraction not monotonic at quality %.0f: %.6f < %.6f", q, got, prev)
		}
		prev = got
	}
}

func TestBuildExits(t *testing.T) {
	tests := []struct {
		name     string
		atrPips  float64
		wantSL   float64
		wantTP1  float64
		wantStep float64
	}{
		{"atr above minimum", 20, 20, 24, 10},
		{"min sl floor applies", 5, 8, 9.6, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildExits(tt.atrPips, 8, 1.2, 2.0, 1.0, 5)
			if math.Abs(got.SLPips-tt.wantSL) > 1e-9 {
				t.Errorf("SLPips = %.2f, want %.2f", got.SLPips, tt.wantSL)
			}
			if math.Abs(got.TP1Pips-tt.wantTP1) > 1e-9 {
				t.Errorf("TP1Pips = %.2f, want %.2f", got.TP1Pips, tt.wantTP1)
			}
			if got.TP2Pips <= got.TP1Pips {
				t.Errorf("TP2Pips %.2f should exceed TP1Pips %.2f", got.TP2Pips, got.TP1Pips)
			}
			if math.Abs(got.TrailStepPips-tt.wantStep) > 1e-9 {
				t.Errorf("TrailStepPips = %.2f, want %.2f", got.TrailStepPips, tt.wantStep)
			}
			if got.TrailStartR != 1.0 {
				t.Errorf("TrailStartR = %.2f, want 1.0", got.TrailStartR)
			}
		})
	}
}
