package planner

import "math"

// Quality component weights. They sum to 1.0; the composite stays in
// [0, 100] because every component is clipped to that range.
const (
	weightTrend    = 0.22
	weightADX      = 0.14
	weightATR      = 0.12
	weightRSI      = 0.12
	weightMomentum = 0.14
	weightRange    = 0.10
	weightTiming   = 0.10
	weightSpread   = 0.06
)

// QualityInputs are the context readings the quality model grades. Missing
// context uses neutral fallbacks rather than failing the plan.
type QualityInputs struct {
	TrendAligned bool
	ADX          float64
	ATRPercent   float64
	RSI          float64
	Mom5         float64
	Mom20        float64
	RangePos     float64
	Direction    string // "buy" or "sell"
	TimingPassed bool   // short-timeframe entry check
	SpreadPips   float64
}

// NeutralInputs returns the fallback context used when market reads fail.
func NeutralInputs(direction string) QualityInputs {
	return QualityInputs{
		TrendAligned: direction == "buy",
		ADX:          18,
		ATRPercent:   1.0,
		RSI:          50,
		RangePos:     0.5,
		Direction:    direction,
		SpreadPips:   1.0,
	}
}

// QualityScore is the composite grade with its per-component breakdown.
type QualityScore struct {
	Composite  float64            `json:"composite"`
	Components map[string]float64 `json:"components"`
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ComputeQuality grades a setup in [0, 100]. Each component maps its raw
// reading onto a 0-100 sub-score before weighting, so one bad reading can
// drag but never dominate.
func ComputeQuality(in QualityInputs) QualityScore {
	components := make(map[string]float64, 8)

	trend := 60.0
	if in.TrendAligned {
		trend = 100.0
	}
	components["trend"] = trend

	var adx float64
	switch {
	case in.ADX < 10:
		adx = 40
	case in.ADX < 15:
		adx = 60
	case in.ADX < 20:
		adx = 75
	case in.ADX < 30:
		adx = 90
	default:
		adx = 85
	}
	components["adx"] = adx

	var atr float64
	switch {
	case in.ATRPercent < 0.3:
		atr = 55
	case in.ATRPercent < 0.5:
		atr = 75
	case in.ATRPercent < 2.0:
		atr = 90
	case in.ATRPercent < 3.5:
		atr = 78
	default:
		atr = 60
	}
	components["atr"] = atr

	components["rsi"] = clip(100-math.Abs(in.RSI-50)*2, 50, 95)

	momentum := 70.0
	mom5Aligned := (in.Direction == "buy" && in.Mom5 > 0) || (in.Direction == "sell" && in.Mom5 < 0)
	mom20Aligned := (in.Direction == "buy" && in.Mom20 > 0) || (in.Direction == "sell" && in.Mom20 < 0)
	if mom5Aligned {
		momentum += 10
	}
	if mom20Aligned {
		momentum += 10
	}
	if mom5Aligned && mom20Aligned {
		momentum += 5
	}
	components["momentum"] = clip(momentum, 55, 95)

	ideal := 0.2
	if in.Direction == "sell" {
		ideal = 0.8
	}
	components["range"] = clip(95-math.Abs(in.RangePos-ideal)*200, 55, 95)

	timing := 68.0
	if in.TimingPassed {
		timing = 92.0
	}
	components["timing"] = timing

	var spread float64
	switch {
	case in.SpreadPips <= 0.5:
		spread = 95
	case in.SpreadPips <= 1.0:
		spread = 88
	case in.SpreadPips <= 1.5:
		spread = 80
	case in.SpreadPips <= 2.0:
		spread = 72
	default:
		spread = 60
	}
	components["spread"] = spread

	composite := trend*weightTrend +
		adx*weightADX +
		atr*weightATR +
		components["rsi"]*weightRSI +
		components["momentum"]*weightMomentum +
		components["range"]*weightRange +
		timing*weightTiming +
		spread*weightSpread

	return QualityScore{
		Composite:  clip(composite, 0, 100),
		Components: components,
	}
}
