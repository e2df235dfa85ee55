package sentiment

import "math"

// DXY trend buckets.
const (
	DXYStrongBullish = "strong_bullish"
	DXYBullish       = "bullish"
	DXYNeutral       = "neutral"
	DXYBearish       = "bearish"
	DXYStrongBearish = "strong_bearish"
)

// VIX regime buckets.
const (
	VIXExtremeFear = "extreme_fear"
	VIXElevated    = "elevated"
	VIXNormal      = "normal"
	VIXComplacent  = "complacent"
)

// Risk regime buckets.
const (
	RiskOn      = "risk_on"
	RiskOff     = "risk_off"
	RiskNeutral = "neutral"
)

// ClassifyDXYTrend buckets the dollar index trend from its short and medium
// percent changes.
func ClassifyDXYTrend(change5, change20 float64) string {
	switch {
	case change5 > 0.4 && change20 > 0.8:
		return DXYStrongBullish
	case change5 > 0.15 || change20 > 0.35:
		return DXYBullish
	case change5 < -0.4 && change20 < -0.8:
		return DXYStrongBearish
	case change5 < -0.15 || change20 < -0.35:
		return DXYBearish
	default:
		return DXYNeutral
	}
}

// ClassifyVIX buckets the volatility index level.
func ClassifyVIX(vix float64) string {
	switch {
	case vix > 30:
		return VIXExtremeFear
	case vix > 22:
		return VIXElevated
	case vix > 15:
		return VIXNormal
	default:
		return VIXComplacent
	}
}

// RiskRegime derives the overall regime from VIX and the dollar trend. A
// rising dollar with elevated fear is risk-off; a calm tape with a falling
// dollar is risk-on.
func RiskRegime(vix float64, dxyTrend string) string {
	dxyBullish := dxyTrend == DXYBullish || dxyTrend == DXYStrongBullish
	dxyBearish := dxyTrend == DXYBearish || dxyTrend == DXYStrongBearish
	switch {
	case vix >= 22 && dxyBullish:
		return RiskOff
	case vix <= 16 && dxyBearish:
		return RiskOn
	default:
		return RiskNeutral
	}
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

// Composite blends the categorical and continuous signals into one score in
// [-100, 100]. Positive means risk-on conditions.
func Composite(dxyTrend string, dxyChange20 float64, vix float64, vixLevel, regime, bondTrend string) float64 {
	score := 0.0

	switch dxyTrend {
	case DXYStrongBullish:
		score -= 30
	case DXYBullish:
		score -= 15
	case DXYBearish:
		score += 15
	case DXYStrongBearish:
		score += 30
	}

	switch vixLevel {
	case VIXExtremeFear:
		score -= 25
	case VIXElevated:
		score -= 10
	case VIXComplacent:
		score += 10
	}

	switch regime {
	case RiskOn:
		score += 20
	case RiskOff:
		score -= 20
	}

	switch bondTrend {
	case "rising":
		score -= 10
	case "falling":
		score += 10
	}

	// Continuous refinements keep adjacent readings from snapping between
	// buckets.
	score -= clamp(dxyChange20*6, 12)
	score += clamp(20-vix, 10)

	return clamp(score, 100)
}

// CompositeBucket converts the composite score into a regime label.
func CompositeBucket(composite float64) string {
	switch {
	case composite > 20:
		return RiskOn
	case composite < -20:
		return RiskOff
	default:
		return RiskNeutral
	}
}

// Confidence grades how many independent signals moved off neutral.
func Confidence(dxyTrend, vixLevel, regime, bondTrend string) string {
	weight := 0.0
	if dxyTrend == DXYStrongBullish || dxyTrend == DXYStrongBearish {
		weight += 1.5
	} else if dxyTrend != DXYNeutral {
		weight += 1.0
	}
	if vixLevel == VIXExtremeFear {
		weight += 1.5
	} else if vixLevel != VIXNormal {
		weight += 1.0
	}
	if regime != RiskNeutral {
		weight += 1.0
	}
	if bondTrend != "neutral" {
		weight += 0.5
	}

	switch {
	case weight >= 2.5:
		return "high"
	case weight >= 1.5:
		return "medium"
	default:
		return "low"
	}
}
