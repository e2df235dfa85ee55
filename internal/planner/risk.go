package planner

// RiskFraction maps a quality composite onto the account fraction risked
// for the trade. Piecewise linear: mediocre setups pin to the minimum,
// risk ramps with conviction, and only top-grade setups reach the maximum.
func RiskFraction(quality, riskMin, riskMax float64) float64 {
	span := riskMax - riskMin
	if span <= 0 {
		return riskMin
	}
	q70 := riskMin + span*0.25
	q85 := riskMin + span*0.55

	switch {
	case quality <= 55:
		return riskMin
	case quality <= 70:
		return lerp(riskMin, q70, (quality-55)/15)
	case quality <= 85:
		return lerp(q70, q85, (quality-70)/15)
	default:
		return lerp(q85, riskMax, (quality-85)/15)
	}
}

func lerp(a, b, t float64) float64 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return a + (b-a)*t
}
