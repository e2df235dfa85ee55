package planner

import "math"

// ExitPlan is the pip-denominated exit ladder attached to a trade plan.
type ExitPlan struct {
	SLPips        float64 `json:"sl_pips"`
	TP1Pips       float64 `json:"tp1_pips"`
	TP2Pips       float64 `json:"tp2_pips"`
	TrailStartR   float64 `json:"trail_start_r"`
	TrailStepPips float64 `json:"trail_step_pips"`
}

// BuildExits derives the exit ladder from the ATR expressed in pips. The
// stop never shrinks below the configured minimum, the first target banks
// at 1.2R and the runner target at 2R, and trailing arms once the trade
// reaches the configured R multiple.
func BuildExits(atrPips, minSLPips, tp1Mult, tp2Mult, trailStartR, minTrailPips float64) ExitPlan {
	slPips := math.Max(atrPips, minSLPips)
	return ExitPlan{
		SLPips:        slPips,
		TP1Pips:       slPips * tp1Mult,
		TP2Pips:       slPips * tp2Mult,
		TrailStartR:   trailStartR,
		TrailStepPips: math.Max(atrPips*0.5, minTrailPips),
	}
}
