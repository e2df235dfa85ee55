package gate

import (
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/indicators"
)

// htfTrendBuffer keeps the daily trend tag off marginal EMA crossings.
const htfTrendBuffer = 0.0005

func closes(candles []broker.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// HTFTrendAligned reports whether the daily EMA50/EMA200 relationship
// agrees with the trade direction. Requires enough candles to seed both
// EMAs; too little data means no tag.
func HTFTrendAligned(daily []broker.Candle, direction string) bool {
	if len(daily) < 200 {
		return false
	}
	series := closes(daily)
	ema50, ok1 := indicators.EMA(series, 50)
	ema200, ok2 := indicators.EMA(series, 200)
	if !ok1 || !ok2 {
		return false
	}
	if direction == "buy" {
		return ema50 > ema200*(1+htfTrendBuffer)
	}
	return ema50 < ema200*(1-htfTrendBuffer)
}

// SwingBreak reports whether the latest close breaks the swing extreme of
// the prior structure window (the last 5 bars excluded so the break bar
// itself is not part of the reference range).
func SwingBreak(h4 []broker.Candle, direction string) bool {
	if len(h4) < 30 {
		return false
	}
	prior := h4[len(h4)-25 : len(h4)-5]
	last := h4[len(h4)-1].Close

	if direction == "buy" {
		high := prior[0].High
		for _, c := range prior {
			if c.High > high {
				high = c.High
			}
		}
		return last > high
	}
	low := prior[0].Low
	for _, c := range prior {
		if c.Low < low {
			low = c.Low
		}
	}
	return last < low
}

// BreakRetest reports whether price broke a structural level and has since
// retested it within a tolerance of 0.3 ATR. The level comes from an older
// window so the break and retest both happen in the recent one.
func BreakRetest(h4 []broker.Candle, direction string, atr float64) bool {
	if len(h4) < 55 || atr <= 0 {
		return false
	}
	prior := h4[len(h4)-40 : len(h4)-15]
	recent := h4[len(h4)-15:]
	tolerance := atr * 0.3
	last := recent[len(recent)-1].Close

	if direction == "buy" {
		level := prior[0].High
		for _, c := range prior {
			if c.High > level {
				level = c.High
			}
		}
		broke := false
		for _, c := range recent {
			if c.Close > level {
				broke = true
				break
			}
		}
		return broke && last >= level-tolerance && last <= level+3*tolerance
	}

	level := prior[0].Low
	for _, c := range prior {
		if c.Low < level {
			level = c.Low
		}
	}
	broke := false
	for _, c := range recent {
		if c.Close < level {
			broke = true
			break
		}
	}
	return broke && last <= level+tolerance && last >= level-3*tolerance
}

// StructureTags computes the soft context tags for a candidate. Tags never
// block; they feed the quality model and the trade rationale.
func StructureTags(daily, h4 []broker.Candle, direction string, atr float64) []string {
	var tags []string
	if HTFTrendAligned(daily, direction) {
		tags = append(tags, TagHTFTrend)
	}
	if SwingBreak(h4, direction) {
		tags = append(tags, TagSwingBreak)
	}
	if BreakRetest(h4, direction, atr) {
		tags = append(tags, TagBreakRetest)
	}
	if len(tags) == 0 {
		tags = append(tags, TagNoStructure)
	}
	return tags
}
