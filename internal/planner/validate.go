package planner

import (
	"fmt"
	"math"

	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/indicators"
)

// validatePassPercent is the fraction of the maximum multi-timeframe score
// a candidate must reach before execution.
const validatePassPercent = 55.0

// timeframeMaxScore is the per-timeframe ceiling of the graded checks.
const timeframeMaxScore = 6.0

func series(candles []broker.Candle) (highs, lows, closeSeries []float64) {
	highs = make([]float64, len(candles))
	lows = make([]float64, len(candles))
	closeSeries = make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closeSeries[i] = c.Close
	}
	return
}

// TimeframeScore grades one timeframe's agreement with the trade direction
// out of timeframeMaxScore. Graded rather than binary so one marginal
// reading cannot flip the verdict.
func TimeframeScore(candles []broker.Candle, direction string) (float64, bool) {
	if len(candles) < 30 {
		return 0, false
	}
	highs, lows, closeSeries := series(candles)

	rsi, ok := indicators.RSI(closeSeries, 14)
	if !ok {
		return 0, false
	}
	mom5, _ := indicators.Momentum(closeSeries, 5)
	mom20, _ := indicators.Momentum(closeSeries, 20)
	rangePos, _ := indicators.RangePosition(highs, lows, closeSeries, 20)
	ema20, ok20 := indicators.EMA(closeSeries, 20)
	ema50, ok50 := indicators.EMA(closeSeries, 50)

	score := 0.0

	// Graded RSI component in [0, 1].
	var rsiComponent float64
	if direction == "sell" {
		rsiComponent = (rsi - 60) / 10
	} else {
		rsiComponent = (40 - rsi) / 10
	}
	rsiComponent = math.Max(0, math.Min(1, rsiComponent))
	score += rsiComponent

	// Momentum tolerance: mild counter-momentum is acceptable.
	mom20OK := (direction == "buy" && mom20 > -1.5) || (direction == "sell" && mom20 < 1.5)
	mom5OK := (direction == "buy" && mom5 > -0.8) || (direction == "sell" && mom5 < 0.8)
	if mom20OK {
		score += 1
	}
	if mom5OK {
		score += 1
	}

	// Trend via EMA20/EMA50 with a small neutrality band.
	trendAligned := false
	if ok20 && ok50 && ema50 > 0 {
		upper := ema50 * 1.001
		lower := ema50 * 0.999
		switch {
		case direction == "buy" && ema20 > upper,
			direction == "sell" && ema20 < lower:
			trendAligned = true
			score += 1.5
		case ema20 >= lower && ema20 <= upper:
			score += 0.5
		}
	}

	// Range position.
	switch {
	case direction == "buy" && rangePos <= 0.4,
		direction == "sell" && rangePos >= 0.6:
		score += 1
	case rangePos > 0.4 && rangePos < 0.6:
		score += 0.5
	}

	// Confluence bonus when at least two of the three primary signals agree.
	signals := 0
	if rsiComponent >= 0.5 {
		signals++
	}
	if mom5OK && mom20OK {
		signals++
	}
	if trendAligned {
		signals++
	}
	if signals >= 2 {
		score += 0.5
	}

	if score > timeframeMaxScore {
		score = timeframeMaxScore
	}
	return score, true
}

// ValidateTimeframes scores each timeframe and passes when the combined
// score reaches the threshold percent of the combined maximum. Timeframes
// with too little data are excluded from both sides of the ratio.
func ValidateTimeframes(frames map[string][]broker.Candle, direction string) (float64, bool) {
	total := 0.0
	max := 0.0
	for _, candles := range frames {
		score, ok := TimeframeScore(candles, direction)
		if !ok {
			continue
		}
		total += score
		max += timeframeMaxScore
	}
	if max == 0 {
		return 0, false
	}
	pct := total / max * 100
	return pct, pct >= validatePassPercent
}

// CheckTiming validates the short-timeframe entry on M10 data: RSI not
// exhausted, momentum not fighting the direction, and either a pullback to
// the EMA20 or a fresh breakout thrust.
func CheckTiming(m10 []broker.Candle, direction string, relaxed bool) (bool, string) {
	if len(m10) < 40 {
		return false, fmt.Sprintf("only %d M10 candles", len(m10))
	}
	highs, lows, closeSeries := series(m10)

	rsi, ok := indicators.RSI(closeSeries, 14)
	if !ok {
		return false, "RSI unavailable"
	}
	if rsi < 30 || rsi > 70 {
		return false, fmt.Sprintf("M10 RSI %.1f exhausted", rsi)
	}

	mom5, _ := indicators.Momentum(closeSeries, 5)
	mom20, _ := indicators.Momentum(closeSeries, 20)
	if direction == "buy" {
		if mom5 < -0.3 || mom20 < -1.2 {
			return false, fmt.Sprintf("M10 momentum against buy (%.2f/%.2f)", mom5, mom20)
		}
	} else {
		if mom5 > 0.3 || mom20 > 1.2 {
			return false, fmt.Sprintf("M10 momentum against sell (%.2f/%.2f)", mom5, mom20)
		}
	}

	ema20, okEMA := indicators.EMA(closeSeries, 20)
	atr10, okATR := indicators.ATRWilder(highs, lows, closeSeries, 10)
	last := closeSeries[len(closeSeries)-1]

	// Pullback entry: price within reach of the M10 EMA20.
	if okEMA && okATR && atr10 > 0 {
		maxDist := 1.3
		if relaxed {
			maxDist = 1.4
		}
		if math.Abs(last-ema20) <= atr10*maxDist {
			return true, "pullback entry"
		}
	}

	// Breakout entry: directional RSI surge with a range-expansion bar.
	prior := closeSeries[:len(closeSeries)-3]
	priorRSI, okPrior := indicators.RSI(prior, 14)
	if !okPrior {
		return false, "extended from EMA20 with no breakout context"
	}

	avgRange := 0.0
	recent := m10[len(m10)-11 : len(m10)-1]
	for _, c := range recent {
		avgRange += c.High - c.Low
	}
	avgRange /= float64(len(recent))
	lastBar := m10[len(m10)-1]
	thrust := avgRange > 0 && (lastBar.High-lastBar.Low) >= avgRange*1.2

	if direction == "buy" {
		if rsi >= 60 && rsi-priorRSI >= 5 && thrust && mom5 >= 0 && mom20 >= 0 {
			return true, "breakout entry"
		}
	} else {
		if rsi <= 40 && priorRSI-rsi >= 5 && thrust && mom5 <= 0 && mom20 <= 0 {
			return true, "breakout entry"
		}
	}
	return false, "extended from EMA20 and no breakout thrust"
}
