package scanner

import (
	"fmt"
	"math"

	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/indicators"
)

// trendBuffer keeps the trend component off marginal EMA20/EMA50 crossings.
const trendBuffer = 0.001

// Metrics are the indicator readings one scoring pass works from.
type Metrics struct {
	RSI           float64
	EMA20         float64
	EMA50         float64
	Mom5          float64
	Mom20         float64
	RangePos      float64
	Volatility    float64
	ATR           float64 // EMA-smoothed, in price units
	ATRPercent    float64
	LastClose     float64
}

// ComputeMetrics derives the scoring metrics from H4 candles. Returns false
// when the history is too short to evaluate.
func ComputeMetrics(candles []broker.Candle) (Metrics, bool) {
	if len(candles) < 50 {
		return Metrics{}, false
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closeSeries := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closeSeries[i] = c.Close
	}

	var m Metrics
	var ok bool
	if m.RSI, ok = indicators.RSI(closeSeries, 14); !ok {
		return Metrics{}, false
	}
	if m.EMA20, ok = indicators.EMA(closeSeries, 20); !ok {
		return Metrics{}, false
	}
	if m.EMA50, ok = indicators.EMA(closeSeries, 50); !ok {
		return Metrics{}, false
	}
	m.Mom5, _ = indicators.Momentum(closeSeries, 5)
	m.Mom20, _ = indicators.Momentum(closeSeries, 20)
	m.RangePos, _ = indicators.RangePosition(highs, lows, closeSeries, 20)
	m.Volatility, _ = indicators.RealizedVolatility(closeSeries, 20)
	m.ATR, _ = indicators.ATREMASmoothed(highs, lows, closeSeries, 20)
	m.LastClose = closeSeries[len(closeSeries)-1]
	if m.LastClose > 0 {
		m.ATRPercent = m.ATR / m.LastClose * 100
	}
	return m, true
}

// TrendState classifies the EMA20/EMA50 relationship for a direction:
// 1 aligned, 0 neutral (inside the buffer), -1 against.
func (m Metrics) TrendState(direction string) int {
	upper := m.EMA50 * (1 + trendBuffer)
	lower := m.EMA50 * (1 - trendBuffer)
	switch direction {
	case "buy":
		if m.EMA20 > upper {
			return 1
		}
		if m.EMA20 >= lower {
			return 0
		}
		return -1
	default:
		if m.EMA20 < lower {
			return 1
		}
		if m.EMA20 <= upper {
			return 0
		}
		return -1
	}
}

// ScoreDirection scores one direction out of 100. Components: RSI zone 25,
// trend 25, momentum 20, range position 15, session 10, volatility 5.
func ScoreDirection(m Metrics, symbol, direction string, hourUTC int) (float64, []string, bool) {
	score := 0.0
	var reasons []string

	// RSI zone.
	rsiPts := 0.0
	if direction == "buy" {
		switch {
		case m.RSI >= 20 && m.RSI <= 50:
			rsiPts = 25
		case m.RSI >= 15 && m.RSI <= 60:
			rsiPts = 15
		case m.RSI <= 70:
			rsiPts = 8
		}
	} else {
		switch {
		case m.RSI >= 50 && m.RSI <= 80:
			rsiPts = 25
		case m.RSI >= 40 && m.RSI <= 85:
			rsiPts = 15
		case m.RSI >= 30:
			rsiPts = 8
		}
	}
	score += rsiPts
	if rsiPts >= 15 {
		reasons = append(reasons, fmt.Sprintf("RSI %.1f favorable for %s", m.RSI, direction))
	}

	// Trend.
	trendState := m.TrendState(direction)
	trendAligned := trendState == 1
	switch trendState {
	case 1:
		score += 25
		reasons = append(reasons, fmt.Sprintf("EMA20/EMA50 trend aligned with %s", direction))
	case 0:
		score += 12
	}

	// Momentum.
	momPts := 0.0
	if direction == "buy" {
		if m.Mom5 > 0.5 {
			momPts += 8
		}
		if m.Mom20 > 1.0 {
			momPts += 8
		}
	} else {
		if m.Mom5 < -0.5 {
			momPts += 8
		}
		if m.Mom20 < -1.0 {
			momPts += 8
		}
	}
	if math.Abs(m.Mom5)+math.Abs(m.Mom20) > 10 {
		momPts += 4
	}
	if momPts > 20 {
		momPts = 20
	}
	score += momPts
	if momPts >= 8 {
		reasons = append(reasons, fmt.Sprintf("momentum %.2f%%/5 %.2f%%/20 supports %s", m.Mom5, m.Mom20, direction))
	}

	// Range position.
	rangePts := 0.0
	if direction == "buy" {
		switch {
		case m.RangePos <= 0.3:
			rangePts = 15
		case m.RangePos <= 0.4:
			rangePts = 10
		case m.RangePos <= 0.6:
			rangePts = 5
		}
	} else {
		switch {
		case m.RangePos >= 0.7:
			rangePts = 15
		case m.RangePos >= 0.6:
			rangePts = 10
		case m.RangePos >= 0.4:
			rangePts = 5
		}
	}
	score += rangePts
	if rangePts >= 10 {
		reasons = append(reasons, fmt.Sprintf("price at %.0f%% of 20-bar range", m.RangePos*100))
	}

	// Session.
	session := SessionQuality(symbol, hourUTC)
	score += session * 10
	if session >= 0.8 {
		reasons = append(reasons, fmt.Sprintf("active session for %s (%.1f)", symbol, session))
	}

	// Volatility.
	volPts := 1.0
	switch {
	case m.Volatility >= 0.8 && m.Volatility <= 2.0:
		volPts = 5
	case m.Volatility >= 0.5 && m.Volatility <= 3.0:
		volPts = 3
	}
	score += volPts
	if volPts == 5 {
		reasons = append(reasons, fmt.Sprintf("volatility %.2f%% in the tradable band", m.Volatility))
	}

	return score, reasons, trendAligned
}

// ConfidenceFor grades a final score and its supporting reasons.
func ConfidenceFor(score float64, reasonCount int) string {
	switch {
	case score >= 80 && reasonCount >= 4:
		return "high"
	case score >= 65 && reasonCount >= 3:
		return "medium"
	default:
		return "low"
	}
}
