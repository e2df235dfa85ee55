// Package indicators provides pure technical indicator calculations over
// candle series. All functions return an ok flag instead of an error when
// the input history is too short; callers treat a false flag as "cannot
// evaluate" and abstain.
package indicators

import "math"

// EMA calculates the exponential moving average of values with the standard
// multiplier 2/(period+1), seeded with the first value. The seed choice
// matters: trend-direction comparisons near the crossover depend on it.
func EMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}

	multiplier := 2.0 / float64(period+1)
	ema := values[0]
	for _, v := range values[1:] {
		ema = v*multiplier + ema*(1-multiplier)
	}
	return ema, true
}

// RSI calculates the relative strength index over the given closes using a
// simple average of the last period gains and losses. Requires at least
// period+1 closes. Returns 100 when there are no losses in the window.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}
	if len(gains) < period {
		return 0, false
	}

	var avgGain, avgLoss float64
	for _, g := range gains[len(gains)-period:] {
		avgGain += g
	}
	for _, l := range losses[len(losses)-period:] {
		avgLoss += l
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), true
}

// TrueRanges returns the true range series for the given OHLC arrays. The
// result has len(highs)-1 entries; index i covers the bar at i+1.
func TrueRanges(highs, lows, closes []float64) []float64 {
	if len(highs) == 0 || len(highs) != len(lows) || len(highs) != len(closes) {
		return nil
	}
	trs := make([]float64, 0, len(highs)-1)
	for i := 1; i < len(highs); i++ {
		tr := highs[i] - lows[i]
		if v := math.Abs(highs[i] - closes[i-1]); v > tr {
			tr = v
		}
		if v := math.Abs(lows[i] - closes[i-1]); v > tr {
			tr = v
		}
		trs = append(trs, tr)
	}
	return trs
}

// WilderSmooth applies Wilder's smoothing to values: the first output is the
// simple average of the first period values, each subsequent output is
// (prev*(period-1) + v) / period.
func WilderSmooth(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	smoothed := make([]float64, 0, len(values)-period+1)
	var initial float64
	for _, v := range values[:period] {
		initial += v
	}
	smoothed = append(smoothed, initial/float64(period))
	for _, v := range values[period:] {
		smoothed = append(smoothed, (smoothed[len(smoothed)-1]*float64(period-1)+v)/float64(period))
	}
	return smoothed
}

// ATRWilder calculates the Wilder-smoothed average true range.
func ATRWilder(highs, lows, closes []float64, period int) (float64, bool) {
	trs := TrueRanges(highs, lows, closes)
	smoothed := WilderSmooth(trs, period)
	if len(smoothed) == 0 {
		return 0, false
	}
	return smoothed[len(smoothed)-1], true
}

// ATREMASmoothed calculates an EMA-smoothed average true range. The scanner
// uses this variant for its suggested stop/target levels.
func ATREMASmoothed(highs, lows, closes []float64, period int) (float64, bool) {
	trs := TrueRanges(highs, lows, closes)
	return EMA(trs, period)
}

// ATRPercent expresses the Wilder ATR relative to the last close, in percent.
func ATRPercent(highs, lows, closes []float64, period int) (float64, bool) {
	atr, ok := ATRWilder(highs, lows, closes, period)
	if !ok || len(closes) == 0 || closes[len(closes)-1] <= 0 {
		return 0, false
	}
	return atr / closes[len(closes)-1] * 100, true
}

// ADX calculates Wilder's average directional index from the classic
// +DM/-DM/TR construction. Requires at least period+2 bars.
func ADX(highs, lows, closes []float64, period int) (float64, bool) {
	if len(highs) < period+2 || len(lows) < period+2 || len(closes) < period+2 {
		return 0, false
	}

	n := len(highs)
	dmPlus := make([]float64, 0, n-1)
	dmMinus := make([]float64, 0, n-1)
	trs := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]
		if upMove > downMove && upMove > 0 {
			dmPlus = append(dmPlus, upMove)
		} else {
			dmPlus = append(dmPlus, 0)
		}
		if downMove > upMove && downMove > 0 {
			dmMinus = append(dmMinus, downMove)
		} else {
			dmMinus = append(dmMinus, 0)
		}
		tr := highs[i] - lows[i]
		if v := math.Abs(highs[i] - closes[i-1]); v > tr {
			tr = v
		}
		if v := math.Abs(lows[i] - closes[i-1]); v > tr {
			tr = v
		}
		trs = append(trs, tr)
	}

	atrSmoothed := WilderSmooth(trs, period)
	dmPlusSmoothed := WilderSmooth(dmPlus, period)
	dmMinusSmoothed := WilderSmooth(dmMinus, period)
	if len(atrSmoothed) == 0 || len(dmPlusSmoothed) == 0 || len(dmMinusSmoothed) == 0 {
		return 0, false
	}
	lastATR := atrSmoothed[len(atrSmoothed)-1]
	if lastATR == 0 {
		return 0, false
	}

	count := len(dmPlusSmoothed)
	if len(dmMinusSmoothed) < count {
		count = len(dmMinusSmoothed)
	}
	dxValues := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		atrI := lastATR
		if i < len(atrSmoothed) {
			atrI = atrSmoothed[i]
		}
		if atrI == 0 {
			continue
		}
		diPlus := 100 * (dmPlusSmoothed[i] / atrI)
		diMinus := 100 * (dmMinusSmoothed[i] / atrI)
		denom := diPlus + diMinus
		if denom > 0 {
			dxValues = append(dxValues, math.Abs(diPlus-diMinus)/denom*100)
		} else {
			dxValues = append(dxValues, 0)
		}
	}
	adxSeries := WilderSmooth(dxValues, period)
	if len(adxSeries) == 0 {
		return 0, false
	}
	return adxSeries[len(adxSeries)-1], true
}

// Momentum returns the rate of change in percent between the last close and
// the close lookback bars before it.
func Momentum(closes []float64, lookback int) (float64, bool) {
	if lookback <= 0 || len(closes) < lookback {
		return 0, false
	}
	base := closes[len(closes)-lookback]
	if base == 0 {
		return 0, false
	}
	return (closes[len(closes)-1] - base) / base * 100, true
}

// RangePosition locates the last close within the recent lookback-bar
// high/low band: 0 at the low, 1 at the high, 0.5 when the band is flat.
func RangePosition(highs, lows, closes []float64, lookback int) (float64, bool) {
	if lookback <= 0 || len(highs) < lookback || len(lows) < lookback || len(closes) == 0 {
		return 0, false
	}
	high := highs[len(highs)-lookback]
	low := lows[len(lows)-lookback]
	for _, h := range highs[len(highs)-lookback:] {
		if h > high {
			high = h
		}
	}
	for _, l := range lows[len(lows)-lookback:] {
		if l < low {
			low = l
		}
	}
	if high == low {
		return 0.5, true
	}
	return (closes[len(closes)-1] - low) / (high - low), true
}

// RealizedVolatility returns the standard deviation of close-to-close
// returns over the last lookback bars, in percent.
func RealizedVolatility(closes []float64, lookback int) (float64, bool) {
	if lookback < 2 || len(closes) < lookback+1 {
		return 0, false
	}
	window := closes[len(closes)-lookback-1:]
	returns := make([]float64, 0, lookback)
	for i := 1; i < len(window); i++ {
		if window[i-1] == 0 {
			return 0, false
		}
		returns = append(returns, (window[i]-window[i-1])/window[i-1])
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance) * 100, true
}
