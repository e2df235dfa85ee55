package execution

import (
	"errors"
	"fmt"
	"math"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/indicators"
)

// ErrInvalidLevels means the derived stop or target would be rejected by
// the broker or would invert the trade's risk. Nothing is submitted.
var ErrInvalidLevels = errors.New("execution: invalid stop or target levels")

// minHardRR is the floor the configured RR ratio can never relax below.
const minHardRR = 1.8

// Levels are the rounded entry, stop, and target for one order.
type Levels struct {
	Entry      float64
	StopLoss   float64
	TakeProfit float64
}

// RiskDistance returns the entry-to-stop distance in price units.
func (l Levels) RiskDistance() float64 {
	return math.Abs(l.Entry - l.StopLoss)
}

// ComputeLevels derives the stop and target from volatility on two
// timeframes. The stop distance is the wider of the H4 ATR stop and the
// M15 ATR floor, then widened to clear the recent M15 swing when that
// swing sits within reach. The target starts at the ATR multiple and is
// pushed out until the reward-to-risk ratio holds.
func ComputeLevels(cfg config.ExecutionConfig, symbol, direction string, entry, h4ATR, m15ATR float64, m15 []broker.Candle) (Levels, error) {
	if entry <= 0 || h4ATR <= 0 {
		return Levels{}, fmt.Errorf("%w: entry=%.5f h4ATR=%.5f", ErrInvalidLevels, entry, h4ATR)
	}

	slDist := cfg.ATRSLMultiplier * h4ATR
	if floor := cfg.M15ATRFloorMult * m15ATR; floor > slDist {
		slDist = floor
	}
	slDist = widenToSwing(cfg.SwingLookback, direction, entry, slDist, m15)

	minRR := math.Max(minHardRR, cfg.MinRRRatio)
	tpDist := cfg.ATRTPMultiplier * h4ATR
	if tpDist < slDist*minRR {
		tpDist = slDist * minRR
	}

	var lv Levels
	lv.Entry = broker.RoundPrice(symbol, entry)
	if direction == "buy" {
		lv.StopLoss = broker.RoundPrice(symbol, entry-slDist)
		lv.TakeProfit = broker.RoundPrice(symbol, entry+tpDist)
	} else {
		lv.StopLoss = broker.RoundPrice(symbol, entry+slDist)
		lv.TakeProfit = broker.RoundPrice(symbol, entry-tpDist)
	}

	if err := lv.validate(direction); err != nil {
		return Levels{}, err
	}
	return lv, nil
}

// validate enforces the hard order invariants. A violation here is a
// logic bug upstream, so the caller treats it as fatal for the trade.
func (l Levels) validate(direction string) error {
	if l.StopLoss <= 0 || l.TakeProfit <= 0 {
		return fmt.Errorf("%w: sl=%.5f tp=%.5f", ErrInvalidLevels, l.StopLoss, l.TakeProfit)
	}
	switch direction {
	case "buy":
		if !(l.StopLoss < l.Entry && l.Entry < l.TakeProfit) {
			return fmt.Errorf("%w: buy needs sl < entry < tp, got sl=%.5f entry=%.5f tp=%.5f",
				ErrInvalidLevels, l.StopLoss, l.Entry, l.TakeProfit)
		}
	case "sell":
		if !(l.TakeProfit < l.Entry && l.Entry < l.StopLoss) {
			return fmt.Errorf("%w: sell needs tp < entry < sl, got tp=%.5f entry=%.5f sl=%.5f",
				ErrInvalidLevels, l.TakeProfit, l.Entry, l.StopLoss)
		}
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidLevels, direction)
	}
	return nil
}

// widenToSwing pushes the stop distance out to the recent swing extreme
// when the extreme sits between the ATR stop and 1.5x of it. A swing
// further away than that keeps the ATR stop rather than ballooning risk.
func widenToSwing(lookback int, direction string, entry, slDist float64, m15 []broker.Candle) float64 {
	if lookback <= 0 || len(m15) == 0 {
		return slDist
	}
	window := m15
	if len(window) > lookback {
		window = window[len(window)-lookback:]
	}

	var swingDist float64
	if direction == "buy" {
		low := window[0].Low
		for _, c := range window[1:] {
			if c.Low < low {
				low = c.Low
			}
		}
		swingDist = entry - low
	} else {
		high := window[0].High
		for _, c := range window[1:] {
			if c.High > high {
				high = c.High
			}
		}
		swingDist = high - entry
	}

	if swingDist > slDist && swingDist <= slDist*1.5 {
		return swingDist
	}
	return slDist
}

// m15StopATR computes the Wilder ATR used for the M15 stop floor.
func m15StopATR(m15 []broker.Candle) float64 {
	if len(m15) < 15 {
		return 0
	}
	highs := make([]float64, len(m15))
	lows := make([]float64, len(m15))
	closeSeries := make([]float64, len(m15))
	for i, c := range m15 {
		highs[i] = c.High
		lows[i] = c.Low
		closeSeries[i] = c.Close
	}
	atr, ok := indicators.ATRWilder(highs, lows, closeSeries, 14)
	if !ok {
		return 0
	}
	return atr
}
