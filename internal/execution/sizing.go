package execution

import (
	"math"

	"oanda-trading-bot/config"
)

// fallbackMaxUnits caps the balance-percent fallback tighter than the
// risk-based path, since the fallback has no stop-distance input.
const fallbackMaxUnits = 50000

// PositionUnits sizes the order in base-currency units. Precedence:
// an explicit allocation percent wins, then risk-based sizing from the
// stop distance, then a flat percent of balance.
func PositionUnits(cfg config.ExecutionConfig, balance, riskFraction, allocationPct, stopDistance float64) int {
	if balance <= 0 {
		return 0
	}

	if allocationPct > 0 {
		units := balance * allocationPct / 100
		return clampUnits(units, cfg.MinPositionSize, cfg.MaxPositionSize)
	}

	if riskFraction > 0 && stopDistance > 0 {
		riskAmount := balance * riskFraction
		units := riskAmount / stopDistance
		return clampUnits(units, cfg.MinPositionSize, cfg.MaxPositionSize)
	}

	units := balance * cfg.FallbackSizePct / 100
	max := cfg.MaxPositionSize
	if max > fallbackMaxUnits || max == 0 {
		max = fallbackMaxUnits
	}
	return clampUnits(units, cfg.MinPositionSize, max)
}

func clampUnits(units float64, min, max int) int {
	n := int(math.Floor(units))
	if min > 0 && n < min {
		n = min
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}
