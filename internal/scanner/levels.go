package scanner

import (
	"strings"

	"oanda-trading-bot/internal/broker"
)

// Percent fallbacks used when no ATR is available. Yen pairs move more in
// price terms, so their bands are wider.
const (
	fallbackSLPct    = 0.6
	fallbackTPPct    = 1.2
	fallbackSLPctJPY = 0.8
	fallbackTPPctJPY = 1.6
)

// SuggestLevels derives the scanner's provisional stop and target from ATR
// multiples, falling back to percent bands when ATR is unusable. The
// planner recomputes final levels at execution time; these are for ranking
// and guardrail checks.
func SuggestLevels(symbol, direction string, entry, atr, slMult, tpMult float64) (stopLoss, takeProfit float64) {
	slDist := atr * slMult
	tpDist := atr * tpMult
	if atr <= 0 {
		slPct, tpPct := fallbackSLPct, fallbackTPPct
		if strings.Contains(strings.ToUpper(symbol), "JPY") {
			slPct, tpPct = fallbackSLPctJPY, fallbackTPPctJPY
		}
		slDist = entry * slPct / 100
		tpDist = entry * tpPct / 100
	}

	if direction == "buy" {
		stopLoss = entry - slDist
		takeProfit = entry + tpDist
	} else {
		stopLoss = entry + slDist
		takeProfit = entry - tpDist
	}
	return broker.RoundPrice(symbol, stopLoss), broker.RoundPrice(symbol, takeProfit)
}
