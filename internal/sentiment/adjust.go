package sentiment

import (
	"math"

	"oanda-trading-bot/internal/broker"
)

var (
	riskOnCurrencies = map[string]bool{"AUD": true, "NZD": true, "CAD": true, "NOK": true, "SEK": true}
	safeHavens       = map[string]bool{"JPY": true, "CHF": true, "USD": true}
)

// Adjustment is the sentiment verdict for one opportunity.
type Adjustment struct {
	Delta     float64 `json:"delta"`
	Narrative string  `json:"narrative"`
}

// usdExposure returns +1 when the trade is long USD, -1 when short USD,
// 0 when USD is not in the pair.
func usdExposure(symbol, direction string) int {
	base := broker.BaseCurrency(symbol)
	quote := broker.QuoteCurrency(symbol)
	long := 0
	if base == "USD" {
		long = 1
	} else if quote == "USD" {
		long = -1
	}
	if long == 0 {
		return 0
	}
	if direction == "sell" {
		return -long
	}
	return long
}

// currencyBought returns the currency the trade accumulates.
func currencyBought(symbol, direction string) string {
	if direction == "buy" {
		return broker.BaseCurrency(symbol)
	}
	return broker.QuoteCurrency(symbol)
}

// Adjust scores an opportunity against the snapshot. The delta is clamped
// to the configured band, and protected scores floor the downside so
// sentiment can temper a strong setup but never kill it.
func (a *Analyzer) Adjust(snap Snapshot, symbol, direction string, score float64) Adjustment {
	delta := 0.0

	// Dollar alignment.
	exposure := usdExposure(symbol, direction)
	if exposure != 0 {
		switch snap.DXYTrend {
		case DXYStrongBullish:
			delta += float64(exposure) * 10
		case DXYBullish:
			delta += float64(exposure) * 8
		case DXYBearish, DXYStrongBearish:
			delta -= float64(exposure) * 8
		}
	}

	// Regime alignment of the accumulated currency.
	bought := currencyBought(symbol, direction)
	switch snap.RiskRegime {
	case RiskOn:
		if riskOnCurrencies[bought] {
			delta += 8
		} else if safeHavens[bought] && bought != "USD" {
			delta -= 6
		}
	case RiskOff:
		if safeHavens[bought] {
			delta += 8
		} else if riskOnCurrencies[bought] {
			delta -= 8
		}
	}

	// Fear bid for the yen.
	if snap.VIXValue > 25 && bought == "JPY" {
		delta += 5
	}

	maxAdjust := a.cfg.MaxAdjust
	if maxAdjust <= 0 {
		maxAdjust = 10
	}
	delta = math.Max(-maxAdjust, math.Min(maxAdjust, delta))

	// Strong setups are protected from the full negative adjustment.
	if score >= a.cfg.ProtectedScore && delta < -8 {
		delta = -8
	}

	narrative := "Sentiment aligned with setup"
	switch {
	case math.Abs(delta) <= 2:
		narrative = "Minimal sentiment impact"
	case delta < 0:
		narrative = "Sentiment headwind for setup"
	}
	return Adjustment{Delta: delta, Narrative: narrative}
}
