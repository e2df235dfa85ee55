package broker

import (
	"fmt"
	"math"
	"strings"
)

// NormalizeSymbol strips broker separators: "EUR_USD" -> "EURUSD".
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	s = strings.ReplaceAll(s, "_", "")
	return strings.ReplaceAll(s, "/", "")
}

// BrokerInstrument converts a bare six-letter symbol to the broker's
// underscore format: "EURUSD" -> "EUR_USD". Already-formatted input is
// returned unchanged.
func BrokerInstrument(symbol string) string {
	if strings.Contains(symbol, "_") {
		return strings.ToUpper(symbol)
	}
	s := strings.ToUpper(symbol)
	if len(s) == 6 {
		return s[:3] + "_" + s[3:]
	}
	return s
}

// PipFactor returns the price value of one pip for the instrument.
func PipFactor(symbol string) float64 {
	s := NormalizeSymbol(symbol)
	switch {
	case s == "XAUUSD":
		return 0.1
	case s == "XAGUSD":
		return 0.01
	case strings.HasSuffix(s, "JPY"):
		return 0.01
	default:
		return 0.0001
	}
}

// PipMultiplier returns the factor that converts a price distance to pips.
func PipMultiplier(symbol string) float64 {
	if strings.HasSuffix(NormalizeSymbol(symbol), "JPY") {
		return 100
	}
	return 10000
}

// PriceDecimals returns the decimal precision the broker accepts for
// order prices on the instrument.
func PriceDecimals(symbol string) int {
	s := NormalizeSymbol(symbol)
	switch {
	case strings.HasPrefix(s, "XAU"), strings.HasPrefix(s, "XAG"):
		return 2
	case strings.HasSuffix(s, "JPY"):
		return 3
	default:
		return 5
	}
}

// RoundPrice rounds a price to the instrument's accepted precision.
func RoundPrice(symbol string, price float64) float64 {
	scale := math.Pow10(PriceDecimals(symbol))
	return math.Round(price*scale) / scale
}

// FormatPrice renders a price with the instrument's accepted precision.
func FormatPrice(symbol string, price float64) string {
	return fmt.Sprintf("%.*f", PriceDecimals(symbol), price)
}

// BaseCurrency returns the first currency of a pair symbol.
func BaseCurrency(symbol string) string {
	s := NormalizeSymbol(symbol)
	if len(s) >= 3 {
		return s[:3]
	}
	return s
}

// QuoteCurrency returns the second currency of a pair symbol.
func QuoteCurrency(symbol string) string {
	s := NormalizeSymbol(symbol)
	if len(s) >= 6 {
		return s[3:6]
	}
	return ""
}
