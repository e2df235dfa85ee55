package scanner

import "strings"

// SessionQuality rates how suitable the current UTC hour is for trading a
// pair, from 0.3 (dead session) to 1.0 (the pair's prime session). Yen
// pairs favor the Asian session, European currencies the London morning,
// and the dollar bloc the New York overlap.
func SessionQuality(symbol string, hourUTC int) float64 {
	s := strings.ToUpper(symbol)

	inRange := func(h, lo, hi int) bool {
		if lo <= hi {
			return h >= lo && h <= hi
		}
		return h >= lo || h <= hi // wraps midnight
	}

	switch {
	case strings.Contains(s, "JPY"):
		switch {
		case inRange(hourUTC, 1, 6):
			return 1.0
		case inRange(hourUTC, 22, 8):
			return 0.8
		default:
			return 0.3
		}
	case strings.Contains(s, "EUR"), strings.Contains(s, "GBP"), strings.Contains(s, "CHF"):
		switch {
		case inRange(hourUTC, 8, 12):
			return 1.0
		case inRange(hourUTC, 6, 16):
			return 0.8
		default:
			return 0.3
		}
	case strings.Contains(s, "USD"), strings.Contains(s, "CAD"):
		switch {
		case inRange(hourUTC, 14, 18):
			return 1.0
		case inRange(hourUTC, 12, 20):
			return 0.8
		default:
			return 0.3
		}
	default:
		if inRange(hourUTC, 8, 12) || inRange(hourUTC, 14, 17) {
			return 0.9
		}
		return 0.4
	}
}
