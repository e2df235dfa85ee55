// Package risk holds the hard pre-trade filters: spread ceilings,
// weekend and session windows, volatility spikes, and correlated
// exposure limits. These run after the admission gate and before any
// order is sized.
package risk

import (
	"fmt"
	"strings"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/logging"
)

// OpenPosition is the minimal view of an open trade the exposure
// checks need.
type OpenPosition struct {
	Symbol    string
	Direction string // "buy" or "sell"
}

// CheckInput carries everything one admission check needs about the
// candidate and the market around it.
type CheckInput struct {
	Symbol    string
	Direction string
	Bid       float64
	Ask       float64
	ATR       float64 // current reading
	AvgATR    float64 // rolling average for the spike check, 0 skips it
	Open      []OpenPosition
	Now       time.Time
}

// Manager evaluates the hard filters against one candidate trade.
type Manager struct {
	cfg    config.RiskConfig
	logger *logging.Logger
}

// NewManager creates a Manager from the risk configuration.
func NewManager(cfg config.RiskConfig) *Manager {
	return &Manager{cfg: cfg, logger: logging.WithComponent("risk")}
}

// Check runs every hard filter in order and returns the first failure.
// The order puts the cheap calendar checks before anything touching
// market data.
func (m *Manager) Check(in CheckInput) (bool, string) {
	if m.cfg.WeekendBlockEnabled && WeekendBlocked(in.Now) {
		return false, "weekend window"
	}
	if !SessionOpen(in.Symbol, in.Now.UTC().Hour()) {
		return false, fmt.Sprintf("session closed for %s at %02d:00 UTC", in.Symbol, in.Now.UTC().Hour())
	}
	if ok, reason := m.CheckSpread(in.Symbol, in.Bid, in.Ask); !ok {
		return false, reason
	}
	if ok, reason := m.CheckVolatility(in.ATR, in.AvgATR); !ok {
		return false, reason
	}
	if ok, reason := m.CheckExposure(in.Symbol, in.Direction, in.Open); !ok {
		return false, reason
	}
	return true, ""
}

// CheckSpread rejects candidates whose live spread exceeds the ceiling
// for their instrument class.
func (m *Manager) CheckSpread(symbol string, bid, ask float64) (bool, string) {
	if bid <= 0 || ask <= 0 || ask < bid {
		return false, "no usable quote"
	}
	spread := ask - bid
	limit := m.SpreadLimit(symbol)
	if spread > limit {
		return false, fmt.Sprintf("spread %.5f above limit %.5f", spread, limit)
	}
	return true, ""
}

// SpreadLimit returns the maximum tolerated spread in price units for
// the instrument. Volatile yen crosses get extra headroom since their
// normal spread already runs wide.
func (m *Manager) SpreadLimit(symbol string) float64 {
	s := broker.NormalizeSymbol(symbol)
	switch {
	case strings.HasPrefix(s, "XAU") || strings.HasPrefix(s, "XAG"):
		return m.cfg.MaxSpreadMetals
	case strings.HasSuffix(s, "JPY"):
		if volatileYenCrosses[s] {
			limit := m.cfg.MaxSpreadJPY * 1.5
			if limit < 0.06 {
				limit = 0.06
			}
			return limit
		}
		return m.cfg.MaxSpreadJPY
	default:
		return m.cfg.MaxSpreadRegular
	}
}

var volatileYenCrosses = map[string]bool{
	"GBPJPY": true,
	"EURJPY": true,
	"AUDJPY": true,
}

// CheckVolatility rejects when the current ATR spikes past its rolling
// average by the configured multiple. A zero average skips the check
// rather than blocking on missing history.
func (m *Manager) CheckVolatility(atr, avgATR float64) (bool, string) {
	if avgATR <= 0 || m.cfg.VolatilitySpikeMult <= 0 {
		return true, ""
	}
	if atr > avgATR*m.cfg.VolatilitySpikeMult {
		return false, fmt.Sprintf("volatility spike: ATR %.5f vs avg %.5f", atr, avgATR)
	}
	return true, ""
}

// CheckExposure enforces the open-trade cap, one position per symbol,
// and the per-side cap within each correlation group.
func (m *Manager) CheckExposure(symbol, direction string, open []OpenPosition) (bool, string) {
	if m.cfg.MaxOpenTrades > 0 && len(open) >= m.cfg.MaxOpenTrades {
		return false, fmt.Sprintf("open trades at cap (%d)", m.cfg.MaxOpenTrades)
	}

	norm := broker.NormalizeSymbol(symbol)
	for _, p := range open {
		if broker.NormalizeSymbol(p.Symbol) == norm {
			return false, "position already open on " + symbol
		}
	}

	group := m.groupOf(norm)
	if group == "" || m.cfg.MaxCorrelatedPerSide <= 0 {
		return true, ""
	}
	sameSide := 0
	for _, p := range open {
		if m.groupOf(broker.NormalizeSymbol(p.Symbol)) == group && p.Direction == direction {
			sameSide++
		}
	}
	if sameSide >= m.cfg.MaxCorrelatedPerSide {
		return false, fmt.Sprintf("correlated exposure in %s at cap (%d %s)", group, sameSide, direction)
	}
	return true, ""
}

func (m *Manager) groupOf(normalized string) string {
	for group, members := range m.cfg.CorrelationGroups {
		for _, member := range members {
			if broker.NormalizeSymbol(member) == normalized {
				return group
			}
		}
	}
	return ""
}

// WeekendBlocked reports whether now falls inside the weekend no-trade
// window, Friday 20:00 UTC through Sunday 22:00 UTC.
func WeekendBlocked(now time.Time) bool {
	utc := now.UTC()
	switch utc.Weekday() {
	case time.Friday:
		return utc.Hour() >= 20
	case time.Saturday:
		return true
	case time.Sunday:
		return utc.Hour() < 22
	default:
		return false
	}
}

// SessionOpen reports whether the instrument's liquid session covers
// the given UTC hour. Yen pairs trade the Asian session, the European
// majors trade London, and everything else sticks to the overlap
// windows.
func SessionOpen(symbol string, hourUTC int) bool {
	s := broker.NormalizeSymbol(symbol)
	switch {
	case strings.Contains(s, "JPY"):
		return hourUTC == 23 || (hourUTC >= 0 && hourUTC <= 8)
	case strings.Contains(s, "EUR") || strings.Contains(s, "GBP") || strings.Contains(s, "CHF"):
		return hourUTC >= 7 && hourUTC <= 16
	default:
		return (hourUTC >= 7 && hourUTC <= 8) || (hourUTC >= 13 && hourUTC <= 16)
	}
}
