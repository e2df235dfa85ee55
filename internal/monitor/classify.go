package monitor

import (
	"math"

	"oanda-trading-bot/internal/broker"
)

// CloseReason classifies why a trade left the broker's book.
type CloseReason string

const (
	ClosedTakeProfit    CloseReason = "CLOSED_TP"
	ClosedStopLoss      CloseReason = "CLOSED_SL"
	ClosedTrailing      CloseReason = "CLOSED_TRAILING"
	ClosedPartial       CloseReason = "CLOSED_PARTIAL"
	ClosedPartialThenTP CloseReason = "CLOSED_PARTIAL_THEN_TP"
	ClosedPartialThenSL CloseReason = "CLOSED_PARTIAL_THEN_SL"
	ClosedExternally    CloseReason = "CLOSED_EXTERNALLY"
)

// closeTolerancePips is how close the final price must sit to a planned
// level to attribute the close to it.
const closeTolerancePips = 3.0

// trailingProgressMin is the fraction of the entry-to-target distance the
// price must have covered for a between-the-levels close to be read as a
// trailing stop rather than noise.
const trailingProgressMin = 0.30

// CloseInput is everything the classifier may consult: the planned trade
// and the broker's final state.
type CloseInput struct {
	Symbol      string
	Direction   string
	EntryPrice  float64
	StopLoss    float64 // planned stop, not the trailed one
	TakeProfit  float64
	FinalPrice  float64 // broker average close price, or last seen price
	RealizedPL  float64
	PartialSeen bool // the position shrank before it disappeared
}

// ClassifyCloseReason attributes a disappeared trade to its target, its
// stop, a trailing exit, or an external close. Pure function: identical
// inputs always produce the identical reason.
func ClassifyCloseReason(in CloseInput) CloseReason {
	return withPartial(classify(in), in.PartialSeen)
}

func classify(in CloseInput) CloseReason {
	if in.FinalPrice <= 0 || in.EntryPrice <= 0 {
		return pnlFallback(in.RealizedPL)
	}

	tolerance := closeTolerancePips * broker.PipFactor(in.Symbol)
	favorable := in.FinalPrice > in.EntryPrice
	if in.Direction == "sell" {
		favorable = in.FinalPrice < in.EntryPrice
	}

	if in.TakeProfit > 0 && favorable {
		crossed := (in.Direction == "buy" && in.FinalPrice >= in.TakeProfit) ||
			(in.Direction == "sell" && in.FinalPrice <= in.TakeProfit)
		if crossed || math.Abs(in.FinalPrice-in.TakeProfit) <= tolerance {
			return ClosedTakeProfit
		}
	}

	if in.StopLoss > 0 {
		crossed := (in.Direction == "buy" && in.FinalPrice <= in.StopLoss) ||
			(in.Direction == "sell" && in.FinalPrice >= in.StopLoss)
		if crossed || math.Abs(in.FinalPrice-in.StopLoss) <= tolerance {
			return ClosedStopLoss
		}
	}

	// A close well between entry and target, clear of both levels, means a
	// tightened stop took the trade out in profit.
	if in.TakeProfit > 0 && favorable {
		tpDist := math.Abs(in.TakeProfit - in.EntryPrice)
		progress := math.Abs(in.FinalPrice - in.EntryPrice)
		if tpDist > 0 && progress > tpDist*trailingProgressMin {
			return ClosedTrailing
		}
	}

	return pnlFallback(in.RealizedPL)
}

// pnlFallback is the coarse inference when price gives no answer.
func pnlFallback(realizedPL float64) CloseReason {
	switch {
	case realizedPL > 0:
		return ClosedTakeProfit
	case realizedPL < 0:
		return ClosedStopLoss
	default:
		return ClosedExternally
	}
}

func withPartial(base CloseReason, partialSeen bool) CloseReason {
	if !partialSeen {
		return base
	}
	switch base {
	case ClosedTakeProfit, ClosedTrailing:
		return ClosedPartialThenTP
	case ClosedStopLoss:
		return ClosedPartialThenSL
	default:
		return ClosedPartial
	}
}
