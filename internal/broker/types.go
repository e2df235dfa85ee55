package broker

import "time"

// Candle is one OHLC bar (mid prices) for an instrument and granularity.
// Immutable once returned by the data gateway.
type Candle struct {
	Time     time.Time `json:"time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Complete bool      `json:"complete"`
}

// Quote is a live bid/ask snapshot for an instrument.
type Quote struct {
	Instrument string    `json:"instrument"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	Time       time.Time `json:"time"`
}

// Mid returns the quote midpoint.
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// Spread returns the quote spread in price units.
func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// OrderRequest describes a market order with exits attached on fill.
// Units are negative for a sell.
type OrderRequest struct {
	Instrument string
	Units      int
	StopLoss   float64
	TakeProfit float64
}

// FillConfirmation is the broker acknowledgment of a filled market order.
type FillConfirmation struct {
	TradeID   string
	FillPrice float64
}

// TradeState is the broker's view of one open (or just-closed) trade.
type TradeState struct {
	TradeID           string
	Instrument        string
	InitialUnits      int
	CurrentUnits      int
	EntryPrice        float64
	UnrealizedPL      float64
	RealizedPL        float64
	AverageClosePrice float64
	State             string
}

// LookupStatus discriminates the outcome of a trade lookup. Callers branch
// on the status instead of inspecting error strings: a trade that no longer
// exists at the broker is an expected outcome, not a failure.
type LookupStatus int

const (
	// StatusFound means the trade exists and Trade is populated.
	StatusFound LookupStatus = iota
	// StatusNotFound means the broker no longer knows the trade ID.
	StatusNotFound
	// StatusTransient means a retryable failure (timeout, rate limit, 5xx).
	StatusTransient
	// StatusFatal means a non-retryable failure (bad request, auth).
	StatusFatal
)

func (s LookupStatus) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusTransient:
		return "transient_error"
	case StatusFatal:
		return "fatal_error"
	default:
		return "unknown"
	}
}

// TradeLookup is the tagged result of LookupTrade. Trade is non-nil only
// when Status is StatusFound; Err is non-nil only for the error statuses.
type TradeLookup struct {
	Status LookupStatus
	Trade  *TradeState
	Err    error
}
