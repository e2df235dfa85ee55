package broker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient is an in-memory Client for tests and dry-run mode. Candles and
// quotes are scripted by the caller; orders fill instantly at the scripted
// quote.
type MockClient struct {
	mu sync.Mutex

	candles map[string][]Candle // key: instrument|granularity
	quotes  map[string]*Quote
	trades  map[string]*TradeState
	balance float64
	nextID  int

	// SubmitErr, when set, is returned by SubmitMarketOrder.
	SubmitErr error
	// LookupOverride, when set, is returned by LookupTrade for any ID.
	LookupOverride *TradeLookup

	// SubmittedOrders records every order passed to SubmitMarketOrder.
	SubmittedOrders []OrderRequest
	// StopUpdates records every UpdateStopLoss call as tradeID -> prices.
	StopUpdates map[string][]float64
	// PartialCloses records every ClosePartial call as tradeID -> units.
	PartialCloses map[string][]int
}

// NewMockClient creates an empty mock with a 10000 starting balance.
func NewMockClient() *MockClient {
	return &MockClient{
		candles:       make(map[string][]Candle),
		quotes:        make(map[string]*Quote),
		trades:        make(map[string]*TradeState),
		balance:       10000,
		nextID:        1,
		StopUpdates:   make(map[string][]float64),
		PartialCloses: make(map[string][]int),
	}
}

// SetCandles scripts the candle series returned for an instrument and
// granularity.
func (m *MockClient) SetCandles(instrument, granularity string, candles []Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[BrokerInstrument(instrument)+"|"+granularity] = candles
}

// SetQuote scripts the quote returned for an instrument.
func (m *MockClient) SetQuote(instrument string, bid, ask float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst := BrokerInstrument(instrument)
	m.quotes[inst] = &Quote{Instrument: inst, Bid: bid, Ask: ask, Time: time.Now()}
}

// SetBalance scripts the account balance.
func (m *MockClient) SetBalance(balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance = balance
}

// SetTrade installs a trade state directly, bypassing order submission.
func (m *MockClient) SetTrade(trade *TradeState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades[trade.TradeID] = trade
}

// RemoveTrade deletes a trade so subsequent lookups return not-found.
func (m *MockClient) RemoveTrade(tradeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trades, tradeID)
}

func (m *MockClient) GetCandles(_ context.Context, instrument, granularity string, count int) ([]Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	series, ok := m.candles[BrokerInstrument(instrument)+"|"+granularity]
	if !ok || len(series) == 0 {
		return nil, ErrInsufficientData
	}
	if len(series) > count {
		series = series[len(series)-count:]
	}
	out := make([]Candle, len(series))
	copy(out, series)
	return out, nil
}

func (m *MockClient) GetQuote(_ context.Context, instrument string) (*Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[BrokerInstrument(instrument)]
	if !ok {
		return nil, ErrInsufficientData
	}
	cp := *q
	return &cp, nil
}

func (m *MockClient) SubmitMarketOrder(_ context.Context, req OrderRequest) (*FillConfirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubmittedOrders = append(m.SubmittedOrders, req)
	if m.SubmitErr != nil {
		return nil, m.SubmitErr
	}

	inst := BrokerInstrument(req.Instrument)
	fillPrice := 0.0
	if q, ok := m.quotes[inst]; ok {
		if req.Units > 0 {
			fillPrice = q.Ask
		} else {
			fillPrice = q.Bid
		}
	}

	id := fmt.Sprintf("%d", m.nextID)
	m.nextID++
	m.trades[id] = &TradeState{
		TradeID:      id,
		Instrument:   inst,
		InitialUnits: req.Units,
		CurrentUnits: req.Units,
		EntryPrice:   fillPrice,
		State:        "OPEN",
	}
	return &FillConfirmation{TradeID: id, FillPrice: fillPrice}, nil
}

func (m *MockClient) LookupTrade(_ context.Context, tradeID string) TradeLookup {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LookupOverride != nil {
		return *m.LookupOverride
	}
	t, ok := m.trades[tradeID]
	if !ok {
		return TradeLookup{Status: StatusNotFound}
	}
	cp := *t
	return TradeLookup{Status: StatusFound, Trade: &cp}
}

func (m *MockClient) UpdateStopLoss(_ context.Context, tradeID string, price float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trades[tradeID]; !ok {
		return fmt.Errorf("mock: no such trade %s", tradeID)
	}
	m.StopUpdates[tradeID] = append(m.StopUpdates[tradeID], price)
	return nil
}

func (m *MockClient) ClosePartial(_ context.Context, tradeID string, units int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[tradeID]
	if !ok {
		return fmt.Errorf("mock: no such trade %s", tradeID)
	}
	m.PartialCloses[tradeID] = append(m.PartialCloses[tradeID], units)
	if units >= abs(t.CurrentUnits) {
		delete(m.trades, tradeID)
		return nil
	}
	if t.CurrentUnits > 0 {
		t.CurrentUnits -= units
	} else {
		t.CurrentUnits += units
	}
	return nil
}

func (m *MockClient) ListOpenTrades(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.trades))
	for id := range m.trades {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MockClient) AccountBalance(_ context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
