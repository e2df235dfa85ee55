// Package monitor runs one lifecycle loop per open trade: it polls the
// broker, moves stops to breakeven, trails them behind price, takes the
// one-time partial profit, and classifies the close when the trade
// disappears from the book.
package monitor

import (
	"context"
	"sync"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/events"
	"oanda-trading-bot/internal/ledger"
	"oanda-trading-bot/internal/logging"
)

// Manager owns the per-trade monitor goroutines. Every monitor registers
// here so shutdown can cancel and join them with a bounded grace period.
type Manager struct {
	cfg     config.MonitorConfig
	client  broker.Client
	led     *ledger.Ledger
	bus     *events.EventBus
	tracker *Tracker
	store   TradeCloser
	logger  *logging.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
	baseCtx context.Context
	stop    context.CancelFunc
}

// NewManager wires the monitor manager. bus, tracker, and store may be nil.
func NewManager(cfg config.MonitorConfig, client broker.Client, led *ledger.Ledger,
	bus *events.EventBus, tracker *Tracker, store TradeCloser) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:     cfg,
		client:  client,
		led:     led,
		bus:     bus,
		tracker: tracker,
		store:   store,
		logger:  logging.WithComponent("monitor"),
		cancels: make(map[string]context.CancelFunc),
		baseCtx: ctx,
		stop:    cancel,
	}
}

// Watch starts a monitor for the trade. Watching an already-monitored
// trade ID is a no-op.
func (m *Manager) Watch(entry ledger.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.cancels[entry.TradeID]; exists {
		return
	}
	if m.baseCtx.Err() != nil {
		return
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	m.cancels[entry.TradeID] = cancel

	tm := newTradeMonitor(m.cfg, m.client, m.led, m.bus, m.tracker, m.store, entry)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.release(entry.TradeID)
		tm.run(ctx)
	}()

	m.logger.Info("Watching trade %s (%s %s)", entry.TradeID, entry.Symbol, entry.Direction)
}

// ResumeAll attaches a monitor to every trade the ledger still tracks,
// used at startup to recover from a restart.
func (m *Manager) ResumeAll() int {
	entries := m.led.All()
	for _, e := range entries {
		m.Watch(e)
	}
	return len(entries)
}

// Active returns the trade IDs currently being monitored.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.cancels))
	for id := range m.cancels {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown cancels every monitor and waits up to the configured grace
// period for them to wind down. Monitors still running after the grace
// are reported and left to die with the process.
func (m *Manager) Shutdown() {
	m.stop()

	grace := time.Duration(m.cfg.ShutdownGrace) * time.Second
	if grace <= 0 {
		grace = 30 * time.Second
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All monitors stopped")
	case <-time.After(grace):
		m.logger.Warn("Shutdown grace expired with %d monitors still running", len(m.Active()))
	}
}

func (m *Manager) release(tradeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.cancels[tradeID]; ok {
		cancel()
		delete(m.cancels, tradeID)
	}
}
