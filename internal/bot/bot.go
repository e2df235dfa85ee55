// Package bot is the session orchestrator. On a fixed interval it runs one
// trading session: circuit-breaker check, scan, sentiment adjustment, score
// filters, hard risk filters, pre-entry rechecks, execution, and handoff to
// the position monitor. The packages below it never call each other; the
// bot owns the pipeline order.
package bot

import (
	"context"
	"sync"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/cache"
	"oanda-trading-bot/internal/circuit"
	"oanda-trading-bot/internal/database"
	"oanda-trading-bot/internal/events"
	"oanda-trading-bot/internal/execution"
	"oanda-trading-bot/internal/gate"
	"oanda-trading-bot/internal/ledger"
	"oanda-trading-bot/internal/logging"
	"oanda-trading-bot/internal/monitor"
	"oanda-trading-bot/internal/notification"
	"oanda-trading-bot/internal/planner"
	"oanda-trading-bot/internal/risk"
	"oanda-trading-bot/internal/scanner"
	"oanda-trading-bot/internal/sentiment"
)

// Deps bundles the components the bot drives. Sentiment, Notifier, Repo,
// and Dedup may be nil; the pipeline degrades around them.
type Deps struct {
	Client    broker.Client
	Scanner   *scanner.Scanner
	Gate      *gate.Gate
	Planner   *planner.Planner
	Risk      *risk.Manager
	Sentiment *sentiment.Analyzer
	Breaker   *circuit.Breaker
	Executor  *execution.Executor
	Monitors  *monitor.Manager
	Ledger    *ledger.Ledger
	Dedup     cache.DedupCache
	Notifier  *notification.Manager
	Repo      *database.Repository
	Bus       *events.EventBus
}

// Bot runs trading sessions until stopped.
type Bot struct {
	cfg    *config.Config
	deps   Deps
	logger *logging.Logger

	mu           sync.RWMutex
	running      bool
	startedAt    time.Time
	sessionsRun  int
	tradesOpened int
	lastSession  time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a bot around its dependencies.
func New(cfg *config.Config, deps Deps) *Bot {
	return &Bot{
		cfg:      cfg,
		deps:     deps,
		logger:   logging.WithComponent("bot"),
		stopChan: make(chan struct{}),
	}
}

// Start resumes monitors for ledgered positions and begins the session
// loop. The first session runs immediately.
func (b *Bot) Start(ctx context.Context) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.startedAt = time.Now().UTC()
	b.mu.Unlock()

	resumed := b.deps.Monitors.ResumeAll()
	if resumed > 0 {
		b.logger.Info("Resumed monitoring for %d open positions", resumed)
	}

	if b.deps.Bus != nil {
		b.deps.Bus.Publish(events.Event{Type: events.EventBotStarted, Data: map[string]interface{}{
			"resumed_positions": resumed,
			"dry_run":           b.cfg.BotConfig.DryRun,
		}})
	}

	b.wg.Add(1)
	go b.run(ctx)
	b.logger.Info("Bot started, session interval %s, dry_run=%v", b.sessionInterval(), b.cfg.BotConfig.DryRun)
}

// Stop ends the session loop and shuts down the monitors. Safe to call
// more than once.
func (b *Bot) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.mu.Unlock()

	close(b.stopChan)
	b.wg.Wait()
	b.deps.Monitors.Shutdown()

	if b.deps.Bus != nil {
		b.deps.Bus.Publish(events.Event{Type: events.EventBotStopped, Data: map[string]interface{}{
			"sessions_run":  b.sessionsRun,
			"trades_opened": b.tradesOpened,
		}})
	}
	b.logger.Info("Bot stopped after %d sessions, %d trades", b.sessionsRun, b.tradesOpened)
}

func (b *Bot) run(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.sessionInterval())
	defer ticker.Stop()

	b.runSession(ctx)
	for {
		select {
		case <-b.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.runSession(ctx)
		}
	}
}

func (b *Bot) sessionInterval() time.Duration {
	if b.cfg.BotConfig.SessionInterval <= 0 {
		return time.Hour
	}
	return time.Duration(b.cfg.BotConfig.SessionInterval) * time.Second
}

// sleepInterruptible waits d or returns false when the bot is stopping.
func (b *Bot) sleepInterruptible(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-b.stopChan:
		return false
	case <-ctx.Done():
		return false
	}
}

// Status implements the API status surface.
func (b *Bot) Status() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	status := map[string]interface{}{
		"running":       b.running,
		"dry_run":       b.cfg.BotConfig.DryRun,
		"sessions_run":  b.sessionsRun,
		"trades_opened": b.tradesOpened,
		"open_trades":   b.deps.Ledger.Size(),
		"monitoring":    len(b.deps.Monitors.Active()),
	}
	if !b.startedAt.IsZero() {
		status["started_at"] = b.startedAt
		status["uptime_seconds"] = int(time.Since(b.startedAt).Seconds())
	}
	if !b.lastSession.IsZero() {
		status["last_session"] = b.lastSession
	}
	return status
}

// OpenTrades returns the ledgered positions.
func (b *Bot) OpenTrades() []ledger.Entry {
	return b.deps.Ledger.All()
}

// LastScan returns the most recent scan result, nil before the first scan.
func (b *Bot) LastScan() *scanner.ScanResult {
	return b.deps.Scanner.LastResult()
}

// CircuitStatus returns the breaker's current verdict.
func (b *Bot) CircuitStatus() circuit.Status {
	return b.deps.Breaker.Status()
}

// ResetCircuit clears a tripped breaker. Operator use only.
func (b *Bot) ResetCircuit() {
	b.deps.Breaker.Reset()
}
