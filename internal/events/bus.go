package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventScanStarted        EventType = "SCAN_STARTED"
	EventScanCompleted      EventType = "SCAN_COMPLETED"
	EventOpportunityFound   EventType = "OPPORTUNITY_FOUND"
	EventOpportunityBlocked EventType = "OPPORTUNITY_BLOCKED"
	EventTradeOpened        EventType = "TRADE_OPENED"
	EventTradeClosed        EventType = "TRADE_CLOSED"
	EventTradeUpdate        EventType = "TRADE_UPDATE"
	EventStopMoved          EventType = "STOP_MOVED"
	EventPartialClose       EventType = "PARTIAL_CLOSE"
	EventCircuitTripped     EventType = "CIRCUIT_TRIPPED"
	EventCircuitRecovered   EventType = "CIRCUIT_RECOVERED"
	EventBotStarted         EventType = "BOT_STARTED"
	EventBotStopped         EventType = "BOT_STOPPED"
	EventError              EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishTradeOpened publishes a trade opened event
func (eb *EventBus) PublishTradeOpened(tradeID, symbol, direction string, entryPrice, stopLoss, takeProfit float64, units int) {
	eb.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]interface{}{
			"trade_id":    tradeID,
			"symbol":      symbol,
			"direction":   direction,
			"entry_price": entryPrice,
			"stop_loss":   stopLoss,
			"take_profit": takeProfit,
			"units":       units,
		},
	})
}

// PublishTradeClosed publishes a trade closed event
func (eb *EventBus) PublishTradeClosed(tradeID, symbol, reason string, exitPrice, pnl float64) {
	eb.Publish(Event{
		Type: EventTradeClosed,
		Data: map[string]interface{}{
			"trade_id":   tradeID,
			"symbol":     symbol,
			"reason":     reason,
			"exit_price": exitPrice,
			"pnl":        pnl,
		},
	})
}

// PublishStopMoved publishes a stop loss adjustment event
func (eb *EventBus) PublishStopMoved(tradeID, symbol, kind string, newStop float64) {
	eb.Publish(Event{
		Type: EventStopMoved,
		Data: map[string]interface{}{
			"trade_id": tradeID,
			"symbol":   symbol,
			"kind":     kind,
			"new_stop": newStop,
		},
	})
}

// PublishPartialClose publishes a partial close event
func (eb *EventBus) PublishPartialClose(tradeID, symbol string, closedUnits int, price float64) {
	eb.Publish(Event{
		Type: EventPartialClose,
		Data: map[string]interface{}{
			"trade_id":     tradeID,
			"symbol":       symbol,
			"closed_units": closedUnits,
			"price":        price,
		},
	})
}

// PublishOpportunity publishes an opportunity found event
func (eb *EventBus) PublishOpportunity(scanID, symbol, direction string, score float64, confidence string) {
	eb.Publish(Event{
		Type: EventOpportunityFound,
		Data: map[string]interface{}{
			"scan_id":    scanID,
			"symbol":     symbol,
			"direction":  direction,
			"score":      score,
			"confidence": confidence,
		},
	})
}

// PublishBlocked publishes an admission block event
func (eb *EventBus) PublishBlocked(symbol, direction, reason string) {
	eb.Publish(Event{
		Type: EventOpportunityBlocked,
		Data: map[string]interface{}{
			"symbol":    symbol,
			"direction": direction,
			"reason":    reason,
		},
	})
}

// PublishCircuitTripped publishes a circuit breaker trip event
func (eb *EventBus) PublishCircuitTripped(reason string, drawdownPct float64, streak int) {
	eb.Publish(Event{
		Type: EventCircuitTripped,
		Data: map[string]interface{}{
			"reason":       reason,
			"drawdown_pct": drawdownPct,
			"loss_streak":  streak,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
