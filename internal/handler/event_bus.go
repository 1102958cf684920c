// internal/handler/event_bus.go
package handler

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"telemetry-service/internal/model"
)

// EventBus fans telemetry events out to subscribers
type EventBus struct {
	subscribers map[model.EventType][]chan model.TelemetryEvent
	events      chan model.TelemetryEvent
	dropped     atomic.Uint64
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[model.EventType][]chan model.TelemetryEvent),
		events:      make(chan model.TelemetryEvent, 1000),
		logger:      logger,
	}
}

// Start drains the bus; run it on its own goroutine
func (eb *EventBus) Start() {
	for event := range eb.events {
		eb.distributeEvent(event)
	}
}

// Publish enqueues an event without ever blocking the caller
func (eb *EventBus) Publish(event model.TelemetryEvent) {
	select {
	case eb.events <- event:
	default:
		eb.dropped.Add(1)
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.EventType)),
		)
	}
}

// Subscribe subscribes to events of a specific type
func (eb *EventBus) Subscribe(eventType model.EventType) <-chan model.TelemetryEvent {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan model.TelemetryEvent, 100)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
	return subscriber
}

// Dropped reports how many events were discarded by backpressure
func (eb *EventBus) Dropped() uint64 {
	return eb.dropped.Load()
}

// distributeEvent hands an event to each subscriber that can take it
func (eb *EventBus) distributeEvent(event model.TelemetryEvent) {
	eb.mutex.RLock()
	subscribers := eb.subscribers[event.EventType]
	eb.mutex.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
			eb.dropped.Add(1)
		}
	}
}
