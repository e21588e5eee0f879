package events

import (
	"sync"
	"time"

	"activation-server/internal/entitlement"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventDeviceRegistered EventType = "DEVICE_REGISTERED"
	EventDeviceStatus     EventType = "DEVICE_STATUS"
	EventTrialStarted     EventType = "TRIAL_STARTED"
	EventActivation       EventType = "ACTIVATION"
	EventLifetimeGranted  EventType = "LIFETIME_GRANTED"
	EventDeviceBanned     EventType = "DEVICE_BANNED"
	EventDeviceUnbanned   EventType = "DEVICE_UNBANNED"
	EventCreditsDebited   EventType = "CREDITS_DEBITED"
	EventAuditEntry       EventType = "AUDIT_ENTRY"
	EventError            EventType = "ERROR"
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

// EntitlementEvent publishes a committed audit entry. Events are fired
// after the database transaction commits, so subscribers only ever see
// durable history.
func (eb *EventBus) EntitlementEvent(e entitlement.HistoryEntry) {
	eb.Publish(Event{
		Type:      actionEventType(e.Action),
		Timestamp: e.CreatedAt,
		Data: map[string]interface{}{
			"entry_id":    e.ID,
			"device_id":   e.DeviceID,
			"action":      e.Action,
			"prev_status": string(e.PrevStatus),
			"new_status":  string(e.NewStatus),
			"actor_kind":  string(e.ActorKind),
			"actor_id":    e.ActorID,
			"detail":      e.Detail,
		},
	})
}

func actionEventType(action string) EventType {
	switch action {
	case entitlement.ActionRegister:
		return EventDeviceRegistered
	case entitlement.ActionStartTrial:
		return EventTrialStarted
	case entitlement.ActionActivateCredits, entitlement.ActionProlong:
		return EventActivation
	case entitlement.ActionLifetime:
		return EventLifetimeGranted
	case entitlement.ActionBan:
		return EventDeviceBanned
	case entitlement.ActionUnban:
		return EventDeviceUnbanned
	default:
		return EventAuditEntry
	}
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string) {
	eb.Publish(Event{
		Type: EventError,
		Data: map[string]interface{}{
			"source":  source,
			"message": message,
		},
	})
}
