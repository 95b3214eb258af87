// Package events carries domain events between the ingestion pipeline, the
// REST handlers and the WebSocket hub.
package events

import (
	"sync"

	"github.com/avionyx/flightd/pkg/models"
)

// Type names a domain event. The names double as the WebSocket event names
// clients receive.
type Type string

const (
	// TypeFlightNew fires when a flight is created.
	TypeFlightNew Type = "flights.new"

	// TypeFlightUpdate fires when an existing flight changes, including
	// end-time extensions from live telemetry.
	TypeFlightUpdate Type = "flights.update"

	// TypeFlightData fires when a telemetry batch lands. The records carry
	// batch summaries only; raw samples are stripped before publishing.
	TypeFlightData Type = "flight_data.new"

	// TypeCommandNew fires when a command enters the system.
	TypeCommandNew Type = "command.new"

	// TypeCommandUpdate fires when a command's lifecycle advances.
	TypeCommandUpdate Type = "command.update"
)

// Event is one domain event. FlightID is always set; the remaining fields
// are populated per type.
type Event struct {
	Type     Type
	FlightID string

	// Flight accompanies flight events.
	Flight *models.Flight

	// Records accompany flight-data events.
	Records []*models.MeasurementRecord

	// Commands accompany command events, batched per request the way
	// subscribers receive them. FromClient distinguishes
	// operator-submitted commands from vessel confirmations.
	Commands   []*models.Command
	FromClient bool
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Event)

// Bus is a synchronous in-process publish/subscribe fan-out. Subscription
// happens at wiring time; publishing is safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Type][]Handler)}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	for _, t := range []Type{
		TypeFlightNew, TypeFlightUpdate, TypeFlightData,
		TypeCommandNew, TypeCommandUpdate,
	} {
		b.Subscribe(t, h)
	}
}

// Publish delivers the event to every handler subscribed to its type, in
// subscription order.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := b.handlers[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
