// Package ws pushes live flight, telemetry and command events to
// WebSocket clients. Clients join rooms; domain events fan out to the
// rooms they concern.
package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/avionyx/flightd/internal/logger"
	"github.com/avionyx/flightd/pkg/auth"
	"github.com/avionyx/flightd/pkg/events"
	"github.com/avionyx/flightd/pkg/models"
)

// Room name layout. Flight-scoped rooms append the flight id after the
// prefix.
const (
	// RoomFlights receives flight creations and updates.
	RoomFlights = "flights"

	// RoomPrefixFlightData rooms receive telemetry batch summaries of one
	// flight.
	RoomPrefixFlightData = "flight_data."

	// RoomPrefixCommandClient rooms receive command traffic addressed to
	// operator clients of one flight.
	RoomPrefixCommandClient = "command.client."

	// RoomPrefixCommandVessel rooms receive command traffic addressed to
	// the vessel of one flight.
	RoomPrefixCommandVessel = "command.vessel."
)

// serverMessage is the envelope every pushed frame uses.
type serverMessage struct {
	Event string `json:"event"`
	Room  string `json:"room,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Hub tracks connected clients and their room memberships and fans bus
// events out to them.
type Hub struct {
	flights models.FlightStore
	vessels models.VesselStore
	metrics Metrics

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
}

// NewHub returns a hub wired to the given bus. The store handles are used
// to authorize room joins. A nil metrics disables instrumentation.
func NewHub(bus *events.Bus, flights models.FlightStore, vessels models.VesselStore, metrics Metrics) *Hub {
	h := &Hub{
		flights: flights,
		vessels: vessels,
		metrics: metrics,
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
	}
	bus.SubscribeAll(h.handleEvent)
	return h
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ClientConnected()
	}
}

func (h *Hub) unregister(c *Client) {
	if h.metrics != nil {
		h.metrics.ClientDisconnected()
	}
	h.mu.Lock()
	delete(h.clients, c)
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) leave(c *Client, room string) {
	h.mu.Lock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
}

// handleEvent routes one bus event into its rooms.
func (h *Hub) handleEvent(e events.Event) {
	msg := eventMessage(e)
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Error("encoding event", logger.Event(string(e.Type)), logger.Err(err))
		return
	}

	for _, room := range eventRooms(e) {
		h.broadcast(room, payload)
	}
}

func (h *Hub) broadcast(room string, payload []byte) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.enqueue(payload)
	}
	if h.metrics != nil {
		h.metrics.ObserveBroadcast(len(members))
	}
}

// eventRooms returns the rooms an event fans out to. Operator-submitted
// command traffic reaches the vessel; vessel confirmations reach the
// operators. New commands always echo back to operators so every client
// sees the full command stream.
func eventRooms(e events.Event) []string {
	switch e.Type {
	case events.TypeFlightNew, events.TypeFlightUpdate:
		return []string{RoomFlights}
	case events.TypeFlightData:
		return []string{RoomPrefixFlightData + e.FlightID}
	case events.TypeCommandNew:
		if e.FromClient {
			return []string{
				RoomPrefixCommandClient + e.FlightID,
				RoomPrefixCommandVessel + e.FlightID,
			}
		}
		return []string{RoomPrefixCommandClient + e.FlightID}
	case events.TypeCommandUpdate:
		if e.FromClient {
			return []string{RoomPrefixCommandVessel + e.FlightID}
		}
		return []string{RoomPrefixCommandClient + e.FlightID}
	}
	return nil
}

// eventMessage builds the frame pushed for an event.
func eventMessage(e events.Event) serverMessage {
	data := map[string]any{"flight_id": e.FlightID}
	switch e.Type {
	case events.TypeFlightNew, events.TypeFlightUpdate:
		data["flight"] = e.Flight
	case events.TypeFlightData:
		data["records"] = e.Records
	case events.TypeCommandNew, events.TypeCommandUpdate:
		data["commands"] = e.Commands
	}
	return serverMessage{Event: string(e.Type), Data: data}
}

// authorizeJoin decides whether a connection may enter a room. Flight
// rooms require read permission on the flight; the vessel-side command
// room additionally requires a vessel token.
func (h *Hub) authorizeJoin(ctx context.Context, claims *auth.Claims, room string) error {
	if room == RoomFlights {
		return nil
	}

	var flightID string
	needVessel := false
	switch {
	case strings.HasPrefix(room, RoomPrefixFlightData):
		flightID = strings.TrimPrefix(room, RoomPrefixFlightData)
	case strings.HasPrefix(room, RoomPrefixCommandClient):
		flightID = strings.TrimPrefix(room, RoomPrefixCommandClient)
	case strings.HasPrefix(room, RoomPrefixCommandVessel):
		flightID = strings.TrimPrefix(room, RoomPrefixCommandVessel)
		needVessel = true
	default:
		return models.ErrNotFound
	}

	if needVessel && (claims == nil || !claims.IsVessel()) {
		return models.ErrPermissionDenied
	}

	userID := ""
	if claims != nil {
		if !claims.AllowsResource(flightID) {
			return models.ErrPermissionDenied
		}
		userID = claims.UserID
	}

	flight, err := h.flights.Get(ctx, flightID)
	if err != nil {
		return err
	}
	vessel, err := h.vessels.GetVersion(ctx, flight.VesselID, flight.VesselVersion)
	if err != nil {
		return err
	}
	if models.FlightLevel(flight, vessel, userID) < models.LevelRead {
		return models.ErrPermissionDenied
	}
	return nil
}
