package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avionyx/flightd/internal/logger"
	"github.com/avionyx/flightd/pkg/api/middleware"
	"github.com/avionyx/flightd/pkg/events"
	"github.com/avionyx/flightd/pkg/models"
	"github.com/avionyx/flightd/pkg/schema"
)

// CommandHandler handles command dispatch, confirmation and range queries.
type CommandHandler struct {
	stores Stores
	bus    *events.Bus
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(stores Stores, bus *events.Bus) *CommandHandler {
	return &CommandHandler{stores: stores, bus: bus}
}

// Dispatch handles POST /v1/flights/{flightId}/commands: operators submit
// fresh commands for the vessel to pick up.
func (h *CommandHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	var commands []*models.Command
	if !decodeJSONBody(w, r, &commands) {
		return
	}
	if len(commands) == 0 {
		BadRequest(w, "Empty list of commands")
		return
	}

	flight, level, err := h.stores.flightWithLevel(r.Context(), claims, chi.URLParam(r, "flightId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireLevel(level, models.LevelWrite); err != nil {
		writeError(w, err)
		return
	}

	for _, command := range commands {
		if command.ID == "" {
			BadRequest(w, "Command id is required")
			return
		}
		if err := models.ValidateDispatch(command); err != nil {
			writeError(w, err)
			return
		}
		if err := validateAgainstFlight(flight, command, false); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := h.stores.Commands.Insert(r.Context(), flight.ID, commands); err != nil {
		writeError(w, err)
		return
	}

	h.bus.Publish(events.Event{
		Type:       events.TypeCommandNew,
		FlightID:   flight.ID,
		Commands:   commands,
		FromClient: true,
	})

	logger.InfoCtx(r.Context(), "commands dispatched",
		logger.FlightID(flight.ID),
		logger.Records(len(commands)))
	WriteJSONOK(w, commands)
}

// Confirm handles POST /v1/flights/{flightId}/commands/confirm: the vessel
// reports lifecycle progress, responses, or commands it originated itself.
func (h *CommandHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if err := requireVessel(claims); err != nil {
		writeError(w, err)
		return
	}

	var commands []*models.Command
	if !decodeJSONBody(w, r, &commands) {
		return
	}
	if len(commands) == 0 {
		BadRequest(w, "Empty list of commands")
		return
	}

	flight, level, err := h.stores.flightWithLevel(r.Context(), claims, chi.URLParam(r, "flightId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireLevel(level, models.LevelWrite); err != nil {
		writeError(w, err)
		return
	}

	for _, command := range commands {
		if command.ID == "" {
			BadRequest(w, "Command id is required")
			return
		}
		if err := models.ValidateConfirm(command); err != nil {
			writeError(w, err)
			return
		}
		if err := validateAgainstFlight(flight, command, true); err != nil {
			writeError(w, err)
			return
		}
	}

	// Confirmations arriving near the end of the window keep the flight
	// alive, same as live telemetry.
	if flight.TouchEnd(time.Now()) {
		if _, err := h.stores.Flights.Upsert(r.Context(), flight); err != nil {
			writeError(w, err)
			return
		}
		h.bus.Publish(events.Event{
			Type:     events.TypeFlightUpdate,
			FlightID: flight.ID,
			Flight:   flight,
		})
	}

	if err := h.stores.Commands.Upsert(r.Context(), flight.ID, commands); err != nil {
		writeError(w, err)
		return
	}

	h.bus.Publish(events.Event{
		Type:       events.TypeCommandUpdate,
		FlightID:   flight.ID,
		Commands:   commands,
		FromClient: false,
	})
	WriteJSONOK(w, commands)
}

// validateAgainstFlight checks a command against the flight's declared
// command surface: the type must exist, the targeted part must support it,
// and payload and response must satisfy their schemas. Responses are only
// admissible on the vessel's side.
func validateAgainstFlight(flight *models.Flight, command *models.Command, fromVessel bool) error {
	if err := flight.CommandTarget(command.CommandType, command.PartID); err != nil {
		return err
	}
	info := flight.AvailableCommands[command.CommandType]

	if command.Payload != nil && info.PayloadSchema == nil {
		return models.ErrInvalidPayload
	}
	if info.PayloadSchema != nil {
		if err := schema.Validate(info.PayloadSchema, command.Payload); err != nil {
			return err
		}
	}

	if !fromVessel {
		if command.Response != nil {
			return models.ErrInvalidPayload
		}
		return nil
	}

	if command.Response != nil {
		if info.ResponseSchema == nil {
			return models.ErrInvalidPayload
		}
		if err := schema.Validate(info.ResponseSchema, command.Response); err != nil {
			return err
		}
	}
	return nil
}

// GetRange handles GET /v1/flights/{flightId}/commands, filtering by create
// time and optionally part and command type.
func (h *CommandHandler) GetRange(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	flight, level, err := h.stores.flightWithLevel(r.Context(), claims, chi.URLParam(r, "flightId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireLevel(level, models.LevelWrite); err != nil {
		writeError(w, err)
		return
	}

	start, end, ok := parseTimeRange(r)
	if !ok {
		BadRequest(w, "start and end must be RFC 3339 timestamps")
		return
	}

	filter := models.CommandFilter{
		Start:       start,
		End:         end,
		CommandType: r.URL.Query().Get("command_type"),
	}
	if partID := r.URL.Query().Get("part_id"); partID != "" {
		filter.PartID = &partID
	}

	commands, err := h.stores.Commands.Range(r.Context(), flight.ID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if commands == nil {
		commands = []*models.Command{}
	}
	WriteJSONOK(w, commands)
}
