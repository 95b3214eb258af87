package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avionyx/flightd/internal/logger"
	"github.com/avionyx/flightd/pkg/api/middleware"
	"github.com/avionyx/flightd/pkg/auth"
	"github.com/avionyx/flightd/pkg/events"
	"github.com/avionyx/flightd/pkg/models"
)

// FlightHandler handles flight creation, lookup and administration.
type FlightHandler struct {
	stores Stores
	bus    *events.Bus
}

// NewFlightHandler creates a new FlightHandler.
func NewFlightHandler(stores Stores, bus *events.Bus) *FlightHandler {
	return &FlightHandler{stores: stores, bus: bus}
}

// CreateFlightRequest is the request body for POST /v1/flights/. The vessel
// declares which parts it will measure and which commands it accepts; both
// are frozen for the flight's lifetime.
type CreateFlightRequest struct {
	VesselID          string                                    `json:"_vessel_id"`
	Name              string                                    `json:"name"`
	MeasuredPartIDs   []string                                  `json:"measured_part_ids"`
	MeasuredParts     map[string][]models.MeasurementDescriptor `json:"measured_parts"`
	AvailableCommands map[string]models.CommandInfo             `json:"available_commands"`
	NoAuthPermission  string                                    `json:"no_auth_permission"`
}

// Create handles POST /v1/flights/. Flights are created by the vessel at
// boot: start is now, end gets the default head window, and the vessel's
// current version is pinned.
func (h *FlightHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if err := requireVessel(claims); err != nil {
		writeError(w, err)
		return
	}

	var req CreateFlightRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.VesselID == "" {
		BadRequest(w, "_vessel_id is required")
		return
	}
	if req.NoAuthPermission != "" && !models.ValidLevelName(req.NoAuthPermission) {
		BadRequest(w, "Invalid no_auth_permission "+req.NoAuthPermission)
		return
	}

	vessel, err := h.stores.Vessels.Get(r.Context(), req.VesselID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			BadRequest(w, "Vessel does not exist yet. Please create the vessel before creating a flight for it")
			return
		}
		writeError(w, err)
		return
	}

	if err := validateMeasuredParts(vessel, req.MeasuredPartIDs, req.MeasuredParts); err != nil {
		writeError(w, err)
		return
	}

	now := time.Now().UTC()
	flight := &models.Flight{
		ID:                uuid.New().String(),
		VesselID:          vessel.ID,
		VesselVersion:     vessel.Version,
		Name:              req.Name,
		Start:             now,
		End:               now.Add(models.DefaultHeadTime),
		MeasuredPartIDs:   req.MeasuredPartIDs,
		MeasuredParts:     req.MeasuredParts,
		AvailableCommands: req.AvailableCommands,
		Permissions:       map[string]string{},
		NoAuthPermission:  req.NoAuthPermission,
	}
	if _, err := h.stores.Flights.Upsert(r.Context(), flight); err != nil {
		writeError(w, err)
		return
	}

	h.bus.Publish(events.Event{
		Type:     events.TypeFlightNew,
		FlightID: flight.ID,
		Flight:   flight,
	})

	logger.InfoCtx(r.Context(), "flight created",
		logger.FlightID(flight.ID),
		logger.VesselID(vessel.ID),
		logger.VesselVersion(vessel.Version))
	WriteJSONCreated(w, flight)
}

// validateMeasuredParts checks the declared measurement layout against the
// vessel: every measured part must exist on the vessel, and the ordered id
// list and the descriptor map must agree.
func validateMeasuredParts(vessel *models.Vessel, partIDs []string, parts map[string][]models.MeasurementDescriptor) error {
	seen := make(map[string]bool, len(partIDs))
	for _, id := range partIDs {
		if seen[id] {
			return models.ErrInvalidInput
		}
		seen[id] = true
		if vessel.Part(id) == nil {
			return models.ErrInvalidInput
		}
		if _, ok := parts[id]; !ok {
			return models.ErrInvalidInput
		}
	}
	for id := range parts {
		if !seen[id] {
			return models.ErrInvalidInput
		}
	}
	return nil
}

// List handles GET /v1/flights/?vessel_id=[&name=]. Only flights the caller
// may at least view are returned.
func (h *FlightHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	var (
		flights []*models.Flight
		err     error
	)
	if vesselID := r.URL.Query().Get("vessel_id"); vesselID != "" {
		if _, err := h.stores.Vessels.Get(r.Context(), vesselID); err != nil {
			writeError(w, err)
			return
		}
		flights, err = h.stores.Flights.ListByVessel(r.Context(), vesselID)
	} else {
		flights, err = h.stores.Flights.List(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}

	name := r.URL.Query().Get("name")
	vessels := make(map[string]*models.Vessel)

	visible := make([]*models.Flight, 0, len(flights))
	for _, flight := range flights {
		if name != "" && flight.Name != name {
			continue
		}
		if claims != nil && !claims.AllowsResource(flight.ID) && !claims.AllowsResource(flight.VesselID) {
			continue
		}
		vessel, ok := vessels[flight.VesselID]
		if !ok {
			vessel, err = h.stores.Vessels.Get(r.Context(), flight.VesselID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					continue
				}
				writeError(w, err)
				return
			}
			vessels[flight.VesselID] = vessel
		}
		if models.FlightLevel(flight, vessel, userID(claims)) >= models.LevelView {
			visible = append(visible, flight)
		}
	}
	WriteJSONOK(w, visible)
}

// Get handles GET /v1/flights/{flightId}.
func (h *FlightHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	flight, level, err := h.stores.flightWithLevel(r.Context(), claims, chi.URLParam(r, "flightId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireLevel(level, models.LevelView); err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, flight)
}

// RenameFlightRequest is the request body for PUT /v1/flights/{flightId}.
type RenameFlightRequest struct {
	Name string `json:"name"`
}

// Rename handles PUT /v1/flights/{flightId}.
func (h *FlightHandler) Rename(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	var req RenameFlightRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	flight, level, err := h.stores.flightWithLevel(r.Context(), claims, chi.URLParam(r, "flightId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireLevel(level, models.LevelOwner); err != nil {
		writeError(w, err)
		return
	}

	flight.Name = req.Name
	if _, err := h.stores.Flights.Upsert(r.Context(), flight); err != nil {
		writeError(w, err)
		return
	}

	h.bus.Publish(events.Event{
		Type:     events.TypeFlightUpdate,
		FlightID: flight.ID,
		Flight:   flight,
	})
	WriteJSONOK(w, flight)
}

// Delete handles DELETE /v1/flights/{flightId}, cascading over the flight's
// measurements and commands.
func (h *FlightHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	flightID := chi.URLParam(r, "flightId")

	_, level, err := h.stores.flightWithLevel(r.Context(), claims, flightID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireLevel(level, models.LevelOwner); err != nil {
		writeError(w, err)
		return
	}

	deleted, err := h.stores.Cascade.DeleteFlightCascade(r.Context(), flightID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, models.ErrNotFound)
		return
	}
	WriteNoContent(w)
}

// SetPermission handles POST /v1/flights/{flightId}/permissions. Unlike
// vessels, flights have no owner escape hatch; the vessel's owners always
// retain access.
func (h *FlightHandler) SetPermission(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	var req SetPermissionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if !models.ValidLevelName(req.Permission) {
		BadRequest(w, "Invalid permission "+req.Permission)
		return
	}

	flight, level, err := h.stores.flightWithLevel(r.Context(), claims, chi.URLParam(r, "flightId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireLevel(level, models.LevelOwner); err != nil {
		writeError(w, err)
		return
	}

	target, err := h.stores.Users.GetByUniqueName(r.Context(), req.UniqueUserName)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			BadRequest(w, "User you are trying to give permission to does not exist")
			return
		}
		writeError(w, err)
		return
	}

	models.SetFlightPermission(flight, target.ID, models.ParseLevel(req.Permission))
	if _, err := h.stores.Flights.Upsert(r.Context(), flight); err != nil {
		writeError(w, err)
		return
	}

	logger.InfoCtx(r.Context(), "flight permission set",
		logger.FlightID(flight.ID),
		logger.UserID(target.ID))
	WriteJSONOK(w, flight)
}

// requireVessel ensures the caller is an authenticated vessel principal.
func requireVessel(claims *auth.Claims) error {
	if claims == nil {
		return models.ErrAuthMissing
	}
	if !claims.IsVessel() {
		return models.ErrPermissionDenied
	}
	return nil
}
