package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/avionyx/flightd/pkg/auth"
	"github.com/avionyx/flightd/pkg/models"
)

// Cascader performs the multi-collection deletes.
type Cascader interface {
	DeleteVesselCascade(ctx context.Context, vesselID string) (bool, error)
	DeleteFlightCascade(ctx context.Context, flightID string) (bool, error)
}

// Stores bundles the persistence interfaces the handlers depend on.
type Stores struct {
	Users        models.UserStore
	AuthCodes    models.AuthCodeStore
	Vessels      models.VesselStore
	Flights      models.FlightStore
	Measurements models.MeasurementStore
	Commands     models.CommandStore
	Cascade      Cascader
}

// decodeJSONBody parses the request body into v, writing a 400 on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// userID returns the authenticated principal's id, or empty for anonymous.
func userID(claims *auth.Claims) string {
	if claims == nil {
		return ""
	}
	return claims.UserID
}

// vesselWithLevel loads a vessel and the caller's effective permission on
// it. Resource-scoped tokens that exclude the vessel see ErrPermissionDenied.
func (s Stores) vesselWithLevel(ctx context.Context, claims *auth.Claims, vesselID string) (*models.Vessel, models.Level, error) {
	if claims != nil && !claims.AllowsResource(vesselID) {
		return nil, models.LevelNone, models.ErrPermissionDenied
	}
	vessel, err := s.Vessels.Get(ctx, vesselID)
	if err != nil {
		return nil, models.LevelNone, err
	}
	return vessel, models.VesselLevel(vessel, userID(claims)), nil
}

// flightWithLevel loads a flight, its pinned vessel version and the
// caller's effective permission. Scoping may name either the flight or its
// vessel.
func (s Stores) flightWithLevel(ctx context.Context, claims *auth.Claims, flightID string) (*models.Flight, models.Level, error) {
	flight, err := s.Flights.Get(ctx, flightID)
	if err != nil {
		return nil, models.LevelNone, err
	}
	if claims != nil && !claims.AllowsResource(flightID) && !claims.AllowsResource(flight.VesselID) {
		return nil, models.LevelNone, models.ErrPermissionDenied
	}
	vessel, err := s.Vessels.GetVersion(ctx, flight.VesselID, flight.VesselVersion)
	if err != nil {
		return nil, models.LevelNone, err
	}
	return flight, models.FlightLevel(flight, vessel, userID(claims)), nil
}

// requireLevel turns an insufficient permission into the taxonomy error.
// Nonexistence surfaces earlier as ErrNotFound from the store lookup; an
// existing entity the caller may not touch is always a permission error.
func requireLevel(have, want models.Level) error {
	if have >= want {
		return nil
	}
	return models.ErrPermissionDenied
}
