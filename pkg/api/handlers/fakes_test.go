package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/avionyx/flightd/pkg/api/middleware"
	"github.com/avionyx/flightd/pkg/auth"
	"github.com/avionyx/flightd/pkg/events"
	"github.com/avionyx/flightd/pkg/models"
)

// In-memory store fakes. They mirror the mongo stores' observable
// behavior (versioning, conflict detection, delete reporting) so handler
// tests exercise the same paths the real wiring does.

type memUsers struct {
	byID map[string]*models.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]*models.User{}} }

func (s *memUsers) Put(_ context.Context, u *models.User) error {
	for _, other := range s.byID {
		if other.UniqueName == u.UniqueName && other.ID != u.ID {
			return models.ErrConflict
		}
	}
	s.byID[u.ID] = u
	return nil
}

func (s *memUsers) Get(_ context.Context, id string) (*models.User, error) {
	if u, ok := s.byID[id]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

func (s *memUsers) GetByUniqueName(_ context.Context, uniqueName string) (*models.User, error) {
	for _, u := range s.byID {
		if u.UniqueName == uniqueName {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

type memCodes struct {
	byID map[string]*models.AuthorizationCode
}

func newMemCodes() *memCodes { return &memCodes{byID: map[string]*models.AuthorizationCode{}} }

func (s *memCodes) Put(_ context.Context, c *models.AuthorizationCode) error {
	s.byID[c.ID] = c
	return nil
}

func (s *memCodes) Get(_ context.Context, id string) (*models.AuthorizationCode, error) {
	if c, ok := s.byID[id]; ok {
		return c, nil
	}
	return nil, models.ErrNotFound
}

func (s *memCodes) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := s.byID[id]; !ok {
		return false, nil
	}
	delete(s.byID, id)
	return true, nil
}

func (s *memCodes) ListForUser(_ context.Context, userID string) ([]*models.AuthorizationCode, error) {
	var codes []*models.AuthorizationCode
	for _, c := range s.byID {
		if c.UserID == userID {
			codes = append(codes, c)
		}
	}
	return codes, nil
}

type memVessels struct {
	byID     map[string]*models.Vessel
	historic map[string]map[int]*models.Vessel
}

func newMemVessels() *memVessels {
	return &memVessels{
		byID:     map[string]*models.Vessel{},
		historic: map[string]map[int]*models.Vessel{},
	}
}

func (s *memVessels) Upsert(_ context.Context, v *models.Vessel) (*models.Vessel, error) {
	current, ok := s.byID[v.ID]
	if !ok {
		v.Version = 1
		models.EnsureOwner(v)
		s.byID[v.ID] = v
		return v, nil
	}

	v.Version = current.Version
	v.Name = current.Name
	v.Permissions = current.Permissions
	v.NoAuthPermission = current.NoAuthPermission
	if models.StructurallyEqual(current, v) {
		return current, nil
	}

	if s.historic[v.ID] == nil {
		s.historic[v.ID] = map[int]*models.Vessel{}
	}
	s.historic[v.ID][current.Version] = current
	v.Version = current.Version + 1
	s.byID[v.ID] = v
	return v, nil
}

func (s *memVessels) Replace(_ context.Context, v *models.Vessel) error {
	if _, ok := s.byID[v.ID]; !ok {
		return models.ErrNotFound
	}
	s.byID[v.ID] = v
	return nil
}

func (s *memVessels) Get(_ context.Context, id string) (*models.Vessel, error) {
	if v, ok := s.byID[id]; ok {
		return v, nil
	}
	return nil, models.ErrNotFound
}

func (s *memVessels) GetVersion(ctx context.Context, id string, version int) (*models.Vessel, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version == version {
		return current, nil
	}
	if v, ok := s.historic[id][version]; ok {
		return v, nil
	}
	return nil, models.ErrNotFound
}

func (s *memVessels) List(_ context.Context) ([]*models.Vessel, error) {
	var vessels []*models.Vessel
	for _, v := range s.byID {
		vessels = append(vessels, v)
	}
	return vessels, nil
}

func (s *memVessels) ListByName(ctx context.Context, name string) ([]*models.Vessel, error) {
	all, _ := s.List(ctx)
	var vessels []*models.Vessel
	for _, v := range all {
		if v.Name == name {
			vessels = append(vessels, v)
		}
	}
	return vessels, nil
}

func (s *memVessels) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := s.byID[id]; !ok {
		return false, nil
	}
	delete(s.byID, id)
	delete(s.historic, id)
	return true, nil
}

type memFlights struct {
	byID map[string]*models.Flight
}

func newMemFlights() *memFlights { return &memFlights{byID: map[string]*models.Flight{}} }

func (s *memFlights) Upsert(_ context.Context, f *models.Flight) (bool, error) {
	_, existed := s.byID[f.ID]
	s.byID[f.ID] = f
	return !existed, nil
}

func (s *memFlights) Get(_ context.Context, id string) (*models.Flight, error) {
	if f, ok := s.byID[id]; ok {
		return f, nil
	}
	return nil, models.ErrNotFound
}

func (s *memFlights) List(_ context.Context) ([]*models.Flight, error) {
	var flights []*models.Flight
	for _, f := range s.byID {
		flights = append(flights, f)
	}
	return flights, nil
}

func (s *memFlights) ListByVessel(ctx context.Context, vesselID string) ([]*models.Flight, error) {
	all, _ := s.List(ctx)
	var flights []*models.Flight
	for _, f := range all {
		if f.VesselID == vesselID {
			flights = append(flights, f)
		}
	}
	return flights, nil
}

func (s *memFlights) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := s.byID[id]; !ok {
		return false, nil
	}
	delete(s.byID, id)
	return true, nil
}

func (s *memFlights) DeleteByVessel(ctx context.Context, vesselID string) ([]string, error) {
	flights, _ := s.ListByVessel(ctx, vesselID)
	ids := make([]string, 0, len(flights))
	for _, f := range flights {
		delete(s.byID, f.ID)
		ids = append(ids, f.ID)
	}
	return ids, nil
}

type memMeasurements struct {
	records []*models.MeasurementRecord
	aggs    []*models.AggregatedRecord

	lastPartIndex   int
	lastSeriesIndex int
	lastResolution  models.Resolution
}

func (s *memMeasurements) InsertBatch(_ context.Context, recs []*models.MeasurementRecord) error {
	s.records = append(s.records, recs...)
	return nil
}

func (s *memMeasurements) Range(_ context.Context, flightID string, partIndex, seriesIndex int, _, _ time.Time) ([]*models.MeasurementRecord, error) {
	s.lastPartIndex, s.lastSeriesIndex = partIndex, seriesIndex
	var out []*models.MeasurementRecord
	for _, rec := range s.records {
		m := rec.Metadata
		if m.FlightID == flightID && m.PartIndex == partIndex && m.SeriesIndex == seriesIndex {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memMeasurements) Aggregate(_ context.Context, _ string, partIndex, seriesIndex int, _, _ time.Time, res models.Resolution) ([]*models.AggregatedRecord, error) {
	s.lastPartIndex, s.lastSeriesIndex = partIndex, seriesIndex
	s.lastResolution = res
	return s.aggs, nil
}

func (s *memMeasurements) DeleteByFlights(_ context.Context, flightIDs []string) error {
	keep := s.records[:0]
	for _, rec := range s.records {
		deleted := false
		for _, id := range flightIDs {
			if rec.Metadata.FlightID == id {
				deleted = true
				break
			}
		}
		if !deleted {
			keep = append(keep, rec)
		}
	}
	s.records = keep
	return nil
}

type memCommands struct {
	byFlight map[string][]*models.Command
}

func newMemCommands() *memCommands { return &memCommands{byFlight: map[string][]*models.Command{}} }

func (s *memCommands) Insert(_ context.Context, flightID string, cmds []*models.Command) error {
	s.byFlight[flightID] = append(s.byFlight[flightID], cmds...)
	return nil
}

func (s *memCommands) Upsert(_ context.Context, flightID string, cmds []*models.Command) error {
	for _, cmd := range cmds {
		replaced := false
		for i, existing := range s.byFlight[flightID] {
			if existing.ID == cmd.ID {
				s.byFlight[flightID][i] = cmd
				replaced = true
				break
			}
		}
		if !replaced {
			s.byFlight[flightID] = append(s.byFlight[flightID], cmd)
		}
	}
	return nil
}

func (s *memCommands) Range(_ context.Context, flightID string, filter models.CommandFilter) ([]*models.Command, error) {
	var out []*models.Command
	for _, cmd := range s.byFlight[flightID] {
		if cmd.CreateTime.Before(filter.Start) || !cmd.CreateTime.Before(filter.End) {
			continue
		}
		if filter.CommandType != "" && cmd.CommandType != filter.CommandType {
			continue
		}
		if filter.PartID != nil {
			if cmd.PartID == nil || *cmd.PartID != *filter.PartID {
				continue
			}
		}
		out = append(out, cmd)
	}
	return out, nil
}

func (s *memCommands) DeleteByFlights(_ context.Context, flightIDs []string) error {
	for _, id := range flightIDs {
		delete(s.byFlight, id)
	}
	return nil
}

// testEnv bundles the fakes behind the Stores facade plus an event capture.
type testEnv struct {
	users        *memUsers
	codes        *memCodes
	vessels      *memVessels
	flights      *memFlights
	measurements *memMeasurements
	commands     *memCommands

	bus    *events.Bus
	events []events.Event
}

func newTestEnv() *testEnv {
	env := &testEnv{
		users:        newMemUsers(),
		codes:        newMemCodes(),
		vessels:      newMemVessels(),
		flights:      newMemFlights(),
		measurements: &memMeasurements{},
		commands:     newMemCommands(),
		bus:          events.NewBus(),
	}
	env.bus.SubscribeAll(func(e events.Event) {
		env.events = append(env.events, e)
	})
	return env
}

func (env *testEnv) stores() Stores {
	return Stores{
		Users:        env.users,
		AuthCodes:    env.codes,
		Vessels:      env.vessels,
		Flights:      env.flights,
		Measurements: env.measurements,
		Commands:     env.commands,
		Cascade:      env,
	}
}

// DeleteVesselCascade mirrors the store-level cascade over the fakes.
func (env *testEnv) DeleteVesselCascade(ctx context.Context, vesselID string) (bool, error) {
	flightIDs, err := env.flights.DeleteByVessel(ctx, vesselID)
	if err != nil {
		return false, err
	}
	if len(flightIDs) > 0 {
		if err := env.measurements.DeleteByFlights(ctx, flightIDs); err != nil {
			return false, err
		}
		if err := env.commands.DeleteByFlights(ctx, flightIDs); err != nil {
			return false, err
		}
	}
	return env.vessels.Delete(ctx, vesselID)
}

// DeleteFlightCascade mirrors the store-level cascade over the fakes.
func (env *testEnv) DeleteFlightCascade(ctx context.Context, flightID string) (bool, error) {
	if err := env.measurements.DeleteByFlights(ctx, []string{flightID}); err != nil {
		return false, err
	}
	if err := env.commands.DeleteByFlights(ctx, []string{flightID}); err != nil {
		return false, err
	}
	return env.flights.Delete(ctx, flightID)
}

func (env *testEnv) eventsOfType(t events.Type) []events.Event {
	var out []events.Event
	for _, e := range env.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Request helpers.

func operatorClaims(userID string) *auth.Claims {
	return &auth.Claims{UserID: userID, UniqueName: userID}
}

func vesselClaims(vesselID string) *auth.Claims {
	return &auth.Claims{
		UserID:     vesselID,
		UniqueName: vesselID,
		Roles:      []string{auth.RoleVessel},
	}
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

// newRequest builds a request with optional claims and chi URL parameters,
// given as alternating key, value pairs.
func newRequest(t *testing.T, method, target string, body io.Reader, claims *auth.Claims, params ...string) *http.Request {
	t.Helper()
	require.Zero(t, len(params)%2, "params must be key value pairs")

	r := httptest.NewRequest(method, target, body)
	ctx := r.Context()
	if claims != nil {
		ctx = middleware.ContextWithClaims(ctx, claims)
	}
	rctx := chi.NewRouteContext()
	for i := 0; i < len(params); i += 2 {
		rctx.URLParams.Add(params[i], params[i+1])
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}
