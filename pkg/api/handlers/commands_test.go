package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avionyx/flightd/pkg/events"
	"github.com/avionyx/flightd/pkg/models"
)

func newCommandHandler() (*CommandHandler, *testEnv) {
	env := newTestEnv()
	return NewCommandHandler(env.stores(), env.bus), env
}

// seedCommandFlight returns a flight accepting a vehicle-level "reboot"
// command with a payload schema and an engine-scoped "throttle" command.
func seedCommandFlight(env *testEnv, perms map[string]string) *models.Flight {
	seedMeasuredVessel(env, "vessel-1", map[string]string{})
	f := seedFlight(env, "flight-1", "vessel-1", perms)
	f.AvailableCommands = map[string]models.CommandInfo{
		"reboot": {
			Name:                    "Reboot",
			SupportedOnVehicleLevel: true,
			PayloadSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"delay": map[string]any{"type": "integer"}},
				"required":   []any{"delay"},
			},
			ResponseSchema: map[string]any{"type": "object"},
		},
		"throttle": {
			Name:            "Throttle",
			SupportingParts: []string{"engine"},
		},
	}
	return f
}

func newCommand(id, commandType string) *models.Command {
	return &models.Command{
		ID:          id,
		CommandType: commandType,
		State:       models.StateNew,
		CreateTime:  time.Now().UTC(),
	}
}

func TestDispatchCommands(t *testing.T) {
	h, env := newCommandHandler()
	seedCommandFlight(env, map[string]string{"ada": "write"})

	cmd := newCommand("cmd-1", "reboot")
	cmd.Payload = map[string]any{"delay": float64(5)}

	w := httptest.NewRecorder()
	h.Dispatch(w, newRequest(t, http.MethodPost, "/v1/flights/flight-1/commands",
		jsonBody(t, []*models.Command{cmd}),
		operatorClaims("ada"), "flightId", "flight-1"))
	require.Equal(t, http.StatusOK, w.Code)

	stored := env.commands.byFlight["flight-1"]
	require.Len(t, stored, 1)
	assert.Equal(t, "cmd-1", stored[0].ID)

	newEvents := env.eventsOfType(events.TypeCommandNew)
	require.Len(t, newEvents, 1)
	assert.Equal(t, "flight-1", newEvents[0].FlightID)
	assert.True(t, newEvents[0].FromClient)
	require.Len(t, newEvents[0].Commands, 1)
	assert.Equal(t, "cmd-1", newEvents[0].Commands[0].ID)
}

func TestDispatchRequiresWrite(t *testing.T) {
	h, env := newCommandHandler()
	seedCommandFlight(env, map[string]string{"ada": "read"})

	w := httptest.NewRecorder()
	h.Dispatch(w, newRequest(t, http.MethodPost, "/v1/flights/flight-1/commands",
		jsonBody(t, []*models.Command{newCommand("cmd-1", "throttle")}),
		operatorClaims("ada"), "flightId", "flight-1"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDispatchEmptyList(t *testing.T) {
	h, env := newCommandHandler()
	seedCommandFlight(env, map[string]string{"ada": "write"})

	w := httptest.NewRecorder()
	h.Dispatch(w, newRequest(t, http.MethodPost, "/v1/flights/flight-1/commands",
		jsonBody(t, []*models.Command{}),
		operatorClaims("ada"), "flightId", "flight-1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDispatchValidation(t *testing.T) {
	h, env := newCommandHandler()
	seedCommandFlight(env, map[string]string{"ada": "write"})
	engine := "engine"
	wing := "wing"
	now := time.Now()

	badPayload := newCommand("c", "reboot")
	badPayload.Payload = map[string]any{"delay": "soon"}

	payloadWithoutSchema := newCommand("c", "throttle")
	payloadWithoutSchema.PartID = &engine
	payloadWithoutSchema.Payload = map[string]any{"level": 3}

	withResponse := newCommand("c", "reboot")
	withResponse.Payload = map[string]any{"delay": float64(1)}
	withResponse.Response = map[string]any{"ok": true}

	dispatched := newCommand("c", "reboot")
	dispatched.Payload = map[string]any{"delay": float64(1)}
	dispatched.State = models.StateDispatched

	stamped := newCommand("c", "reboot")
	stamped.Payload = map[string]any{"delay": float64(1)}
	stamped.DispatchTime = &now

	noID := newCommand("", "reboot")
	noID.Payload = map[string]any{"delay": float64(1)}

	unknownType := newCommand("c", "self-destruct")

	partOnVehicleCommand := newCommand("c", "reboot")
	partOnVehicleCommand.Payload = map[string]any{"delay": float64(1)}
	partOnVehicleCommand.PartID = &engine

	unsupportedPart := newCommand("c", "throttle")
	unsupportedPart.PartID = &wing

	vehicleLevelPartCommand := newCommand("c", "throttle")

	cases := []struct {
		name string
		cmd  *models.Command
	}{
		{"payload fails schema", badPayload},
		{"payload without schema", payloadWithoutSchema},
		{"response on dispatch", withResponse},
		{"state not new", dispatched},
		{"lifecycle timestamp set", stamped},
		{"missing id", noID},
		{"unknown command type", unknownType},
		{"part target on vehicle command", partOnVehicleCommand},
		{"unsupported part", unsupportedPart},
		{"vehicle target on part command", vehicleLevelPartCommand},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Dispatch(w, newRequest(t, http.MethodPost, "/v1/flights/flight-1/commands",
				jsonBody(t, []*models.Command{tc.cmd}),
				operatorClaims("ada"), "flightId", "flight-1"))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, env.commands.byFlight["flight-1"])
		})
	}
}

func TestConfirmCommands(t *testing.T) {
	h, env := newCommandHandler()
	flight := seedCommandFlight(env, map[string]string{"vessel-1": "write"})
	env.commands.byFlight["flight-1"] = []*models.Command{newCommand("cmd-1", "reboot")}

	confirmed := newCommand("cmd-1", "reboot")
	confirmed.State = models.StateCompleted
	confirmed.Payload = map[string]any{"delay": float64(1)}
	confirmed.Response = map[string]any{"rebooted": true}

	// End close enough that the confirmation extends the flight window.
	flight.End = time.Now().Add(10 * time.Second)

	w := httptest.NewRecorder()
	h.Confirm(w, newRequest(t, http.MethodPost, "/v1/flights/flight-1/commands/confirm",
		jsonBody(t, []*models.Command{confirmed}),
		vesselClaims("vessel-1"), "flightId", "flight-1"))
	require.Equal(t, http.StatusOK, w.Code)

	stored := env.commands.byFlight["flight-1"]
	require.Len(t, stored, 1)
	assert.Equal(t, models.StateCompleted, stored[0].State)

	updates := env.eventsOfType(events.TypeCommandUpdate)
	require.Len(t, updates, 1)
	assert.False(t, updates[0].FromClient)

	flightUpdates := env.eventsOfType(events.TypeFlightUpdate)
	require.Len(t, flightUpdates, 1)
	assert.Greater(t, flight.End.Sub(time.Now()), time.Minute)
}

func TestConfirmRequiresVesselRole(t *testing.T) {
	h, env := newCommandHandler()
	seedCommandFlight(env, map[string]string{"ada": "owner"})

	confirmed := newCommand("cmd-1", "reboot")
	confirmed.State = models.StateReceived
	confirmed.Payload = map[string]any{"delay": float64(1)}

	w := httptest.NewRecorder()
	h.Confirm(w, newRequest(t, http.MethodPost, "/v1/flights/flight-1/commands/confirm",
		jsonBody(t, []*models.Command{confirmed}),
		operatorClaims("ada"), "flightId", "flight-1"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestConfirmRejectsStateNew(t *testing.T) {
	h, env := newCommandHandler()
	seedCommandFlight(env, map[string]string{"vessel-1": "write"})

	w := httptest.NewRecorder()
	h.Confirm(w, newRequest(t, http.MethodPost, "/v1/flights/flight-1/commands/confirm",
		jsonBody(t, []*models.Command{newCommand("cmd-1", "throttle")}),
		vesselClaims("vessel-1"), "flightId", "flight-1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfirmResponseNeedsSchema(t *testing.T) {
	h, env := newCommandHandler()
	seedCommandFlight(env, map[string]string{"vessel-1": "write"})
	engine := "engine"

	confirmed := newCommand("cmd-1", "throttle")
	confirmed.State = models.StateCompleted
	confirmed.PartID = &engine
	confirmed.Response = map[string]any{"ok": true}

	w := httptest.NewRecorder()
	h.Confirm(w, newRequest(t, http.MethodPost, "/v1/flights/flight-1/commands/confirm",
		jsonBody(t, []*models.Command{confirmed}),
		vesselClaims("vessel-1"), "flightId", "flight-1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommandRangeRequiresWrite(t *testing.T) {
	h, env := newCommandHandler()
	seedCommandFlight(env, map[string]string{"ada": "read"})

	w := httptest.NewRecorder()
	h.GetRange(w, newRequest(t, http.MethodGet,
		"/v1/flights/flight-1/commands?start=2026-01-01T00:00:00Z&end=2026-01-02T00:00:00Z",
		nil, operatorClaims("ada"), "flightId", "flight-1"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCommandRangeFilters(t *testing.T) {
	h, env := newCommandHandler()
	seedCommandFlight(env, map[string]string{"ada": "write"})
	engine := "engine"

	inRange := newCommand("cmd-1", "throttle")
	inRange.PartID = &engine
	inRange.CreateTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	wrongType := newCommand("cmd-2", "reboot")
	wrongType.CreateTime = inRange.CreateTime

	tooEarly := newCommand("cmd-3", "throttle")
	tooEarly.PartID = &engine
	tooEarly.CreateTime = time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	env.commands.byFlight["flight-1"] = []*models.Command{inRange, wrongType, tooEarly}

	w := httptest.NewRecorder()
	h.GetRange(w, newRequest(t, http.MethodGet,
		"/v1/flights/flight-1/commands?start=2026-01-01T00:00:00Z&end=2026-01-02T00:00:00Z&command_type=throttle&part_id=engine",
		nil, operatorClaims("ada"), "flightId", "flight-1"))
	require.Equal(t, http.StatusOK, w.Code)

	var commands []*models.Command
	decodeResponse(t, w, &commands)
	require.Len(t, commands, 1)
	assert.Equal(t, "cmd-1", commands[0].ID)
}

func TestCommandRangeBadTimestamps(t *testing.T) {
	h, env := newCommandHandler()
	seedCommandFlight(env, map[string]string{"ada": "write"})

	w := httptest.NewRecorder()
	h.GetRange(w, newRequest(t, http.MethodGet,
		"/v1/flights/flight-1/commands?start=yesterday&end=today",
		nil, operatorClaims("ada"), "flightId", "flight-1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
