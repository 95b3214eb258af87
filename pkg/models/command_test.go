package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommand() *Command {
	return &Command{
		ID:          "cmd-1",
		CommandType: "set_throttle",
		State:       StateNew,
		CreateTime:  time.Now(),
		Payload:     map[string]any{"value": 0.4},
	}
}

func TestValidateDispatch(t *testing.T) {
	require.NoError(t, ValidateDispatch(newCommand()))

	c := newCommand()
	c.State = StateDispatched
	assert.ErrorIs(t, ValidateDispatch(c), ErrInvalidInput)

	c = newCommand()
	c.CreateTime = time.Time{}
	assert.ErrorIs(t, ValidateDispatch(c), ErrInvalidInput)

	c = newCommand()
	now := time.Now()
	c.DispatchTime = &now
	assert.ErrorIs(t, ValidateDispatch(c), ErrInvalidInput)

	c = newCommand()
	c.Response = map[string]any{"ok": true}
	assert.ErrorIs(t, ValidateDispatch(c), ErrInvalidInput)
}

func TestValidateConfirm(t *testing.T) {
	now := time.Now()

	c := newCommand()
	c.State = StateReceived
	c.DispatchTime = &now
	c.ReceiveTime = &now
	require.NoError(t, ValidateConfirm(c))

	// The vessel never reports a command back into the new state.
	assert.ErrorIs(t, ValidateConfirm(newCommand()), ErrInvalidInput)

	c = newCommand()
	c.State = "teleported"
	assert.ErrorIs(t, ValidateConfirm(c), ErrInvalidInput)
}

func TestTerminal(t *testing.T) {
	c := newCommand()
	assert.False(t, c.Terminal())
	c.State = StateCompleted
	assert.True(t, c.Terminal())
	c.State = StateFailed
	assert.True(t, c.Terminal())
}

func TestCommandTarget(t *testing.T) {
	part := "engine-1"
	other := "wing-2"
	f := &Flight{
		AvailableCommands: map[string]CommandInfo{
			"set_throttle": {
				Name:            "Set throttle",
				SupportingParts: []string{part},
			},
			"abort": {
				Name:                    "Abort",
				SupportedOnVehicleLevel: true,
			},
		},
	}

	assert.NoError(t, f.CommandTarget("set_throttle", &part))
	assert.ErrorIs(t, f.CommandTarget("set_throttle", &other), ErrInvalidPayload)
	assert.ErrorIs(t, f.CommandTarget("set_throttle", nil), ErrInvalidPayload)

	assert.NoError(t, f.CommandTarget("abort", nil))
	assert.ErrorIs(t, f.CommandTarget("self_destruct", nil), ErrInvalidPayload)
}
