package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelOrdering(t *testing.T) {
	assert.True(t, LevelNone < LevelView)
	assert.True(t, LevelView < LevelRead)
	assert.True(t, LevelRead < LevelWrite)
	assert.True(t, LevelWrite < LevelOwner)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelOwner, ParseLevel("owner"))
	assert.Equal(t, LevelNone, ParseLevel("none"))
	// Unknown names degrade to none instead of failing open.
	assert.Equal(t, LevelNone, ParseLevel("superuser"))
	assert.Equal(t, LevelNone, ParseLevel(""))
}

func TestVesselLevelTakesMaximum(t *testing.T) {
	v := &Vessel{
		NoAuthPermission: "view",
		Permissions:      map[string]string{"alice": "write", "bob": "none"},
	}

	assert.Equal(t, LevelWrite, VesselLevel(v, "alice"))
	// The anonymous floor still applies to users with a lower grant.
	assert.Equal(t, LevelView, VesselLevel(v, "bob"))
	assert.Equal(t, LevelView, VesselLevel(v, "carol"))
	assert.Equal(t, LevelView, VesselLevel(v, ""))
}

func TestFlightLevelTakesEitherSide(t *testing.T) {
	v := &Vessel{
		NoAuthPermission: "none",
		Permissions:      map[string]string{"alice": "owner"},
	}
	f := &Flight{
		NoAuthPermission: "view",
		Permissions:      map[string]string{"bob": "read"},
	}

	// Vessel grant carries over to the flight.
	assert.Equal(t, LevelOwner, FlightLevel(f, v, "alice"))
	// Flight grant suffices without any vessel grant.
	assert.Equal(t, LevelRead, FlightLevel(f, v, "bob"))
	assert.Equal(t, LevelView, FlightLevel(f, v, ""))
}

func TestSetVesselPermission(t *testing.T) {
	v := &Vessel{
		NoAuthPermission: "none",
		Permissions:      map[string]string{"alice": "owner", "bob": "read"},
	}

	SetVesselPermission(v, "bob", LevelWrite)
	assert.Equal(t, "write", v.Permissions["bob"])

	// Granting none removes the entry entirely.
	SetVesselPermission(v, "bob", LevelNone)
	_, ok := v.Permissions["bob"]
	assert.False(t, ok)
	assert.Equal(t, "none", v.NoAuthPermission)
}

func TestEnsureOwnerEscapeHatch(t *testing.T) {
	v := &Vessel{
		NoAuthPermission: "none",
		Permissions:      map[string]string{"alice": "owner"},
	}

	// Demoting the last owner opens the vessel up rather than locking
	// everyone out.
	SetVesselPermission(v, "alice", LevelRead)
	assert.Equal(t, "owner", v.NoAuthPermission)
	assert.Equal(t, LevelOwner, VesselLevel(v, "anyone"))
}

func TestSetFlightPermission(t *testing.T) {
	f := &Flight{NoAuthPermission: "none"}

	SetFlightPermission(f, "bob", LevelRead)
	assert.Equal(t, "read", f.Permissions["bob"])

	SetFlightPermission(f, "bob", LevelNone)
	_, ok := f.Permissions["bob"]
	assert.False(t, ok)
	// No escape hatch on flights.
	assert.Equal(t, "none", f.NoAuthPermission)
}
