package models

// Level is a permission level on a vessel or flight. Levels form a total
// order; holding a level implies holding every lower one.
type Level int

const (
	LevelNone Level = iota
	LevelView
	LevelRead
	LevelWrite
	LevelOwner
)

var levelNames = map[Level]string{
	LevelNone:  "none",
	LevelView:  "view",
	LevelRead:  "read",
	LevelWrite: "write",
	LevelOwner: "owner",
}

var levelValues = map[string]Level{
	"none":  LevelNone,
	"view":  LevelView,
	"read":  LevelRead,
	"write": LevelWrite,
	"owner": LevelOwner,
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "none"
}

// ParseLevel maps a permission name to its level. Unknown names map to
// LevelNone, matching how unrecognized grants behave everywhere else.
func ParseLevel(name string) Level {
	return levelValues[name]
}

// ValidLevelName reports whether name is one of the five permission names.
func ValidLevelName(name string) bool {
	_, ok := levelValues[name]
	return ok
}

func maxLevel(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}

// VesselLevel computes the effective permission of a principal on a vessel:
// the maximum of the vessel's no-auth permission and the principal's map
// entry. userID may be empty for anonymous callers.
func VesselLevel(v *Vessel, userID string) Level {
	effective := ParseLevel(v.NoAuthPermission)
	if userID != "" {
		effective = maxLevel(effective, ParseLevel(v.Permissions[userID]))
	}
	return effective
}

// FlightLevel computes the effective permission of a principal on a flight.
// The flight's own grants are OR-ed with the vessel's: permission on either
// suffices.
func FlightLevel(f *Flight, v *Vessel, userID string) Level {
	effective := ParseLevel(f.NoAuthPermission)
	if userID != "" {
		effective = maxLevel(effective, ParseLevel(f.Permissions[userID]))
	}
	return maxLevel(effective, VesselLevel(v, userID))
}

// SetVesselPermission grants level to userID on the vessel. Granting
// LevelNone removes the map entry. The owner escape hatch is re-established
// afterwards so a vessel can never lose its last owner.
func SetVesselPermission(v *Vessel, userID string, level Level) {
	if v.Permissions == nil {
		v.Permissions = map[string]string{}
	}
	if level == LevelNone {
		delete(v.Permissions, userID)
	} else {
		v.Permissions[userID] = level.String()
	}
	EnsureOwner(v)
}

// SetFlightPermission grants level to userID on the flight. Flights have no
// owner escape hatch; the vessel's owners always retain access.
func SetFlightPermission(f *Flight, userID string, level Level) {
	if f.Permissions == nil {
		f.Permissions = map[string]string{}
	}
	if level == LevelNone {
		delete(f.Permissions, userID)
		return
	}
	f.Permissions[userID] = level.String()
}

// EnsureOwner promotes the vessel's no-auth permission to owner when no map
// entry holds owner, so nobody can lock themselves out of a vessel.
func EnsureOwner(v *Vessel) {
	for _, p := range v.Permissions {
		if ParseLevel(p) == LevelOwner {
			return
		}
	}
	v.NoAuthPermission = LevelOwner.String()
}
