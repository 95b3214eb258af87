package models

import (
	"context"
	"time"
)

// Store interfaces. The mongo implementations live in pkg/store; handlers
// and services depend on these so tests can swap in fakes.

// UserStore persists registered principals.
type UserStore interface {
	Put(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByUniqueName(ctx context.Context, uniqueName string) (*User, error)
}

// AuthCodeStore persists single-use authorization codes.
type AuthCodeStore interface {
	Put(ctx context.Context, c *AuthorizationCode) error
	Get(ctx context.Context, id string) (*AuthorizationCode, error)
	// Delete removes the code, reporting whether it existed. Redemption
	// relies on the report to keep codes single-use under races.
	Delete(ctx context.Context, id string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]*AuthorizationCode, error)
}

// VesselStore persists vessels and their historic versions.
type VesselStore interface {
	// Upsert stores the vessel, bumping the version and snapshotting the
	// previous state when the structure changed. Returns the stored state.
	Upsert(ctx context.Context, v *Vessel) (*Vessel, error)
	// Replace overwrites the current state without touching the version.
	// Used for administrative changes such as permission grants.
	Replace(ctx context.Context, v *Vessel) error
	Get(ctx context.Context, id string) (*Vessel, error)
	GetVersion(ctx context.Context, id string, version int) (*Vessel, error)
	List(ctx context.Context) ([]*Vessel, error)
	ListByName(ctx context.Context, name string) ([]*Vessel, error)
	// Delete removes the vessel row and its historic versions. Dependent
	// flight data is cascaded by the caller.
	Delete(ctx context.Context, id string) (bool, error)
}

// FlightStore persists flights.
type FlightStore interface {
	// Upsert stores the flight by id, reporting whether it was created.
	Upsert(ctx context.Context, f *Flight) (bool, error)
	Get(ctx context.Context, id string) (*Flight, error)
	List(ctx context.Context) ([]*Flight, error)
	ListByVessel(ctx context.Context, vesselID string) ([]*Flight, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByVessel(ctx context.Context, vesselID string) ([]string, error)
}

// MeasurementStore persists decoded telemetry batches.
type MeasurementStore interface {
	InsertBatch(ctx context.Context, recs []*MeasurementRecord) error
	// Range returns raw records of one series overlapping [start, end),
	// capped at the store's result limit.
	Range(ctx context.Context, flightID string, partIndex, seriesIndex int, start, end time.Time) ([]*MeasurementRecord, error)
	// Aggregate buckets one series over [start, end) at the given
	// resolution.
	Aggregate(ctx context.Context, flightID string, partIndex, seriesIndex int, start, end time.Time, res Resolution) ([]*AggregatedRecord, error)
	DeleteByFlights(ctx context.Context, flightIDs []string) error
}

// CommandFilter narrows a command range query.
type CommandFilter struct {
	Start       time.Time
	End         time.Time
	PartID      *string
	CommandType string
}

// CommandStore persists commands per flight.
type CommandStore interface {
	Insert(ctx context.Context, flightID string, cmds []*Command) error
	// Upsert replaces commands by id, inserting those not yet stored.
	Upsert(ctx context.Context, flightID string, cmds []*Command) error
	Range(ctx context.Context, flightID string, filter CommandFilter) ([]*Command, error)
	DeleteByFlights(ctx context.Context, flightIDs []string) error
}
