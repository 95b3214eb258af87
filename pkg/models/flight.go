package models

import (
	"time"

	"github.com/avionyx/flightd/pkg/codec"
)

// Head-time bounds for live flights. While telemetry keeps arriving, the
// flight's end is pushed forward so it stays ahead of the newest sample.
const (
	// MinHeadTime is how close the flight end may get to the current time
	// before it is extended.
	MinHeadTime = 60 * time.Second

	// DefaultHeadTime is how far past the current time the end is pushed
	// when extended, and the initial window on creation.
	DefaultHeadTime = 120 * time.Second
)

// MeasurementDescriptor declares one telemetry series of a part: its name
// and the binary shape of each sample.
type MeasurementDescriptor struct {
	Name string      `bson:"name" json:"name"`
	Type codec.Shape `bson:"type" json:"type"`
}

// CommandInfo declares one command type a flight accepts, including the
// JSON schemas its payload and response must satisfy and which parts it may
// target.
type CommandInfo struct {
	Name                    string         `bson:"name" json:"name"`
	PayloadSchema           map[string]any `bson:"payload_schema,omitempty" json:"payload_schema,omitempty"`
	ResponseSchema          map[string]any `bson:"response_schema,omitempty" json:"response_schema,omitempty"`
	SupportedOnVehicleLevel bool           `bson:"supported_on_vehicle_level" json:"supported_on_vehicle_level"`
	SupportingParts         []string       `bson:"supporting_parts,omitempty" json:"supporting_parts,omitempty"`
}

// Flight is one recording session of a vessel. It pins the vessel version
// it was created against and declares, per part, the series it measures.
//
// Telemetry addresses a series by (part index, series index): the part
// index selects from MeasuredPartIDs, the series index selects from that
// part's descriptor list. The compact pair keeps topic names and binary
// report framing small.
type Flight struct {
	ID                string                             `bson:"_id" json:"id"`
	VesselID          string                             `bson:"_vessel_id" json:"vessel_id"`
	VesselVersion     int                                `bson:"_vessel_version" json:"vessel_version"`
	Name              string                             `bson:"name" json:"name"`
	Start             time.Time                          `bson:"start" json:"start"`
	End               time.Time                          `bson:"end" json:"end"`
	MeasuredPartIDs   []string                           `bson:"measured_part_ids" json:"measured_part_ids"`
	MeasuredParts     map[string][]MeasurementDescriptor `bson:"measured_parts" json:"measured_parts"`
	AvailableCommands map[string]CommandInfo             `bson:"available_commands" json:"available_commands"`
	Permissions       map[string]string                  `bson:"permissions" json:"permissions"`
	NoAuthPermission  string                             `bson:"no_auth_permission" json:"no_auth_permission"`
}

// Descriptor resolves a (part index, series index) pair to the part id and
// series descriptor it addresses. Returns ErrNotFound when either index is
// out of range for this flight.
func (f *Flight) Descriptor(partIndex, seriesIndex int) (string, *MeasurementDescriptor, error) {
	if partIndex < 0 || partIndex >= len(f.MeasuredPartIDs) {
		return "", nil, ErrNotFound
	}
	partID := f.MeasuredPartIDs[partIndex]
	series := f.MeasuredParts[partID]
	if seriesIndex < 0 || seriesIndex >= len(series) {
		return "", nil, ErrNotFound
	}
	return partID, &series[seriesIndex], nil
}

// TouchEnd extends the flight end when new telemetry arrives close to it.
// Returns true when the end was moved and the flight needs persisting.
func (f *Flight) TouchEnd(now time.Time) bool {
	if f.End.Sub(now) < MinHeadTime {
		f.End = now.Add(DefaultHeadTime)
		return true
	}
	return false
}

// CommandTarget validates that a command of the given type may target the
// given part. A nil partID targets the whole vehicle.
func (f *Flight) CommandTarget(commandType string, partID *string) error {
	info, ok := f.AvailableCommands[commandType]
	if !ok {
		return ErrInvalidPayload
	}
	if partID == nil {
		if !info.SupportedOnVehicleLevel {
			return ErrInvalidPayload
		}
		return nil
	}
	for _, p := range info.SupportingParts {
		if p == *partID {
			return nil
		}
	}
	return ErrInvalidPayload
}
