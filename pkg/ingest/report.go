package ingest

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/avionyx/flightd/pkg/codec"
	"github.com/avionyx/flightd/pkg/events"
	"github.com/avionyx/flightd/pkg/models"
)

// ParseReport decodes a bulk binary telemetry report into measurement
// records, one per series that carried samples.
//
// A report is a sequence of blocks, read until the data runs out:
//
//	uint8  part index
//	uint16 sample count
//	count x sample
//
// where each sample is a float64 Unix timestamp followed by the values of
// every series of that part, in declaration order. All numbers are
// big-endian; variable-length values are length-prefixed.
func ParseReport(flight *models.Flight, data []byte) ([]*models.MeasurementRecord, error) {
	type seriesKey struct{ part, series int }
	samples := make(map[seriesKey][]models.Sample)
	order := make([]seriesKey, 0)

	off := 0
	for off < len(data) {
		if off+3 > len(data) {
			return nil, fmt.Errorf("%w: truncated block header", models.ErrInvalidInput)
		}
		partIndex := int(data[off])
		count := int(binary.BigEndian.Uint16(data[off+1:]))
		off += 3

		if partIndex >= len(flight.MeasuredPartIDs) {
			return nil, fmt.Errorf("%w: unknown part index %d", models.ErrInvalidInput, partIndex)
		}
		series := flight.MeasuredParts[flight.MeasuredPartIDs[partIndex]]

		for i := 0; i < count; i++ {
			if off+8 > len(data) {
				return nil, fmt.Errorf("%w: truncated sample timestamp", models.ErrInvalidInput)
			}
			t := math.Float64frombits(binary.BigEndian.Uint64(data[off:]))
			off += 8

			for seriesIndex := range series {
				v, next, err := codec.DecodeValue(series[seriesIndex].Type, data, off)
				if err != nil {
					return nil, fmt.Errorf("%w: part %d series %d: %v",
						models.ErrInvalidInput, partIndex, seriesIndex, err)
				}
				off = next

				key := seriesKey{partIndex, seriesIndex}
				if _, seen := samples[key]; !seen {
					order = append(order, key)
				}
				samples[key] = append(samples[key], models.Sample{Time: t, Value: v})
			}
		}
	}

	recs := make([]*models.MeasurementRecord, 0, len(order))
	for _, key := range order {
		desc := flight.MeasuredParts[flight.MeasuredPartIDs[key.part]][key.series]
		recs = append(recs, newRecord(models.MeasurementMeta{
			FlightID:    flight.ID,
			PartIndex:   key.part,
			SeriesIndex: key.series,
		}, desc.Type, samples[key]))
	}
	return recs, nil
}

// StoreReport parses a bulk binary report and persists it the way a buffer
// flush would: the flight's end is extended when its head time runs low,
// the records land in one batch, and a compact flight-data event is
// published. Returns the number of stored records.
func StoreReport(ctx context.Context, flights models.FlightStore, measurements models.MeasurementStore, bus *events.Bus, flight *models.Flight, data []byte) (int, error) {
	recs, err := ParseReport(flight, data)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}

	if flight.TouchEnd(time.Now()) {
		if _, err := flights.Upsert(ctx, flight); err != nil {
			return 0, err
		}
		bus.Publish(events.Event{
			Type:     events.TypeFlightUpdate,
			FlightID: flight.ID,
			Flight:   flight,
		})
	}

	if err := measurements.InsertBatch(ctx, recs); err != nil {
		return 0, err
	}

	bus.Publish(events.Event{
		Type:     events.TypeFlightData,
		FlightID: flight.ID,
		Records:  stripRaw(recs),
	})
	return len(recs), nil
}
