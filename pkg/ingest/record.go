// Package ingest turns raw telemetry payloads into stored measurement
// records. Live payloads from the broker pass through the buffer; archived
// telemetry arrives as bulk binary reports.
package ingest

import (
	"time"

	"github.com/avionyx/flightd/pkg/codec"
	"github.com/avionyx/flightd/pkg/models"
)

// timeFromUnix converts a float64 Unix timestamp to a time.Time.
func timeFromUnix(t float64) time.Time {
	return time.Unix(0, int64(t*float64(time.Second))).UTC()
}

// newRecord builds a measurement record from decoded samples of one
// series. Start and end times span the sample times regardless of arrival
// order. Scalar series get a min/avg/max summary, with booleans counted as
// 0 and 1; everything else carries the null triple.
func newRecord(meta models.MeasurementMeta, shape codec.Shape, samples []models.Sample) *models.MeasurementRecord {
	rec := &models.MeasurementRecord{
		Metadata:     meta,
		Measurements: samples,
	}
	if len(samples) == 0 {
		return rec
	}

	minT, maxT := samples[0].Time, samples[0].Time
	for _, s := range samples[1:] {
		if s.Time < minT {
			minT = s.Time
		}
		if s.Time > maxT {
			maxT = s.Time
		}
	}
	rec.StartTime = timeFromUnix(minT)
	rec.EndTime = timeFromUnix(maxT)

	if !shape.Numeric() {
		return rec
	}

	var sum float64
	minV, maxV := scalar(samples[0].Value), scalar(samples[0].Value)
	for _, s := range samples {
		v := scalar(s.Value)
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
		sum += v
	}
	avg := sum / float64(len(samples))
	rec.Min, rec.Avg, rec.Max = &minV, &avg, &maxV
	return rec
}

// scalar converts a decoded scalar sample value to float64 for
// aggregation.
func scalar(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// stripRaw clones records without their raw samples, for event fan-out.
func stripRaw(recs []*models.MeasurementRecord) []*models.MeasurementRecord {
	out := make([]*models.MeasurementRecord, len(recs))
	for i, r := range recs {
		clone := *r
		clone.Measurements = nil
		out[i] = &clone
	}
	return out
}
