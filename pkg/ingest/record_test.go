package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avionyx/flightd/pkg/codec"
	"github.com/avionyx/flightd/pkg/models"
)

var testMeta = models.MeasurementMeta{FlightID: "flight-1", PartIndex: 0, SeriesIndex: 0}

func TestNewRecordScalarAggregates(t *testing.T) {
	rec := newRecord(testMeta, codec.Struct("f"), []models.Sample{
		{Time: 10, Value: 4.0},
		{Time: 11, Value: 2.0},
		{Time: 12, Value: 6.0},
	})

	require.NotNil(t, rec.Min)
	assert.Equal(t, 2.0, *rec.Min)
	assert.Equal(t, 4.0, *rec.Avg)
	assert.Equal(t, 6.0, *rec.Max)
	assert.Equal(t, time.Unix(10, 0).UTC(), rec.StartTime)
	assert.Equal(t, time.Unix(12, 0).UTC(), rec.EndTime)
}

func TestNewRecordUnorderedTimes(t *testing.T) {
	rec := newRecord(testMeta, codec.Struct("d"), []models.Sample{
		{Time: 12.5, Value: 1.0},
		{Time: 10.25, Value: 1.0},
		{Time: 11, Value: 1.0},
	})

	assert.Equal(t, timeFromUnix(10.25), rec.StartTime)
	assert.Equal(t, timeFromUnix(12.5), rec.EndTime)
}

func TestNewRecordBoolCountsAsZeroOne(t *testing.T) {
	rec := newRecord(testMeta, codec.Struct("?"), []models.Sample{
		{Time: 1, Value: true},
		{Time: 2, Value: false},
		{Time: 3, Value: true},
		{Time: 4, Value: true},
	})

	require.NotNil(t, rec.Avg)
	assert.Equal(t, 0.0, *rec.Min)
	assert.Equal(t, 0.75, *rec.Avg)
	assert.Equal(t, 1.0, *rec.Max)
}

func TestNewRecordNonScalarHasNullTriple(t *testing.T) {
	rec := newRecord(testMeta, codec.Struct("ddd"), []models.Sample{
		{Time: 1, Value: []any{1.0, 2.0, 3.0}},
	})

	assert.Nil(t, rec.Min)
	assert.Nil(t, rec.Avg)
	assert.Nil(t, rec.Max)
	assert.Equal(t, time.Unix(1, 0).UTC(), rec.StartTime)
	assert.Equal(t, time.Unix(1, 0).UTC(), rec.EndTime)
}

func TestNewRecordIntegerSamples(t *testing.T) {
	rec := newRecord(testMeta, codec.Struct("h"), []models.Sample{
		{Time: 1, Value: int64(-4)},
		{Time: 2, Value: int64(10)},
	})

	assert.Equal(t, -4.0, *rec.Min)
	assert.Equal(t, 3.0, *rec.Avg)
	assert.Equal(t, 10.0, *rec.Max)
}

func TestStripRaw(t *testing.T) {
	v := 1.0
	recs := []*models.MeasurementRecord{{
		Metadata:     testMeta,
		Measurements: []models.Sample{{Time: 1, Value: 1.0}},
		Min:          &v,
	}}

	stripped := stripRaw(recs)
	assert.Nil(t, stripped[0].Measurements)
	assert.Equal(t, &v, stripped[0].Min)
	// The originals keep their samples.
	assert.Len(t, recs[0].Measurements, 1)
}
