package models

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Sample is one decoded telemetry sample: the sample time as a float64 Unix
// timestamp and the decoded value. On the wire and in storage a sample is
// the two-element array [time, value].
type Sample struct {
	Time  float64
	Value any
}

// MarshalJSON implements json.Marshaler.
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Time, s.Value})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil || len(pair) != 2 {
		return fmt.Errorf("sample must be a [time, value] pair")
	}
	if err := json.Unmarshal(pair[0], &s.Time); err != nil {
		return fmt.Errorf("sample time: %w", err)
	}
	return json.Unmarshal(pair[1], &s.Value)
}

// MarshalBSONValue implements bson.ValueMarshaler.
func (s Sample) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue([]any{s.Time, s.Value})
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (s *Sample) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	if t != bson.TypeArray {
		return fmt.Errorf("sample must be a [time, value] pair")
	}
	pair, err := raw.Array().Values()
	if err != nil || len(pair) != 2 {
		return fmt.Errorf("sample must be a [time, value] pair")
	}
	if err := pair[0].Unmarshal(&s.Time); err != nil {
		return fmt.Errorf("sample time: %w", err)
	}
	return pair[1].Unmarshal(&s.Value)
}

// MeasurementMeta addresses the series a record belongs to. It lives in the
// time-series metadata field, so records of one series cluster together.
type MeasurementMeta struct {
	FlightID    string `bson:"flight_id" json:"flight_id"`
	PartIndex   int    `bson:"part_index" json:"part_index"`
	SeriesIndex int    `bson:"series_index" json:"series_index"`
}

// MeasurementRecord is one stored batch of samples from a single series,
// covering [StartTime, EndTime]. Min, Avg and Max summarize scalar series
// over the batch; non-scalar series carry the null triple.
type MeasurementRecord struct {
	Metadata     MeasurementMeta `bson:"metadata" json:"metadata"`
	StartTime    time.Time       `bson:"start_time" json:"start_time"`
	EndTime      time.Time       `bson:"end_time" json:"end_time"`
	Measurements []Sample        `bson:"measurements" json:"measurements"`
	Min          *float64        `bson:"min" json:"min"`
	Avg          *float64        `bson:"avg" json:"avg"`
	Max          *float64        `bson:"max" json:"max"`
}

// Resolution selects the bucket width of an aggregation query.
type Resolution string

const (
	ResolutionDecisecond Resolution = "decisecond"
	ResolutionSecond     Resolution = "second"
	ResolutionMinute     Resolution = "minute"
	ResolutionHour       Resolution = "hour"
	ResolutionDay        Resolution = "day"
	ResolutionMonth      Resolution = "month"
)

// Valid reports whether the resolution is one of the supported widths.
func (r Resolution) Valid() bool {
	switch r {
	case ResolutionDecisecond, ResolutionSecond, ResolutionMinute,
		ResolutionHour, ResolutionDay, ResolutionMonth:
		return true
	}
	return false
}

// AggregatedRecord is one bucket of an aggregation query: the summary
// triple over the bucket plus the earliest and latest raw samples in it.
// EndTime is the start time of the newest batch folded into the bucket.
type AggregatedRecord struct {
	StartTime time.Time `bson:"start_time" json:"start_time"`
	EndTime   time.Time `bson:"end_time" json:"end_time"`
	Min       *float64  `bson:"min" json:"min"`
	Avg       *float64  `bson:"avg" json:"avg"`
	Max       *float64  `bson:"max" json:"max"`
	First     *Sample   `bson:"first" json:"first"`
	Last      *Sample   `bson:"last" json:"last"`
}
