package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avionyx/flightd/pkg/models"
)

// MeasurementStore persists decoded telemetry batches in the time-series
// collection.
type MeasurementStore struct {
	c *mongo.Collection
}

var _ models.MeasurementStore = (*MeasurementStore)(nil)

// InsertBatch stores a set of records in one insert.
func (s *MeasurementStore) InsertBatch(ctx context.Context, recs []*models.MeasurementRecord) error {
	if len(recs) == 0 {
		return nil
	}
	docs := make([]any, len(recs))
	for i, r := range recs {
		docs[i] = r
	}
	_, err := s.c.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return wrapErr("inserting measurements", err)
}

func seriesFilter(flightID string, partIndex, seriesIndex int, start, end time.Time) bson.D {
	return bson.D{
		{Key: "metadata.flight_id", Value: flightID},
		{Key: "metadata.part_index", Value: partIndex},
		{Key: "metadata.series_index", Value: seriesIndex},
		{Key: "start_time", Value: bson.D{
			{Key: "$gte", Value: start},
			{Key: "$lt", Value: end},
		}},
	}
}

// Range returns raw records of one series in [start, end), oldest first,
// capped at the result limit.
func (s *MeasurementStore) Range(ctx context.Context, flightID string, partIndex, seriesIndex int, start, end time.Time) ([]*models.MeasurementRecord, error) {
	cur, err := s.c.Find(ctx,
		seriesFilter(flightID, partIndex, seriesIndex, start, end),
		options.Find().
			SetSort(bson.D{{Key: "start_time", Value: 1}}).
			SetLimit(resultLimit))
	if err != nil {
		return nil, wrapErr("querying measurements", err)
	}
	var recs []*models.MeasurementRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, wrapErr("querying measurements", err)
	}
	return recs, nil
}

// dateParts returns the $dateToParts components a resolution retains in
// its bucket key, finest last.
func dateParts(res models.Resolution) []string {
	all := []string{"year", "month", "day", "hour", "minute", "second"}
	switch res {
	case models.ResolutionMonth:
		return all[:2]
	case models.ResolutionDay:
		return all[:3]
	case models.ResolutionHour:
		return all[:4]
	case models.ResolutionMinute:
		return all[:5]
	default:
		return all
	}
}

// Aggregate buckets one series over [start, end) at the given resolution.
// Batch summaries fold across buckets (min of mins, mean of means, max of
// maxes); each bucket also carries the earliest and latest raw sample so
// plots can anchor lines exactly.
func (s *MeasurementStore) Aggregate(ctx context.Context, flightID string, partIndex, seriesIndex int, start, end time.Time, res models.Resolution) ([]*models.AggregatedRecord, error) {
	if !res.Valid() {
		return nil, fmt.Errorf("%w: unknown resolution %q", models.ErrInvalidInput, res)
	}

	cur, err := s.c.Aggregate(ctx, aggregatePipeline(flightID, partIndex, seriesIndex, start, end, res))
	if err != nil {
		return nil, wrapErr("aggregating measurements", err)
	}
	var recs []*models.AggregatedRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, wrapErr("aggregating measurements", err)
	}
	return recs, nil
}

// aggregatePipeline builds the rollup pipeline: bucket batches by the
// date parts the resolution retains, fold the summaries (min of mins,
// mean of means, max of maxes), keep the earliest and latest raw sample
// per bucket, cap the result.
func aggregatePipeline(flightID string, partIndex, seriesIndex int, start, end time.Time, res models.Resolution) mongo.Pipeline {
	groupID := bson.D{}
	for _, part := range dateParts(res) {
		groupID = append(groupID, bson.E{Key: part, Value: "$parts." + part})
	}
	if res == models.ResolutionDecisecond {
		groupID = append(groupID, bson.E{Key: "decisecond", Value: bson.D{
			{Key: "$floor", Value: bson.D{
				{Key: "$divide", Value: bson.A{"$parts.millisecond", 100}},
			}},
		}})
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: seriesFilter(flightID, partIndex, seriesIndex, start, end)}},
		{{Key: "$sort", Value: bson.D{{Key: "start_time", Value: 1}}}},
		{{Key: "$project", Value: bson.D{
			{Key: "parts", Value: bson.D{
				{Key: "$dateToParts", Value: bson.D{{Key: "date", Value: "$start_time"}}},
			}},
			{Key: "start_time", Value: 1},
			{Key: "min", Value: 1},
			{Key: "avg", Value: 1},
			{Key: "max", Value: 1},
			{Key: "measurements", Value: 1},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: groupID},
			{Key: "start_time", Value: bson.D{{Key: "$min", Value: "$start_time"}}},
			{Key: "end_time", Value: bson.D{{Key: "$max", Value: "$start_time"}}},
			{Key: "min", Value: bson.D{{Key: "$min", Value: "$min"}}},
			{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$avg"}}},
			{Key: "max", Value: bson.D{{Key: "$max", Value: "$max"}}},
			{Key: "first", Value: bson.D{{Key: "$first", Value: bson.D{
				{Key: "$arrayElemAt", Value: bson.A{"$measurements", 0}},
			}}}},
			{Key: "last", Value: bson.D{{Key: "$last", Value: bson.D{
				{Key: "$arrayElemAt", Value: bson.A{"$measurements", -1}},
			}}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "start_time", Value: 1}}}},
		{{Key: "$limit", Value: resultLimit}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "start_time", Value: 1},
			{Key: "end_time", Value: 1},
			{Key: "min", Value: 1},
			{Key: "avg", Value: 1},
			{Key: "max", Value: 1},
			{Key: "first", Value: 1},
			{Key: "last", Value: 1},
		}}},
	}
}

// DeleteByFlights removes all telemetry of the given flights. The filter
// only touches the metadata field, which time-series deletes require.
func (s *MeasurementStore) DeleteByFlights(ctx context.Context, flightIDs []string) error {
	if len(flightIDs) == 0 {
		return nil
	}
	_, err := s.c.DeleteMany(ctx, bson.D{
		{Key: "metadata.flight_id", Value: bson.D{{Key: "$in", Value: flightIDs}}},
	})
	return wrapErr("deleting measurements", err)
}
