// Package store implements the persistence layer on MongoDB. Telemetry
// batches land in a time-series collection; everything else uses regular
// collections with the indexes the query paths need.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avionyx/flightd/internal/logger"
)

// Collection names.
const (
	collUsers           = "users"
	collAuthCodes       = "auth_codes"
	collVessels         = "vessels"
	collVesselsHistoric = "vessels_historic"
	collFlights         = "flights"
	collFlightData      = "flight_data"
	collCommands        = "commands"
)

// resultLimit caps every range and aggregation query. Clients page by
// narrowing the time window.
const resultLimit = 1000

// Config holds the MongoDB connection settings.
type Config struct {
	// URI is the MongoDB connection string.
	URI string `mapstructure:"uri" validate:"required" yaml:"uri"`

	// Database is the database name.
	Database string `mapstructure:"database" validate:"required" yaml:"database"`

	// ConnectTimeout bounds the initial connect and ping.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// Store bundles the per-entity stores over one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	Users        *UserStore
	AuthCodes    *AuthCodeStore
	Vessels      *VesselStore
	Flights      *FlightStore
	Measurements *MeasurementStore
	Commands     *CommandStore
}

// Connect establishes the MongoDB connection, ensures collections and
// indexes exist and returns the ready store.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:       client,
		db:           db,
		Users:        &UserStore{c: db.Collection(collUsers)},
		AuthCodes:    &AuthCodeStore{c: db.Collection(collAuthCodes)},
		Vessels:      &VesselStore{c: db.Collection(collVessels), historic: db.Collection(collVesselsHistoric)},
		Flights:      &FlightStore{c: db.Collection(collFlights)},
		Measurements: &MeasurementStore{c: db.Collection(collFlightData)},
		Commands:     &CommandStore{c: db.Collection(collCommands)},
	}

	if err := s.ensureCollections(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.InfoCtx(ctx, "connected to mongodb",
		logger.Collection(cfg.Database))
	return s, nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies the database is still reachable. Used by the readiness
// probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// ensureCollections creates the time-series collection and the indexes the
// query paths rely on. Everything here is idempotent.
func (s *Store) ensureCollections(ctx context.Context) error {
	names, err := s.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: collFlightData}})
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}
	if len(names) == 0 {
		tsOpts := options.CreateCollection().SetTimeSeriesOptions(
			options.TimeSeries().
				SetTimeField("start_time").
				SetMetaField("metadata").
				SetGranularity("seconds"))
		if err := s.db.CreateCollection(ctx, collFlightData, tsOpts); err != nil {
			return fmt.Errorf("creating time-series collection: %w", err)
		}
	}

	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.Users.c, mongo.IndexModel{
			Keys:    bson.D{{Key: "unique_name", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.AuthCodes.c, mongo.IndexModel{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		}},
		{s.Vessels.c, mongo.IndexModel{
			Keys: bson.D{{Key: "name", Value: 1}},
		}},
		{s.Flights.c, mongo.IndexModel{
			Keys: bson.D{{Key: "_vessel_id", Value: 1}},
		}},
		{s.Measurements.c, mongo.IndexModel{
			Keys: bson.D{
				{Key: "metadata.flight_id", Value: -1},
				{Key: "metadata.part_index", Value: 1},
				{Key: "metadata.series_index", Value: 1},
			},
		}},
		{s.Commands.c, mongo.IndexModel{
			Keys: bson.D{
				{Key: "flight_id", Value: 1},
				{Key: "create_time", Value: 1},
			},
		}},
	}
	for _, ix := range indexes {
		if _, err := ix.coll.Indexes().CreateOne(ctx, ix.model); err != nil {
			return fmt.Errorf("creating index on %s: %w", ix.coll.Name(), err)
		}
	}
	return nil
}
