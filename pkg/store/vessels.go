package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avionyx/flightd/internal/logger"
	"github.com/avionyx/flightd/pkg/models"
)

// VesselStore persists vessels and, in a sibling collection, snapshots of
// every superseded structural version.
type VesselStore struct {
	c        *mongo.Collection
	historic *mongo.Collection
}

var _ models.VesselStore = (*VesselStore)(nil)

// historicID keys a snapshot by vessel id and version.
type historicID struct {
	VesselID string `bson:"vessel_id"`
	Version  int    `bson:"version"`
}

type historicDoc struct {
	ID     historicID     `bson:"_id"`
	Vessel *models.Vessel `bson:"vessel"`
}

// Upsert stores the vessel. The incoming record carries the structure; the
// stored record keeps authority over version, name and permissions. A
// structural change snapshots the old state and bumps the version, so
// flights recorded against it keep resolving.
func (s *VesselStore) Upsert(ctx context.Context, v *models.Vessel) (*models.Vessel, error) {
	current, err := s.Get(ctx, v.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	if current == nil {
		v.Version = 1
		models.EnsureOwner(v)
	} else {
		v.Version = current.Version
		v.Name = current.Name
		v.Permissions = current.Permissions
		v.NoAuthPermission = current.NoAuthPermission

		if models.StructurallyEqual(current, v) {
			return current, nil
		}

		snapshot := historicDoc{
			ID:     historicID{VesselID: current.ID, Version: current.Version},
			Vessel: current,
		}
		if _, err := s.historic.ReplaceOne(ctx,
			bson.D{{Key: "_id", Value: snapshot.ID}}, snapshot,
			options.Replace().SetUpsert(true)); err != nil {
			return nil, wrapErr("snapshotting vessel", err)
		}
		v.Version = current.Version + 1
		logger.InfoCtx(ctx, "vessel structure changed",
			logger.VesselID(v.ID),
			logger.VesselVersion(v.Version))
	}

	if _, err := s.c.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: v.ID}}, v,
		options.Replace().SetUpsert(true)); err != nil {
		return nil, wrapErr("putting vessel", err)
	}
	return v, nil
}

// Replace overwrites the current state without version bookkeeping, for
// administrative changes such as renames and permission grants.
func (s *VesselStore) Replace(ctx context.Context, v *models.Vessel) error {
	res, err := s.c.ReplaceOne(ctx, bson.D{{Key: "_id", Value: v.ID}}, v)
	if err != nil {
		return wrapErr("replacing vessel", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Get returns the current state of the vessel.
func (s *VesselStore) Get(ctx context.Context, id string) (*models.Vessel, error) {
	var v models.Vessel
	err := s.c.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&v)
	if err != nil {
		return nil, wrapErr("getting vessel", err)
	}
	return &v, nil
}

// GetVersion returns the given structural version, serving the current
// state directly and older versions from the snapshot collection.
func (s *VesselStore) GetVersion(ctx context.Context, id string, version int) (*models.Vessel, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version == version {
		return current, nil
	}

	var doc historicDoc
	err = s.historic.FindOne(ctx, bson.D{
		{Key: "_id", Value: historicID{VesselID: id, Version: version}},
	}).Decode(&doc)
	if err != nil {
		return nil, wrapErr("getting vessel version", err)
	}
	return doc.Vessel, nil
}

// List returns every vessel.
func (s *VesselStore) List(ctx context.Context) ([]*models.Vessel, error) {
	return s.find(ctx, bson.D{})
}

// ListByName returns vessels with the given display name.
func (s *VesselStore) ListByName(ctx context.Context, name string) ([]*models.Vessel, error) {
	return s.find(ctx, bson.D{{Key: "name", Value: name}})
}

func (s *VesselStore) find(ctx context.Context, filter bson.D) ([]*models.Vessel, error) {
	cur, err := s.c.Find(ctx, filter)
	if err != nil {
		return nil, wrapErr("listing vessels", err)
	}
	var vessels []*models.Vessel
	if err := cur.All(ctx, &vessels); err != nil {
		return nil, wrapErr("listing vessels", err)
	}
	return vessels, nil
}

// Delete removes the vessel and its historic versions, reporting whether
// the vessel row existed. Dependent flight data is cascaded by the caller.
func (s *VesselStore) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := s.historic.DeleteMany(ctx,
		bson.D{{Key: "_id.vessel_id", Value: id}}); err != nil {
		return false, wrapErr("deleting vessel history", err)
	}
	res, err := s.c.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return false, wrapErr("deleting vessel", err)
	}
	return res.DeletedCount > 0, nil
}
