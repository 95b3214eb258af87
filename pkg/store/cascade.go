package store

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/avionyx/flightd/internal/logger"
)

// DeleteVesselCascade removes a vessel together with everything recorded
// against it: flights, their telemetry, their commands and the vessel's
// historic versions. Returns whether the vessel row itself existed.
func (s *Store) DeleteVesselCascade(ctx context.Context, vesselID string) (bool, error) {
	flightIDs, err := s.Flights.DeleteByVessel(ctx, vesselID)
	if err != nil {
		return false, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Measurements.DeleteByFlights(gctx, flightIDs) })
	g.Go(func() error { return s.Commands.DeleteByFlights(gctx, flightIDs) })

	var deleted bool
	g.Go(func() error {
		var err error
		deleted, err = s.Vessels.Delete(gctx, vesselID)
		return err
	})

	if err := g.Wait(); err != nil {
		return false, err
	}

	logger.InfoCtx(ctx, "vessel deleted",
		logger.VesselID(vesselID),
		logger.Records(len(flightIDs)))
	return deleted, nil
}

// DeleteFlightCascade removes a flight together with its telemetry and
// commands. Returns whether the flight row existed.
func (s *Store) DeleteFlightCascade(ctx context.Context, flightID string) (bool, error) {
	deleted, err := s.Flights.Delete(ctx, flightID)
	if err != nil {
		return false, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Measurements.DeleteByFlights(gctx, []string{flightID}) })
	g.Go(func() error { return s.Commands.DeleteByFlights(gctx, []string{flightID}) })
	if err := g.Wait(); err != nil {
		return false, err
	}

	logger.InfoCtx(ctx, "flight deleted", logger.FlightID(flightID))
	return deleted, nil
}
