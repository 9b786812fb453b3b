package load

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-warehouse/pkg/dimension"
	"github.com/authzed/connector-warehouse/pkg/errdefs"
	"github.com/authzed/connector-warehouse/pkg/metrics"
	"github.com/authzed/connector-warehouse/pkg/trip"
	"github.com/authzed/connector-warehouse/pkg/warehouse"
)

// VesselResolver finds the vessel (and the carrier owning it) for a trip
type VesselResolver interface {
	ResolveVessel(ctx context.Context, s warehouse.Store, t *trip.Trip) (vessel, carrier int64, err error)
}

// Preparer is implemented by vessel resolvers that need rows in place before
// the first trip is loaded
type Preparer interface {
	Prepare(ctx context.Context, s warehouse.Store) error
}

// ReferentialVessels resolves the carrier and vessel carried on each trip,
// creating them if needed. It serves feeds with full vessel data.
type ReferentialVessels struct {
	dims *dimension.Dimensions
}

var _ VesselResolver = &ReferentialVessels{}

// NewReferentialVessels returns a resolver creating carriers and vessels
func NewReferentialVessels(dims *dimension.Dimensions) *ReferentialVessels {
	return &ReferentialVessels{dims: dims}
}

// ResolveVessel resolves the trip's carrier first, then its vessel
func (r *ReferentialVessels) ResolveVessel(ctx context.Context, s warehouse.Store, t *trip.Trip) (int64, int64, error) {
	if t.Vessel == nil || t.Carrier == nil {
		return 0, 0, errdefs.Validation(t.ID, "vessel", errors.New("trip carries no vessel or carrier data"))
	}
	carrier, err := r.dims.Carrier(ctx, s, *t.Carrier)
	if err != nil {
		return 0, 0, err
	}
	vessel, err := r.dims.Vessel(ctx, s, *t.Vessel, carrier)
	if err != nil {
		return 0, 0, err
	}
	return vessel, carrier, nil
}

// Sentinel defaults used when a flat-file vessel isn't in the directory
var (
	DefaultUnknownCarrier = trip.Carrier{Name: "unknown", Country: "unknown"}
	DefaultUnknownVessel  = trip.Vessel{Name: "unknown", Size: "unknown", Type: "unknown"}
)

// DirectoryVessels looks trips' vessels up by name among the vessels already
// in the warehouse (the vessel directory). Trips whose vessel isn't found are
// attributed to a sentinel vessel owned by a sentinel carrier.
//
// Prepare must be called, and its transaction committed, before
// ResolveVessel.
type DirectoryVessels struct {
	dims           *dimension.Dimensions
	unknownCarrier trip.Carrier
	unknownVessel  trip.Vessel
	require        bool

	sentinelCarrier int64
	sentinelVessel  int64
}

var (
	_ VesselResolver = &DirectoryVessels{}
	_ Preparer       = &DirectoryVessels{}
)

// NewDirectoryVessels returns a directory resolver. If requireDirectory is
// set, Prepare fails when the directory holds no vessels besides the sentinel.
func NewDirectoryVessels(dims *dimension.Dimensions, unknownCarrier trip.Carrier, unknownVessel trip.Vessel, requireDirectory bool) *DirectoryVessels {
	return &DirectoryVessels{
		dims:           dims,
		unknownCarrier: unknownCarrier,
		unknownVessel:  unknownVessel,
		require:        requireDirectory,
	}
}

// Prepare provisions the sentinel carrier and vessel and checks that the
// vessel directory isn't empty
func (d *DirectoryVessels) Prepare(ctx context.Context, s warehouse.Store) error {
	carrier, err := d.dims.Carrier(ctx, s, d.unknownCarrier)
	if err != nil {
		return fmt.Errorf("provisioning sentinel carrier: %w", err)
	}
	vessel, err := d.dims.Vessel(ctx, s, d.unknownVessel, carrier)
	if err != nil {
		return fmt.Errorf("provisioning sentinel vessel: %w", err)
	}
	d.sentinelCarrier, d.sentinelVessel = carrier, vessel

	n, err := s.Count(ctx, warehouse.VesselTable)
	if err != nil {
		return errdefs.Storage("count vessels", err)
	}
	log.Info().Int64("vessels", n-1).Int64("sentinelVessel", vessel).Int64("sentinelCarrier", carrier).Msg("vessel directory ready")
	if n > 1 {
		return nil
	}
	if d.require {
		return errdefs.Configuration("vessel directory is empty: load the relational feed first")
	}
	log.Warn().Msg("vessel directory is empty, every flat-file trip will use the unknown vessel")
	return nil
}

// ResolveVessel returns the lowest-keyed vessel with the trip's vessel name
// and its carrier, or the sentinel pair if there is none
func (d *DirectoryVessels) ResolveVessel(ctx context.Context, s warehouse.Store, t *trip.Trip) (int64, int64, error) {
	if d.sentinelVessel <= 0 {
		return 0, 0, fmt.Errorf("%w: sentinel vessel not provisioned", errdefs.ErrDependencyUnresolved)
	}
	name := warehouse.Columns{{Name: warehouse.ColName, Value: t.VesselName}}

	vessel, ok, err := s.Lookup(ctx, warehouse.VesselTable, name, warehouse.VesselTable.Key)
	if err != nil {
		return 0, 0, errdefs.Storage("lookup vessel", err)
	}
	if !ok {
		metrics.SentinelFallbackTotal.Inc()
		log.Debug().Str("trip", t.ID).Str("vessel", t.VesselName).Msg("vessel not in directory, using unknown vessel")
		return d.sentinelVessel, d.sentinelCarrier, nil
	}

	carrier, ok, err := s.Lookup(ctx, warehouse.VesselTable, name, warehouse.ColCarrier)
	if err != nil {
		return 0, 0, errdefs.Storage("lookup vessel carrier", err)
	}
	if !ok {
		// the vessel row vanished between lookups
		return d.sentinelVessel, d.sentinelCarrier, nil
	}
	return vessel, carrier, nil
}
