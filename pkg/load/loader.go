// Package load turns trips into warehouse rows: it resolves every dimension a
// trip references and writes its fact row, in batches.
package load

import (
	"context"

	"github.com/authzed/connector-warehouse/pkg/dimension"
	"github.com/authzed/connector-warehouse/pkg/trip"
	"github.com/authzed/connector-warehouse/pkg/warehouse"
)

// Loader resolves the dimensions of one trip at a time and writes its fact
// row
type Loader struct {
	dims    *dimension.Dimensions
	vessels VesselResolver
}

// NewLoader returns a loader resolving vessels with vessels
func NewLoader(dims *dimension.Dimensions, vessels VesselResolver) *Loader {
	return &Loader{dims: dims, vessels: vessels}
}

// Keys are the surrogate keys a fact row references
type Keys struct {
	Carrier       int64
	Vessel        int64
	Location      int64
	TripType      int64
	Time          int64
	DurationClass int64
	Driver        int64
}

// Load writes t into s. It returns the fact key and whether the fact row is
// new; loading a trip that is already in the warehouse changes nothing.
func (l *Loader) Load(ctx context.Context, s warehouse.Store, t *trip.Trip) (int64, bool, error) {
	if err := t.Validate(); err != nil {
		return 0, false, err
	}

	var (
		k   Keys
		err error
	)
	if k.Vessel, k.Carrier, err = l.vessels.ResolveVessel(ctx, s, t); err != nil {
		return 0, false, err
	}
	if k.Location, err = l.dims.Location(ctx, s, t.Origin); err != nil {
		return 0, false, err
	}
	if k.TripType, err = l.dims.TripType(ctx, s, t.TripType); err != nil {
		return 0, false, err
	}
	if k.Time, err = l.dims.Time(ctx, s, t.Arrival); err != nil {
		return 0, false, err
	}
	days := t.DurationDays()
	if k.DurationClass, err = l.dims.DurationClass(ctx, s, days); err != nil {
		return 0, false, err
	}
	if k.Driver, err = l.dims.Driver(ctx, s, t.Driver); err != nil {
		return 0, false, err
	}

	return l.dims.ResolveOrCreate(ctx, s, warehouse.TripFactTable,
		warehouse.Columns{
			{Name: warehouse.ColFeed, Value: string(t.Feed)},
			{Name: warehouse.ColSourceTripID, Value: t.ID},
		},
		warehouse.Columns{
			{Name: warehouse.ColDuration, Value: days},
			{Name: warehouse.ColFees, Value: t.Fees},
			{Name: warehouse.ColContainers, Value: t.Containers},
			{Name: warehouse.ColCargoWeight, Value: t.CargoWeight},
			{Name: warehouse.ColTEU, Value: t.TEU},
			{Name: warehouse.ColDurationClsFK, Value: k.DurationClass},
			{Name: warehouse.ColLocationFK, Value: k.Location},
			{Name: warehouse.ColTripTypeFK, Value: k.TripType},
			{Name: warehouse.ColDriverFK, Value: k.Driver},
			{Name: warehouse.ColVesselFK, Value: k.Vessel},
			{Name: warehouse.ColTimeFK, Value: k.Time},
		})
}
