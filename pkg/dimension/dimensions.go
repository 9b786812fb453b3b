package dimension

import (
	"context"
	"fmt"
	"time"

	"github.com/authzed/connector-warehouse/pkg/derive"
	"github.com/authzed/connector-warehouse/pkg/errdefs"
	"github.com/authzed/connector-warehouse/pkg/trip"
	"github.com/authzed/connector-warehouse/pkg/warehouse"
)

// Dimensions resolves each dimension of the trip warehouse through a shared
// Resolver
type Dimensions struct {
	*Resolver
}

// New returns the trip warehouse dimensions using policy for new keys
func New(policy KeyPolicy) *Dimensions {
	return &Dimensions{Resolver: NewResolver(policy)}
}

// Time resolves the calendar date of day
func (d *Dimensions) Time(ctx context.Context, s warehouse.Store, day time.Time) (int64, error) {
	day = derive.Date(day)
	cal := derive.DecomposeDate(day)
	key, _, err := d.ResolveOrCreate(ctx, s, warehouse.TimeTable,
		warehouse.Columns{{Name: warehouse.ColDate, Value: day}},
		warehouse.Columns{
			{Name: warehouse.ColYear, Value: cal.Year},
			{Name: warehouse.ColMonth, Value: cal.Month},
			{Name: warehouse.ColHalf, Value: cal.Half},
			{Name: warehouse.ColQuarter, Value: cal.Quarter},
		})
	return key, err
}

// Location resolves a country and city
func (d *Dimensions) Location(ctx context.Context, s warehouse.Store, l trip.Location) (int64, error) {
	key, _, err := d.ResolveOrCreate(ctx, s, warehouse.LocationTable,
		warehouse.Columns{
			{Name: warehouse.ColCountry, Value: l.Country},
			{Name: warehouse.ColCity, Value: l.City},
		}, nil)
	return key, err
}

// Driver resolves a driver by name and certification. Age is stored when the
// row is created and never updated.
func (d *Dimensions) Driver(ctx context.Context, s warehouse.Store, dr trip.Driver) (int64, error) {
	key, _, err := d.ResolveOrCreate(ctx, s, warehouse.DriverTable,
		warehouse.Columns{
			{Name: warehouse.ColName, Value: dr.Name},
			{Name: warehouse.ColCertification, Value: dr.Certification},
		},
		warehouse.Columns{{Name: warehouse.ColAge, Value: dr.Age}})
	return key, err
}

// TripType resolves a trip type label
func (d *Dimensions) TripType(ctx context.Context, s warehouse.Store, label string) (int64, error) {
	key, _, err := d.ResolveOrCreate(ctx, s, warehouse.TripTypeTable,
		warehouse.Columns{{Name: warehouse.ColTripType, Value: label}}, nil)
	return key, err
}

// DurationClass resolves the class a duration in days falls into
func (d *Dimensions) DurationClass(ctx context.Context, s warehouse.Store, days int) (int64, error) {
	class, err := derive.ClassifyDuration(days)
	if err != nil {
		return 0, err
	}
	key, _, err := d.ResolveOrCreate(ctx, s, warehouse.DurationClassTable,
		warehouse.Columns{{Name: warehouse.ColDurationClass, Value: class}}, nil)
	return key, err
}

// Carrier resolves a vessel-owning company
func (d *Dimensions) Carrier(ctx context.Context, s warehouse.Store, c trip.Carrier) (int64, error) {
	key, _, err := d.ResolveOrCreate(ctx, s, warehouse.CarrierTable,
		warehouse.Columns{
			{Name: warehouse.ColName, Value: c.Name},
			{Name: warehouse.ColCountry, Value: c.Country},
		}, nil)
	return key, err
}

// Vessel resolves a vessel owned by the carrier with surrogate key carrierKey.
// The carrier must have been resolved first.
func (d *Dimensions) Vessel(ctx context.Context, s warehouse.Store, v trip.Vessel, carrierKey int64) (int64, error) {
	if carrierKey <= 0 {
		return 0, fmt.Errorf("%w: vessel %q needs a carrier key, got %d", errdefs.ErrDependencyUnresolved, v.Name, carrierKey)
	}
	key, _, err := d.ResolveOrCreate(ctx, s, warehouse.VesselTable,
		warehouse.Columns{
			{Name: warehouse.ColName, Value: v.Name},
			{Name: warehouse.ColSize, Value: v.Size},
		},
		warehouse.Columns{
			{Name: warehouse.ColType, Value: v.Type},
			{Name: warehouse.ColCapacity, Value: v.Capacity},
			{Name: warehouse.ColCarrier, Value: carrierKey},
		})
	return key, err
}
