package trip

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/authzed/connector-warehouse/pkg/derive"
	"github.com/authzed/connector-warehouse/pkg/errdefs"
)

// Feed names the source a trip was read from. It is stored on the fact row
// together with the source trip id.
type Feed string

const (
	FeedRelational Feed = "relational"
	FeedFlatFile   Feed = "flatfile"
)

// Location is a country and city pair
type Location struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

// Driver is the person in command of a trip
type Driver struct {
	Name          string `json:"name"`
	Age           int    `json:"age"`
	Certification string `json:"certification"`
}

// Carrier is the company owning a vessel
type Carrier struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

// Vessel is a boat, identified by name and size
type Vessel struct {
	Name     string `json:"name"`
	Size     string `json:"size"`
	Type     string `json:"type"`
	Capacity int    `json:"capacity"`
}

// Trip is one completed journey as read from a feed, before any surrogate keys
// are resolved.
type Trip struct {
	Feed Feed
	// ID is the trip identifier in the source system
	ID string

	Departure time.Time
	Arrival   time.Time
	TripType  string
	Origin    Location
	Driver    Driver

	// VesselName is always set. Vessel and Carrier are nil when the feed does
	// not carry referential data.
	VesselName string
	Vessel     *Vessel
	Carrier    *Carrier

	Fees        decimal.Decimal
	Containers  int64
	CargoWeight decimal.Decimal
	TEU         decimal.Decimal
}

// DurationDays is the length of the trip in days
func (t *Trip) DurationDays() int {
	return derive.DurationDays(t.Departure, t.Arrival)
}

// Validate checks the fields every load path depends on
func (t *Trip) Validate() error {
	if t.ID == "" {
		return errdefs.Validation(t.ID, "id", errors.New("missing trip id"))
	}
	if t.Departure.IsZero() {
		return errdefs.Validation(t.ID, "departure", errors.New("missing departure date"))
	}
	if t.Arrival.IsZero() {
		return errdefs.Validation(t.ID, "arrival", errors.New("missing arrival date"))
	}
	if t.DurationDays() < 0 {
		return errdefs.Validation(t.ID, "arrival", derive.ErrNegativeDuration)
	}
	if t.VesselName == "" && t.Vessel == nil {
		return errdefs.Validation(t.ID, "vessel", errors.New("missing vessel"))
	}
	return nil
}

// MarshalZerologObject satisfies the zerolog.LogObjectMarshaler interface
func (t *Trip) MarshalZerologObject(e *zerolog.Event) {
	e.Str("feed", string(t.Feed))
	e.Str("trip", t.ID)
	e.Time("arrival", t.Arrival)
	e.Str("vessel", t.VesselName)
}

// Source yields trips one at a time.
//
// Next returns io.EOF once the source is exhausted. An error satisfying
// errdefs.IsValidation means the current record was malformed and has been
// consumed; Next may be called again. Any other error is fatal.
type Source interface {
	Next(ctx context.Context) (*Trip, error)
	Close() error
}
