// Package source reads completed trips from the two operational feeds: the
// relational database and the semicolon-delimited flat file.
package source

import (
	"context"
	"io"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-warehouse/pkg/errdefs"
	"github.com/authzed/connector-warehouse/pkg/trip"
)

// DefaultCompletedStatus is the trip status that marks a trip as finished
const DefaultCompletedStatus = "concluida"

// DefaultReference is the origin the relational feed is restricted to unless
// configured otherwise
var DefaultReference = trip.Location{Country: "portugal", City: "figfoz"}

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Filter restricts which trips the relational feed yields
type Filter struct {
	// CompletedStatus is matched exactly against viagem.status
	CompletedStatus string
	// Reference restricts trips to those departing from this location,
	// compared case-insensitively. Nil or empty means no restriction.
	Reference *trip.Location
	// TripIDs restricts the feed to the given source trip ids when non-nil
	TripIDs []string
}

// DefaultFilter returns the filter used by a plain import
func DefaultFilter() Filter {
	ref := DefaultReference
	return Filter{
		CompletedStatus: DefaultCompletedStatus,
		Reference:       &ref,
	}
}

// RelationalSource streams trips from the operational database. Rows are read
// lazily as Next is called; the query holds its connection until Close.
type RelationalSource struct {
	rows pgx.Rows
}

var _ trip.Source = &RelationalSource{}

// NewRelationalSource runs the trip query
func NewRelationalSource(ctx context.Context, q Querier, f Filter) (*RelationalSource, error) {
	if f.CompletedStatus == "" {
		f.CompletedStatus = DefaultCompletedStatus
	}
	sql, args := buildTripQuery(f)
	log.Trace().Str("query", sql).Interface("args", args).Msg("querying trips")

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, errdefs.Storage("query trips", err)
	}
	return &RelationalSource{rows: rows}, nil
}

// Next returns the next trip, or io.EOF when there are no more
func (s *RelationalSource) Next(ctx context.Context) (*trip.Trip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, errdefs.Storage("read trips", err)
		}
		return nil, io.EOF
	}

	t := trip.Trip{Feed: trip.FeedRelational}
	var vessel trip.Vessel
	var carrier trip.Carrier
	if err := s.rows.Scan(
		&t.ID,
		&t.Departure,
		&t.Arrival,
		&t.TripType,
		&t.Origin.Country,
		&t.Origin.City,
		&t.Driver.Name,
		&t.Driver.Age,
		&t.Driver.Certification,
		&vessel.Name,
		&vessel.Size,
		&vessel.Type,
		&vessel.Capacity,
		&carrier.Name,
		&carrier.Country,
		&t.Fees,
		&t.Containers,
		&t.CargoWeight,
		&t.TEU,
	); err != nil {
		return nil, errdefs.Storage("scan trip", err)
	}
	t.VesselName = vessel.Name
	t.Vessel = &vessel
	t.Carrier = &carrier
	return &t, nil
}

// Close releases the query's connection
func (s *RelationalSource) Close() error {
	s.rows.Close()
	return nil
}
