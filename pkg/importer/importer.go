package importer

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-warehouse/pkg/config"
	"github.com/authzed/connector-warehouse/pkg/dimension"
	"github.com/authzed/connector-warehouse/pkg/load"
	"github.com/authzed/connector-warehouse/pkg/pgschema"
	"github.com/authzed/connector-warehouse/pkg/source"
	"github.com/authzed/connector-warehouse/pkg/trip"
	"github.com/authzed/connector-warehouse/pkg/warehouse"
)

// Importer is an interface satisfied by anything that can load one feed into
// the warehouse
type Importer interface {
	Import(ctx context.Context) (load.Stats, error)
}

// RelationalImporter loads completed trips from the operational database.
// The source schema is checked before the first import.
type RelationalImporter struct {
	conn      source.Querier
	pipeline  *load.Pipeline
	filter    source.Filter
	inspected bool
}

var _ Importer = &RelationalImporter{}

// NewRelationalImporter returns an importer reading from conn and writing to w
func NewRelationalImporter(conn source.Querier, w warehouse.Warehouse, c *config.Config) *RelationalImporter {
	dims := dimension.New(c.Policy())
	loader := load.NewLoader(dims, load.NewReferentialVessels(dims))
	return &RelationalImporter{
		conn:     conn,
		pipeline: load.NewPipeline(w, loader, trip.FeedRelational, c.BatchSize),
		filter:   c.Filter(),
	}
}

// Import loads every trip matching the configured filter
func (i *RelationalImporter) Import(ctx context.Context) (load.Stats, error) {
	return i.run(ctx, i.filter)
}

// ImportTrips reloads the given source trip ids, for trips that changed after
// the initial import
func (i *RelationalImporter) ImportTrips(ctx context.Context, ids []string) (load.Stats, error) {
	f := i.filter
	f.TripIDs = ids
	return i.run(ctx, f)
}

func (i *RelationalImporter) run(ctx context.Context, f source.Filter) (load.Stats, error) {
	if !i.inspected {
		log.Info().Msg("checking source schema")
		if _, err := pgschema.Inspect(ctx, i.conn, source.SourceSchema); err != nil {
			return load.Stats{}, err
		}
		i.inspected = true
	}

	src, err := source.NewRelationalSource(ctx, i.conn, f)
	if err != nil {
		return load.Stats{}, err
	}
	defer src.Close()

	return i.pipeline.Run(ctx, src)
}

// FlatFileImporter loads trips from a delimited export. Vessels are resolved
// against those already in the warehouse.
type FlatFileImporter struct {
	path     string
	encoding string
	pipeline *load.Pipeline
}

var _ Importer = &FlatFileImporter{}

// NewFlatFileImporter returns an importer reading path and writing to w
func NewFlatFileImporter(path string, w warehouse.Warehouse, c *config.Config) *FlatFileImporter {
	dims := dimension.New(c.Policy())
	vessels := load.NewDirectoryVessels(dims, c.UnknownCarrier, c.UnknownVessel, c.RequireVesselDirectory)
	return &FlatFileImporter{
		path:     path,
		encoding: c.FlatFile.Encoding,
		pipeline: load.NewPipeline(w, load.NewLoader(dims, vessels), trip.FeedFlatFile, c.BatchSize),
	}
}

// Import loads every row of the file
func (i *FlatFileImporter) Import(ctx context.Context) (load.Stats, error) {
	src, err := source.OpenFlatFile(i.path, i.encoding)
	if err != nil {
		return load.Stats{}, err
	}
	defer src.Close()

	log.Info().Str("file", i.path).Str("encoding", i.encoding).Msg("loading flat file")
	return i.pipeline.Run(ctx, src)
}
