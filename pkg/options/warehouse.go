package options

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/authzed/connector-warehouse/pkg/errdefs"
	"github.com/authzed/connector-warehouse/pkg/util"
	"github.com/authzed/connector-warehouse/pkg/warehouse"
)

// WarehouseOptions selects and opens the warehouse the pipeline writes to
type WarehouseOptions struct {
	*PostgresOptions

	DryRun       bool
	CreateSchema bool
}

// NewWarehouseOptions returns options with --warehouse-* connection flags
func NewWarehouseOptions() *WarehouseOptions {
	return &WarehouseOptions{
		PostgresOptions: NewPostgresOptions("warehouse"),
		CreateSchema:    true,
	}
}

// RegisterFlags adds the warehouse flags to cmd
func (o *WarehouseOptions) RegisterFlags(cmd *cobra.Command) {
	o.PostgresOptions.RegisterFlags(cmd, "warehouse")
	cmd.Flags().BoolVar(&o.DryRun, "dry-run", o.DryRun, "load into an in-memory warehouse and log the rows that would be written")
	cmd.Flags().BoolVar(&o.CreateSchema, "create-schema", o.CreateSchema, "create missing warehouse tables before loading")
}

// Complete validates the connection options unless this is a dry run
func (o *WarehouseOptions) Complete() error {
	if o.DryRun {
		return nil
	}
	return o.PostgresOptions.Complete()
}

// Open connects to the warehouse. The returned func releases the connection
// and must be called once the warehouse is no longer used.
func (o *WarehouseOptions) Open(ctx context.Context) (warehouse.Warehouse, func(), error) {
	if o.DryRun {
		log.Info().Msg("dry run: writes go to an in-memory warehouse")
		return warehouse.NewLoggingWarehouse(warehouse.NewMemoryWarehouse(), zerolog.InfoLevel), func() {}, nil
	}

	pool, err := Connect(ctx, o.PoolConfig)
	if err != nil {
		return nil, nil, err
	}
	if o.CreateSchema {
		log.Info().Msg("creating warehouse schema")
		if err := warehouse.CreateSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return warehouse.NewLoggingWarehouse(warehouse.NewPostgresWarehouse(pool), zerolog.TraceLevel), pool.Close, nil
}

// Connect opens a pool for cfg
func Connect(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
	log.Info().EmbedObject(util.LoggedConnConfig{ConnConfig: cfg.ConnConfig}).Msg("connecting to postgres")
	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, errdefs.Storage("connect", err)
	}
	return pool, nil
}
