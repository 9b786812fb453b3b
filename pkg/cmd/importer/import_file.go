package importer

import (
	"context"

	"github.com/jzelinskie/cobrautil"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/authzed/connector-warehouse/pkg/importer"
	"github.com/authzed/connector-warehouse/pkg/options"
	"github.com/authzed/connector-warehouse/pkg/source"
	"github.com/authzed/connector-warehouse/pkg/streams"
	"github.com/authzed/connector-warehouse/pkg/util"
)

// NewImportFileCmd configures a new cobra command that loads a flat-file
// export into the warehouse
func NewImportFileCmd(ctx context.Context, streams streams.IO) *cobra.Command {
	o := NewFileOptions(streams)
	cmd := &cobra.Command{
		Use:     "import-file <path>",
		Short:   "load trips from a semicolon-delimited export into the warehouse",
		Example: "  connector-warehouse import-file --warehouse-database=dw --encoding=windows-1252 viagens.csv",
		Args:    cobra.ExactArgs(1),
		PreRunE: util.ZeroLogPreRunEFunc(o.IO.Out),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.Path = args[0]
			if err := o.Complete(cmd.Flags().Changed); err != nil {
				return err
			}
			return o.Run(ctx)
		},
	}
	o.Warehouse.RegisterFlags(cmd)
	o.Pipeline.RegisterFlags(cmd)
	cobrautil.RegisterZeroLogFlags(cmd.Flags())

	return cmd
}

// FileOptions holds options for the import-file command
type FileOptions struct {
	streams.IO

	Path string

	Warehouse *options.WarehouseOptions
	Pipeline  *options.ConfigOptions
}

// NewFileOptions returns initialized FileOptions
func NewFileOptions(ioStreams streams.IO) *FileOptions {
	return &FileOptions{
		IO:        ioStreams,
		Warehouse: options.NewWarehouseOptions(),
		Pipeline:  options.NewConfigOptions(),
	}
}

// Complete fills out default values before running. The input file is
// checked before anything connects to the warehouse.
func (o *FileOptions) Complete(changed func(string) bool) error {
	if err := source.CheckFlatFile(o.Path); err != nil {
		return err
	}
	if err := o.Pipeline.Complete(changed); err != nil {
		return err
	}
	return o.Warehouse.Complete()
}

// Run runs the command configured by FileOptions.
func (o *FileOptions) Run(ctx context.Context) error {
	w, closeWarehouse, err := o.Warehouse.Open(ctx)
	if err != nil {
		return err
	}
	defer closeWarehouse()

	stats, err := importer.NewFlatFileImporter(o.Path, w, o.Pipeline.Config).Import(ctx)
	if err != nil {
		log.Error().EmbedObject(stats).Str("file", o.Path).Msg("import failed")
		return err
	}
	log.Info().EmbedObject(stats).Str("file", o.Path).Msg("import finished")
	return nil
}
