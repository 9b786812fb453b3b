package config

import (
	"context"
	"fmt"

	"github.com/jzelinskie/cobrautil"
	"github.com/spf13/cobra"

	"github.com/authzed/connector-warehouse/pkg/options"
	"github.com/authzed/connector-warehouse/pkg/streams"
	"github.com/authzed/connector-warehouse/pkg/util"
	"github.com/authzed/connector-warehouse/pkg/warehouse"
)

// NewConfigCmd configures a new cobra command that prints the effective
// pipeline config, or the warehouse DDL
func NewConfigCmd(ctx context.Context, streams streams.IO) *cobra.Command {
	o := NewOptions(streams)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective pipeline config or the warehouse schema",
		Args:  cobra.NoArgs,
		// logs to stderr so that stdout only contains the config
		PreRunE: util.ZeroLogPreRunEFunc(o.IO.ErrOut),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd.Flags().Changed); err != nil {
				return err
			}
			return o.Run(ctx)
		},
	}
	o.Pipeline.RegisterFlags(cmd)
	cmd.Flags().StringVar(&o.Output, "output", "yaml", "config output format: yaml or json")
	cmd.Flags().BoolVar(&o.Schema, "schema", false, "print the warehouse DDL instead of the config")
	cobrautil.RegisterZeroLogFlags(cmd.Flags())

	return cmd
}

// Options holds options for the config printer
type Options struct {
	streams.IO

	Pipeline *options.ConfigOptions
	Output   string
	Schema   bool

	printer options.ConfigPrinter
}

// NewOptions returns initialized Options
func NewOptions(ioStreams streams.IO) *Options {
	return &Options{
		IO:       ioStreams,
		Pipeline: options.NewConfigOptions(),
		Output:   "yaml",
	}
}

// Complete fills out default values before running
func (o *Options) Complete(changed func(string) bool) error {
	if o.Schema {
		return nil
	}
	printer, err := options.PrinterFor(o.Output, o.Out)
	if err != nil {
		return err
	}
	o.printer = printer
	return o.Pipeline.Complete(changed)
}

// Run runs the command configured by Options.
func (o *Options) Run(ctx context.Context) error {
	if o.Schema {
		_, err := fmt.Fprint(o.Out, warehouse.SchemaSQL)
		return err
	}
	return o.printer(o.Pipeline.Config)
}
