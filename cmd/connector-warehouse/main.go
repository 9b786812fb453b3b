package main

import (
	"github.com/jzelinskie/cobrautil"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/authzed/connector-warehouse/pkg/cmd/config"
	"github.com/authzed/connector-warehouse/pkg/cmd/importer"
	"github.com/authzed/connector-warehouse/pkg/cmd/run"
	"github.com/authzed/connector-warehouse/pkg/signals"
	"github.com/authzed/connector-warehouse/pkg/streams"
)

func main() {
	s := streams.NewStdIO()
	ctx := signals.Context()
	rootCmd := &cobra.Command{
		Use:               "connector-warehouse",
		Short:             "Load completed shipping trips from an operational postgres and flat-file exports into a dimensional warehouse",
		PersistentPreRunE: cobrautil.SyncViperPreRunE("connector-warehouse"),
		SilenceUsage:      true,
	}

	rootCmd.AddCommand(importer.NewImportCmd(ctx, s))
	rootCmd.AddCommand(importer.NewImportFileCmd(ctx, s))
	rootCmd.AddCommand(run.NewRunCmd(ctx, s))
	rootCmd.AddCommand(config.NewConfigCmd(ctx, s))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("connector-warehouse failed")
	}
}
