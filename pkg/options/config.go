package options

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/authzed/connector-warehouse/pkg/config"
	"github.com/authzed/connector-warehouse/pkg/errdefs"
)

// ConfigPrinter writes out an effective pipeline config
type ConfigPrinter func(c *config.Config) error

func DiscardConfigPrinter(*config.Config) error {
	return nil
}

var _ ConfigPrinter = DiscardConfigPrinter

func JSONConfigPrinter(w io.Writer) ConfigPrinter {
	return func(c *config.Config) error {
		configJSON, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(configJSON))
		return err
	}
}

func YAMLConfigPrinter(w io.Writer) ConfigPrinter {
	return func(c *config.Config) error {
		configYaml, err := yaml.Marshal(c)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, string(configYaml))
		return err
	}
}

// PrinterFor returns the printer for an --output value
func PrinterFor(format string, w io.Writer) (ConfigPrinter, error) {
	switch format {
	case "yaml", "":
		return YAMLConfigPrinter(w), nil
	case "json":
		return JSONConfigPrinter(w), nil
	case "none":
		return DiscardConfigPrinter, nil
	}
	return nil, errdefs.Configuration("unknown output format: %s", format)
}

// ConfigOptions loads the pipeline config from an optional file and applies
// flag overrides on top of it
type ConfigOptions struct {
	ConfigFile string

	KeyPolicy              string
	BatchSize              int
	CompletedStatus        string
	ReferenceCountry       string
	ReferenceCity          string
	RequireVesselDirectory bool
	Encoding               string

	Config *config.Config
}

// NewConfigOptions returns options whose flag defaults are the config defaults
func NewConfigOptions() *ConfigOptions {
	d := config.Default()
	return &ConfigOptions{
		KeyPolicy:              d.KeyPolicy,
		BatchSize:              d.BatchSize,
		CompletedStatus:        d.CompletedStatus,
		ReferenceCountry:       d.ReferenceLocation.Country,
		ReferenceCity:          d.ReferenceLocation.City,
		RequireVesselDirectory: d.RequireVesselDirectory,
		Encoding:               d.FlatFile.Encoding,
	}
}

// RegisterFlags adds the pipeline flags to cmd
func (o *ConfigOptions) RegisterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.ConfigFile, "config", "", "path to a yaml pipeline config; flags override its values")
	cmd.Flags().StringVar(&o.KeyPolicy, "key-policy", o.KeyPolicy, "surrogate key assignment: explicit (MAX+1) or identity (warehouse generated)")
	cmd.Flags().IntVar(&o.BatchSize, "batch-size", o.BatchSize, "number of processed trips per commit")
	cmd.Flags().StringVar(&o.CompletedStatus, "completed-status", o.CompletedStatus, "trip status that marks a trip as completed")
	cmd.Flags().StringVar(&o.ReferenceCountry, "reference-country", o.ReferenceCountry, "only load trips departing from this country (empty loads all)")
	cmd.Flags().StringVar(&o.ReferenceCity, "reference-city", o.ReferenceCity, "only load trips departing from this city (empty loads all)")
	cmd.Flags().BoolVar(&o.RequireVesselDirectory, "require-vessel-directory", o.RequireVesselDirectory, "fail flat-file imports when no vessels have been loaded yet")
	cmd.Flags().StringVar(&o.Encoding, "encoding", o.Encoding, "character encoding of flat files")
}

// Complete loads the config file, if any, and applies every flag for which
// changed returns true. Set either the flags or Config, but not both.
func (o *ConfigOptions) Complete(changed func(name string) bool) error {
	if o.Config != nil {
		log.Debug().Msg("pipeline config already set, skipping config option validation")
		return o.Config.Validate()
	}

	c := config.Default()
	if o.ConfigFile != "" {
		log.Info().Str("config", o.ConfigFile).Msg("loading pipeline config from file")
		loaded, err := config.Load(o.ConfigFile)
		if err != nil {
			return err
		}
		c = loaded
	}

	if changed("key-policy") {
		c.KeyPolicy = o.KeyPolicy
	}
	if changed("batch-size") {
		c.BatchSize = o.BatchSize
	}
	if changed("completed-status") {
		c.CompletedStatus = o.CompletedStatus
	}
	if changed("reference-country") {
		c.ReferenceLocation.Country = o.ReferenceCountry
	}
	if changed("reference-city") {
		c.ReferenceLocation.City = o.ReferenceCity
	}
	if changed("require-vessel-directory") {
		c.RequireVesselDirectory = o.RequireVesselDirectory
	}
	if changed("encoding") {
		c.FlatFile.Encoding = o.Encoding
	}

	if err := c.Validate(); err != nil {
		return err
	}
	o.Config = c
	return nil
}
