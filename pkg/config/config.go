package config

import (
	"errors"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/authzed/connector-warehouse/pkg/dimension"
	"github.com/authzed/connector-warehouse/pkg/errdefs"
	"github.com/authzed/connector-warehouse/pkg/load"
	"github.com/authzed/connector-warehouse/pkg/source"
	"github.com/authzed/connector-warehouse/pkg/trip"
)

// Config holds the pipeline settings shared by every command
type Config struct {
	// KeyPolicy is "explicit" (MAX+1) or "identity" (warehouse generated)
	KeyPolicy string `json:"keyPolicy"`
	// BatchSize is the number of processed trips per commit
	BatchSize int `json:"batchSize"`

	// CompletedStatus and ReferenceLocation select the trips of the
	// relational feed. An empty reference location loads every origin.
	CompletedStatus   string        `json:"completedStatus"`
	ReferenceLocation trip.Location `json:"referenceLocation"`

	// UnknownCarrier and UnknownVessel are the sentinel rows flat-file trips
	// fall back to
	UnknownCarrier trip.Carrier `json:"unknownCarrier"`
	UnknownVessel  trip.Vessel  `json:"unknownVessel"`
	// RequireVesselDirectory fails a flat-file import when no vessels have
	// been loaded by the relational feed
	RequireVesselDirectory bool `json:"requireVesselDirectory"`

	FlatFile FlatFile `json:"flatFile"`
}

// FlatFile holds settings of the flat-file feed
type FlatFile struct {
	Encoding string `json:"encoding"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		KeyPolicy:         string(dimension.KeyPolicyIdentity),
		BatchSize:         load.DefaultBatchSize,
		CompletedStatus:   source.DefaultCompletedStatus,
		ReferenceLocation: source.DefaultReference,
		UnknownCarrier:    load.DefaultUnknownCarrier,
		UnknownVessel:     load.DefaultUnknownVessel,
		FlatFile:          FlatFile{Encoding: source.DefaultEncoding},
	}
}

// Load reads a YAML config file over the defaults. Unknown fields are
// rejected.
func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errdefs.Configuration("config file %s does not exist", path)
	}
	if err != nil {
		return nil, errdefs.Configuration("reading config file %s: %w", path, err)
	}
	return Parse(contents)
}

// Parse decodes a YAML config over the defaults and validates it
func Parse(contents []byte) (*Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(contents, c); err != nil {
		return nil, errdefs.Configuration("parsing config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that every setting is usable
func (c *Config) Validate() error {
	if _, err := dimension.ParseKeyPolicy(c.KeyPolicy); err != nil {
		return errdefs.Configuration("%w", err)
	}
	if c.BatchSize < 1 {
		return errdefs.Configuration("batch size must be positive, got %d", c.BatchSize)
	}
	if c.CompletedStatus == "" {
		return errdefs.Configuration("completed status must be set")
	}
	if c.UnknownVessel.Name == "" || c.UnknownCarrier.Name == "" {
		return errdefs.Configuration("unknown vessel and carrier must be named")
	}
	if _, err := source.LookupEncoding(c.FlatFile.Encoding); err != nil {
		return err
	}
	return nil
}

// Policy returns the parsed key policy. Validate must have succeeded.
func (c *Config) Policy() dimension.KeyPolicy {
	return dimension.KeyPolicy(c.KeyPolicy)
}

// Filter returns the relational feed filter
func (c *Config) Filter() source.Filter {
	ref := c.ReferenceLocation
	return source.Filter{
		CompletedStatus: c.CompletedStatus,
		Reference:       &ref,
	}
}

// String renders the config as YAML
func (c *Config) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%#v", *c)
	}
	return string(out)
}
