package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/authzed/connector-warehouse/pkg/dimension"
	"github.com/authzed/connector-warehouse/pkg/errdefs"
	"github.com/authzed/connector-warehouse/pkg/trip"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	require.Equal(t, dimension.KeyPolicyIdentity, c.Policy())
	require.Equal(t, 100, c.BatchSize)

	f := c.Filter()
	require.Equal(t, "concluida", f.CompletedStatus)
	require.Equal(t, &trip.Location{Country: "portugal", City: "figfoz"}, f.Reference)
	require.Nil(t, f.TripIDs)
}

func TestParseOverridesDefaults(t *testing.T) {
	require := require.New(t)
	c, err := Parse([]byte(`
keyPolicy: explicit
batchSize: 25
referenceLocation:
  country: Portugal
  city: Aveiro
unknownVessel:
  name: desconhecido
  size: "-"
requireVesselDirectory: true
flatFile:
  encoding: windows-1252
`))
	require.NoError(err)
	require.Equal(dimension.KeyPolicyExplicit, c.Policy())
	require.Equal(25, c.BatchSize)
	require.Equal("concluida", c.CompletedStatus)
	require.Equal(trip.Location{Country: "Portugal", City: "Aveiro"}, c.ReferenceLocation)
	require.Equal("desconhecido", c.UnknownVessel.Name)
	require.Equal("unknown", c.UnknownCarrier.Name)
	require.True(c.RequireVesselDirectory)
	require.Equal("windows-1252", c.FlatFile.Encoding)

	// the rendered config parses back to the same values
	again, err := Parse([]byte(c.String()))
	require.NoError(err)
	require.Equal(c, again)
}

func TestParseRejectsBadConfig(t *testing.T) {
	for name, contents := range map[string]string{
		"unknown field":   "keyPolicy: identity\nbatchLimit: 3\n",
		"bad policy":      "keyPolicy: sequence\n",
		"zero batch":      "batchSize: 0\n",
		"no status":       "completedStatus: \"\"\n",
		"bad encoding":    "flatFile:\n  encoding: klingon\n",
		"unnamed vessel":  "unknownVessel:\n  name: \"\"\n",
		"not yaml at all": "keyPolicy: [\n",
	} {
		_, err := Parse([]byte(contents))
		var cerr *errdefs.ConfigurationError
		require.ErrorAs(t, err, &cerr, name)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warehouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batchSize: 10\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 10, c.BatchSize)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	var cerr *errdefs.ConfigurationError
	require.ErrorAs(t, err, &cerr)
}
