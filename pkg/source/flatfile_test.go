package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/authzed/connector-warehouse/pkg/errdefs"
	"github.com/authzed/connector-warehouse/pkg/trip"
)

const header = "idviagem;datapartida;datachegada;taxa;nomecondutor;idadecondutor;certificacao;pais_origem;cidade_origem;nomebarco;tipobarco\n"

func readAll(t *testing.T, src trip.Source) (trips []*trip.Trip, invalid []error) {
	t.Helper()
	ctx := context.Background()
	for {
		tr, err := src.Next(ctx)
		if err == io.EOF {
			return
		}
		if errdefs.IsValidation(err) {
			invalid = append(invalid, err)
			continue
		}
		require.NoError(t, err)
		trips = append(trips, tr)
	}
}

func TestFlatFileRow(t *testing.T) {
	require := require.New(t)
	src, err := NewFlatFileSource(strings.NewReader(header+
		"17;01/01/2024;10/01/2024;1.120,50;Ana Silva;38;B2;Portugal;Figueira da Foz;Aurora;cargo\n"), "")
	require.NoError(err)

	trips, invalid := readAll(t, src)
	require.Empty(invalid)
	require.Len(trips, 1)

	tr := trips[0]
	require.Equal(trip.FeedFlatFile, tr.Feed)
	require.Equal("17", tr.ID)
	require.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), tr.Departure)
	require.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), tr.Arrival)
	require.Equal(9, tr.DurationDays())
	require.True(decimal.RequireFromString("1120.50").Equal(tr.Fees))
	require.Equal(trip.Driver{Name: "Ana Silva", Age: 38, Certification: "B2"}, tr.Driver)
	require.Equal(trip.Location{Country: "Portugal", City: "Figueira da Foz"}, tr.Origin)
	require.Equal("Aurora", tr.VesselName)
	require.Equal("cargo", tr.TripType)
	require.Nil(tr.Vessel)
	require.Nil(tr.Carrier)
	require.Zero(tr.Containers)
	require.True(tr.CargoWeight.IsZero())
	require.True(tr.TEU.IsZero())
}

func TestFlatFileTripTypeColumn(t *testing.T) {
	src, err := NewFlatFileSource(strings.NewReader(
		"idviagem;datapartida;datachegada;taxa;nomecondutor;idadecondutor;certificacao;pais_origem;cidade_origem;nomebarco;tipobarco;tipoviagem\n"+
			"1;01/02/2024;03/02/2024;10;Rui;50;A;Portugal;Aveiro;Aurora;porta-contentores;comercial\n"+
			"2;01/02/2024;03/02/2024;10;Rui;50;A;Portugal;Aveiro;Aurora;porta-contentores;\n"), "utf-8")
	require.NoError(t, err)

	trips, invalid := readAll(t, src)
	require.Empty(t, invalid)
	require.Len(t, trips, 2)
	require.Equal(t, "comercial", trips[0].TripType)
	require.Equal(t, "porta-contentores", trips[1].TripType)
}

func TestFlatFileSkipsMalformedRows(t *testing.T) {
	require := require.New(t)
	src, err := NewFlatFileSource(strings.NewReader(header+
		"1;01/01/2024;05/01/2024;10,00;Ana;30;B;PT;Porto;Aurora;cargo\n"+
		"2;2024-01-01;05/01/2024;10,00;Ana;30;B;PT;Porto;Aurora;cargo\n"+
		"3;01/01/2024;05/01/2024;dez;Ana;30;B;PT;Porto;Aurora;cargo\n"+
		"4;01/01/2024;05/01/2024;10,00;Ana\n"+
		"5;01/01/2024;05/01/2024;10,00;Ana;trinta;B;PT;Porto;Aurora;cargo\n"+
		"6;02/01/2024;06/01/2024;7;Ana;30;B;PT;Porto;Aurora;cargo\n"+
		"7;02/01/2024;06/01/2024;1,234.50;Ana;30;B;PT;Porto;Aurora;cargo\n"+
		"8;02/01/2024;06/01/2024;;Ana;30;B;PT;Porto;Aurora;cargo\n"+
		"9;02/01/2024;06/01/2024;7;Ana;;B;PT;Porto;Aurora;cargo\n"), "")
	require.NoError(err)

	trips, invalid := readAll(t, src)
	require.Len(trips, 2)
	require.Equal("1", trips[0].ID)
	require.Equal("6", trips[1].ID)
	require.Len(invalid, 7)

	var verr *errdefs.ValidationError
	require.ErrorAs(invalid[0], &verr)
	require.Equal("2", verr.Record)
	require.Equal("datapartida", verr.Field)

	require.ErrorAs(invalid[1], &verr)
	require.Equal("3", verr.Record)
	require.Equal("taxa", verr.Field)

	require.ErrorAs(invalid[2], &verr)
	require.Equal("line 5", verr.Record)

	require.ErrorAs(invalid[3], &verr)
	require.Equal("idadecondutor", verr.Field)

	// wrong separators, an empty fee and an empty age are not loaded as numbers
	for i, want := range []struct{ record, field string }{
		{"7", "taxa"},
		{"8", "taxa"},
		{"9", "idadecondutor"},
	} {
		require.ErrorAs(invalid[4+i], &verr)
		require.Equal(want.record, verr.Record)
		require.Equal(want.field, verr.Field)
	}
}

func TestFlatFileMissingColumns(t *testing.T) {
	_, err := NewFlatFileSource(strings.NewReader("idviagem;datapartida;datachegada\n1;01/01/2024;02/01/2024\n"), "")
	var cerr *errdefs.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	require.Contains(t, err.Error(), "nomebarco")

	_, err = NewFlatFileSource(strings.NewReader(""), "")
	require.ErrorAs(t, err, &cerr)
}

func TestFlatFileMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := OpenFlatFile(filepath.Join(dir, "nope.csv"), "")
	var cerr *errdefs.ConfigurationError
	require.ErrorAs(t, err, &cerr)

	require.ErrorAs(t, CheckFlatFile(filepath.Join(dir, "nope.csv")), &cerr)
	require.ErrorAs(t, CheckFlatFile(dir), &cerr)

	path := filepath.Join(dir, "viagens.csv")
	require.NoError(t, os.WriteFile(path, []byte(header), 0o600))
	require.NoError(t, CheckFlatFile(path))
}

func TestFlatFileEncodings(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	// UTF-8 with a byte order mark
	bom := filepath.Join(dir, "bom.csv")
	require.NoError(os.WriteFile(bom, []byte("\xef\xbb\xbf"+header+"1;01/01/2024;02/01/2024;1;João;30;B;Portugal;Figueira da Foz;Aurora;cargo\n"), 0o600))
	src, err := OpenFlatFile(bom, "utf-8")
	require.NoError(err)
	trips, invalid := readAll(t, src)
	require.NoError(src.Close())
	require.Empty(invalid)
	require.Len(trips, 1)
	require.Equal("1", trips[0].ID)
	require.Equal("João", trips[0].Driver.Name)

	// legacy spreadsheet export
	cp := filepath.Join(dir, "cp1252.csv")
	require.NoError(os.WriteFile(cp, []byte(header+"1;01/01/2024;02/01/2024;1;Jo\xe3o;30;B;Portugal;Figueira da Foz;Aurora;cargo\n"), 0o600))
	src, err = OpenFlatFile(cp, "windows-1252")
	require.NoError(err)
	trips, _ = readAll(t, src)
	require.NoError(src.Close())
	require.Len(trips, 1)
	require.Equal("João", trips[0].Driver.Name)

	_, err = LookupEncoding("klingon")
	var cerr *errdefs.ConfigurationError
	require.ErrorAs(err, &cerr)
}

func TestParseDecimal(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want string
	}{
		{"120,50", "120.5"},
		{"1.234,56", "1234.56"},
		{"120.50", "120.5"},
		{"7", "7"},
		{" 3,0 ", "3"},
		{"1.234.567,8", "1234567.8"},
		{"-1.234,5", "-1234.5"},
	} {
		got, err := ParseDecimal(tt.in)
		require.NoError(t, err, tt.in)
		require.True(t, decimal.RequireFromString(tt.want).Equal(got), "%q: got %s", tt.in, got)
	}

	for _, in := range []string{
		"",
		"  ",
		"1,2,3",
		"1,234.50",
		"1.2,50",
		"12.3456,7",
		".234,5",
		"1..234,5",
		"a.bcd,5",
	} {
		_, err := ParseDecimal(in)
		require.Error(t, err, "%q", in)
	}
}

func TestFlatFileUnpaddedDates(t *testing.T) {
	require := require.New(t)
	src, err := NewFlatFileSource(strings.NewReader(header+
		"7;1/2/2024;9/2/2024;10;Ana;30;B;PT;Porto;Aurora;cargo\n"+
		"8;01/2/2024;9/02/2024;10;Ana;30;B;PT;Porto;Aurora;cargo\n"), "")
	require.NoError(err)

	trips, invalid := readAll(t, src)
	require.Empty(invalid)
	require.Len(trips, 2)
	for _, tr := range trips {
		require.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), tr.Departure, tr.ID)
		require.Equal(time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC), tr.Arrival, tr.ID)
		require.Equal(8, tr.DurationDays())
	}
}
