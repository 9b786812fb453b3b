package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/authzed/connector-warehouse/pkg/errdefs"
	"github.com/authzed/connector-warehouse/pkg/trip"
)

// FlatFileDateLayout is the D/M/YYYY layout of the flat file's dates. Day and
// month may be zero padded or not.
const FlatFileDateLayout = "2/1/2006"

// DefaultEncoding is the flat file's encoding unless configured otherwise
const DefaultEncoding = "utf-8"

// flatFileRow is one line of the flat file. Every field is kept as text so a
// malformed value is reported against its trip instead of failing the decode.
type flatFileRow struct {
	ID            string `csv:"idviagem"`
	Departure     string `csv:"datapartida"`
	Arrival       string `csv:"datachegada"`
	Fee           string `csv:"taxa"`
	DriverName    string `csv:"nomecondutor"`
	DriverAge     string `csv:"idadecondutor"`
	Certification string `csv:"certificacao"`
	Country       string `csv:"pais_origem"`
	City          string `csv:"cidade_origem"`
	VesselName    string `csv:"nomebarco"`
	VesselType    string `csv:"tipobarco"`
	TripType      string `csv:"tipoviagem,omitempty"`
}

// RequiredColumns are the header columns the flat file must carry
var RequiredColumns = []string{
	"idviagem",
	"datapartida",
	"datachegada",
	"taxa",
	"nomecondutor",
	"idadecondutor",
	"certificacao",
	"pais_origem",
	"cidade_origem",
	"nomebarco",
	"tipobarco",
}

// FlatFileSource reads trips from a semicolon-delimited export. It carries no
// vessel, carrier or cargo data: only the vessel name is known.
type FlatFileSource struct {
	dec    *csvutil.Decoder
	closer io.Closer
	line   int
}

var _ trip.Source = &FlatFileSource{}

// LookupEncoding returns the decoder for an encoding name such as "utf-8" or
// "windows-1252". UTF-8 input may start with a byte order mark.
func LookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		name = DefaultEncoding
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errdefs.Configuration("unsupported flat file encoding %q: %w", name, err)
	}
	if enc == unicode.UTF8 {
		return unicode.UTF8BOM, nil
	}
	return enc, nil
}

// CheckFlatFile returns a configuration error unless path is a readable
// regular file
func CheckFlatFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return flatFileError(path, err)
	}
	if fi.IsDir() {
		return errdefs.Configuration("flat file %s is a directory", path)
	}
	return nil
}

func flatFileError(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return errdefs.Configuration("flat file %s does not exist", path)
	}
	return errdefs.Configuration("opening flat file %s: %w", path, err)
}

// OpenFlatFile opens the file at path. A missing file or header column is a
// configuration error.
func OpenFlatFile(path, encodingName string) (*FlatFileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, flatFileError(path, err)
	}
	src, err := NewFlatFileSource(f, encodingName)
	if err != nil {
		f.Close()
		return nil, err
	}
	src.closer = f
	log.Info().Str("path", path).Str("encoding", encodingName).Msg("opened flat file")
	return src, nil
}

// NewFlatFileSource reads the header from r and checks it
func NewFlatFileSource(r io.Reader, encodingName string) (*FlatFileSource, error) {
	enc, err := LookupEncoding(encodingName)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(transform.NewReader(r, enc.NewDecoder()))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(cr)
	if errors.Is(err, io.EOF) {
		return nil, errdefs.Configuration("flat file is empty")
	}
	if err != nil {
		return nil, errdefs.Configuration("reading flat file header: %w", err)
	}

	present := make(map[string]struct{}, len(dec.Header()))
	for _, h := range dec.Header() {
		present[h] = struct{}{}
	}
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errdefs.Configuration("flat file is missing columns: %s", strings.Join(missing, ", "))
	}
	return &FlatFileSource{dec: dec, line: 1}, nil
}

// Next returns the next trip, or io.EOF at the end of the file. A malformed
// line returns a ValidationError and is skipped.
func (s *FlatFileSource) Next(ctx context.Context) (*trip.Trip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var row flatFileRow
	err := s.dec.Decode(&row)
	s.line++
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) || errors.Is(err, csvutil.ErrFieldCount) {
			return nil, errdefs.Validation(fmt.Sprintf("line %d", s.line), "", err)
		}
		return nil, errdefs.Storage("reading flat file", err)
	}
	return row.toTrip()
}

// Close closes the underlying file, if the source opened it
func (s *FlatFileSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (r *flatFileRow) toTrip() (*trip.Trip, error) {
	id := strings.TrimSpace(r.ID)
	t := &trip.Trip{
		Feed:       trip.FeedFlatFile,
		ID:         id,
		TripType:   strings.TrimSpace(r.VesselType),
		Origin:     trip.Location{Country: strings.TrimSpace(r.Country), City: strings.TrimSpace(r.City)},
		VesselName: strings.TrimSpace(r.VesselName),
		Driver: trip.Driver{
			Name:          strings.TrimSpace(r.DriverName),
			Certification: strings.TrimSpace(r.Certification),
		},
	}
	if tt := strings.TrimSpace(r.TripType); tt != "" {
		t.TripType = tt
	}

	var err error
	if t.Departure, err = parseDate(r.Departure); err != nil {
		return nil, errdefs.Validation(id, "datapartida", err)
	}
	if t.Arrival, err = parseDate(r.Arrival); err != nil {
		return nil, errdefs.Validation(id, "datachegada", err)
	}
	if t.Fees, err = ParseDecimal(r.Fee); err != nil {
		return nil, errdefs.Validation(id, "taxa", err)
	}
	if t.Driver.Age, err = strconv.Atoi(strings.TrimSpace(r.DriverAge)); err != nil {
		return nil, errdefs.Validation(id, "idadecondutor", err)
	}
	return t, nil
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(FlatFileDateLayout, strings.TrimSpace(s), time.UTC)
}

// ParseDecimal parses a number written with a decimal comma. Dots before the
// comma are accepted only as thousands separators ("1.234,50"). Values without
// a comma are parsed as is. An empty value is an error.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errEmptyNumber
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		whole, frac := s[:i], s[i+1:]
		if strings.ContainsAny(frac, ".,") {
			return decimal.Zero, fmt.Errorf("can't convert %s to decimal: misplaced separator", s)
		}
		if strings.Contains(whole, ".") && !validGroups(whole) {
			return decimal.Zero, fmt.Errorf("can't convert %s to decimal: bad thousands grouping", s)
		}
		s = strings.ReplaceAll(whole, ".", "") + "." + frac
	}
	return decimal.NewFromString(s)
}

var errEmptyNumber = errors.New("empty value")

// validGroups reports whether s is a sign-prefixed integer with dots between
// groups of three digits, such as "1.234.567"
func validGroups(s string) bool {
	s = strings.TrimLeft(s, "+-")
	groups := strings.Split(s, ".")
	for i, g := range groups {
		if len(g) == 0 || len(g) > 3 || (i > 0 && len(g) != 3) {
			return false
		}
		for _, r := range g {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}
