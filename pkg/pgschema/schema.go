package pgschema

import (
	"github.com/jackc/pglogrepl"
)

// Schema represents a set of Tables and the tx log sequence number (XLogPos)
// at which they were fetched
type Schema struct {
	Tables  map[string]*Table
	XLogPos pglogrepl.LSN
}

// Table is a postgres table and its columns
type Table struct {
	// ID is the int table identifier in postgres
	ID   uint32
	Name string
	Cols []Col
}

// Col is the name and index of a column in a table
type Col struct {
	Name string
	ID   int
}

// HasCol reports whether the table has a column named name
func (t *Table) HasCol(name string) bool {
	for _, c := range t.Cols {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Missing compares the schema against expected table and column names and
// returns what is absent, as "table" or "table.column"
func (s *Schema) Missing(expected map[string][]string) []string {
	missing := make([]string, 0)
	for table, cols := range expected {
		t, ok := s.Tables[table]
		if !ok {
			missing = append(missing, table)
			continue
		}
		for _, c := range cols {
			if !t.HasCol(c) {
				missing = append(missing, table+"."+c)
			}
		}
	}
	return missing
}
