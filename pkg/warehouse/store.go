package warehouse

import (
	"context"
)

// Table identifies a warehouse table by its surrogate key column and the
// columns of its natural key.
type Table struct {
	Name string
	Key  string
	// Unique lists the natural key columns; no two rows may share them
	Unique []string
}

// Column is a named value in a warehouse row
type Column struct {
	Name  string
	Value interface{}
}

// Columns is an ordered set of columns
type Columns []Column

// Names returns the column names in order
func (c Columns) Names() []string {
	names := make([]string, 0, len(c))
	for _, col := range c {
		names = append(names, col.Name)
	}
	return names
}

// Values returns the column values in order
func (c Columns) Values() []interface{} {
	values := make([]interface{}, 0, len(c))
	for _, col := range c {
		values = append(values, col.Value)
	}
	return values
}

// Store is the set of statements the loader issues against the warehouse.
type Store interface {
	// Lookup returns the integer column `returning` of the lowest-keyed row
	// whose columns equal every column in match.
	Lookup(ctx context.Context, t Table, match Columns, returning string) (int64, bool, error)

	// MaxKey returns the largest surrogate key in t, or 0 if t is empty
	MaxKey(ctx context.Context, t Table) (int64, error)

	// Insert writes a row and returns its surrogate key. A key > 0 is written
	// explicitly; otherwise the store assigns one. Collisions with a unique
	// constraint return an error matching errdefs.ErrUniqueViolation, and
	// leave the surrounding transaction usable.
	Insert(ctx context.Context, t Table, key int64, cols Columns) (int64, error)

	// Count returns the number of rows in t
	Count(ctx context.Context, t Table) (int64, error)
}

// Tx is a unit of work against the warehouse
type Tx interface {
	Store
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Warehouse opens transactions against the target schema
type Warehouse interface {
	Begin(ctx context.Context) (Tx, error)
}
