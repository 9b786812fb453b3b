package warehouse

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/authzed/connector-warehouse/pkg/errdefs"
)

// MemoryWarehouse keeps the warehouse in process memory. It enforces primary
// and natural key uniqueness like the postgres schema does, which makes it
// suitable for dry runs and tests.
//
// Writes are visible to every transaction as soon as they happen; Rollback
// removes the rows a transaction inserted. Identity keys are never reused,
// even after a rollback, and always follow the largest explicit key.
type MemoryWarehouse struct {
	sync.Mutex
	tables map[string]*memTable
}

var _ Warehouse = &MemoryWarehouse{}

type memTable struct {
	rows     map[int64]map[string]interface{}
	identity int64
}

// NewMemoryWarehouse returns an empty in-memory warehouse
func NewMemoryWarehouse() *MemoryWarehouse {
	return &MemoryWarehouse{tables: make(map[string]*memTable)}
}

// Begin opens a new transaction
func (w *MemoryWarehouse) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, errdefs.Storage("begin", err)
	}
	return &memoryTx{w: w}, nil
}

// Rows returns a copy of every row in table, ordered by key. The key is
// included under the table's key column name.
func (w *MemoryWarehouse) Rows(t Table) []map[string]interface{} {
	w.Lock()
	defer w.Unlock()
	mt := w.table(t.Name)
	keys := make([]int64, 0, len(mt.rows))
	for k := range mt.rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]map[string]interface{}, 0, len(keys))
	for _, k := range keys {
		row := map[string]interface{}{t.Key: k}
		for name, v := range mt.rows[k] {
			row[name] = v
		}
		out = append(out, row)
	}
	return out
}

func (w *MemoryWarehouse) table(name string) *memTable {
	mt, ok := w.tables[name]
	if !ok {
		mt = &memTable{rows: make(map[int64]map[string]interface{})}
		w.tables[name] = mt
	}
	return mt
}

type insertedRow struct {
	table string
	key   int64
}

type memoryTx struct {
	w        *MemoryWarehouse
	inserted []insertedRow
	done     bool
}

func (t *memoryTx) check() error {
	if t.done {
		return errdefs.Storage("memory", fmt.Errorf("transaction already closed"))
	}
	return nil
}

func (t *memoryTx) Lookup(ctx context.Context, table Table, match Columns, returning string) (int64, bool, error) {
	if err := t.check(); err != nil {
		return 0, false, err
	}
	t.w.Lock()
	defer t.w.Unlock()

	found := false
	var bestKey, result int64
	for key, row := range t.w.table(table.Name).rows {
		if !rowMatches(row, match) {
			continue
		}
		if found && key > bestKey {
			continue
		}
		v := interface{}(key)
		if returning != table.Key {
			v = row[returning]
		}
		n, ok := asInt64(v)
		if !ok {
			return 0, false, errdefs.Storage("lookup "+table.Name, fmt.Errorf("column %s is not an integer", returning))
		}
		found, bestKey, result = true, key, n
	}
	return result, found, nil
}

func (t *memoryTx) MaxKey(ctx context.Context, table Table) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	t.w.Lock()
	defer t.w.Unlock()
	var max int64
	for key := range t.w.table(table.Name).rows {
		if key > max {
			max = key
		}
	}
	return max, nil
}

func (t *memoryTx) Count(ctx context.Context, table Table) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	t.w.Lock()
	defer t.w.Unlock()
	return int64(len(t.w.table(table.Name).rows)), nil
}

func (t *memoryTx) Insert(ctx context.Context, table Table, key int64, cols Columns) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, errdefs.Storage("insert "+table.Name, err)
	}
	t.w.Lock()
	defer t.w.Unlock()

	mt := t.w.table(table.Name)
	if key <= 0 {
		mt.identity++
		key = mt.identity
	} else if key > mt.identity {
		mt.identity = key
	}
	if _, ok := mt.rows[key]; ok {
		return 0, &UniqueViolationError{
			Table:      table.Name,
			Constraint: table.Name + "_pkey",
			Err:        fmt.Errorf("duplicate key %d", key),
		}
	}

	row := make(map[string]interface{}, len(cols))
	for _, c := range cols {
		row[c.Name] = c.Value
	}
	if len(table.Unique) > 0 {
		natural := make(Columns, 0, len(table.Unique))
		for _, name := range table.Unique {
			natural = append(natural, Column{Name: name, Value: row[name]})
		}
		for _, existing := range mt.rows {
			if rowMatches(existing, natural) {
				return 0, &UniqueViolationError{
					Table:      table.Name,
					Constraint: table.Name + "_natural_key",
					Err:        fmt.Errorf("duplicate natural key %v", natural.Values()),
				}
			}
		}
	}

	mt.rows[key] = row
	t.inserted = append(t.inserted, insertedRow{table: table.Name, key: key})
	return key, nil
}

func (t *memoryTx) Commit(ctx context.Context) error {
	if err := t.check(); err != nil {
		return err
	}
	t.done = true
	t.inserted = nil
	return nil
}

func (t *memoryTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.w.Lock()
	defer t.w.Unlock()
	for _, r := range t.inserted {
		delete(t.w.table(r.table).rows, r.key)
	}
	t.inserted = nil
	return nil
}

func rowMatches(row map[string]interface{}, match Columns) bool {
	for _, c := range match {
		if !valuesEqual(row[c.Name], c.Value) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case decimal.Decimal:
		bv, ok := b.(decimal.Decimal)
		return ok && av.Equal(bv)
	}
	if an, ok := asInt64(a); ok {
		bn, ok := asInt64(b)
		return ok && an == bn
	}
	return a == b
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
