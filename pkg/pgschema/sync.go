package pgschema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/authzed/connector-warehouse/pkg/errdefs"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Inspect reads the tables and columns named in expected and fails with a
// configuration error if any of them is missing
func Inspect(ctx context.Context, q Querier, expected map[string][]string) (*Schema, error) {
	tables, err := syncTables(ctx, q, expected)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		cols, err := syncColIds(ctx, q, t.ID)
		if err != nil {
			return nil, err
		}
		t.Cols = cols
	}

	s := &Schema{Tables: tables}
	if missing := s.Missing(expected); len(missing) > 0 {
		sort.Strings(missing)
		return nil, errdefs.Configuration("source database is missing: %s", strings.Join(missing, ", "))
	}
	return s, nil
}

// SyncSchema inspects the schema and records the current tx log sequence
// number. It assumes that conn has the `replication` flag set so that it can
// fetch the position, and will error if not.
func SyncSchema(ctx context.Context, conn *pgxpool.Pool, expected map[string][]string) (*Schema, error) {
	if !strings.Contains(conn.Config().ConnString(), "replication") {
		return nil, fmt.Errorf("SyncSchema called on a non-replication connection")
	}
	if !conn.Config().ConnConfig.PreferSimpleProtocol {
		return nil, fmt.Errorf("SyncSchema can't be called without simple protocol preferred")
	}

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errdefs.Storage("begin", err)
	}
	defer tx.Rollback(ctx)

	s, err := Inspect(ctx, tx, expected)
	if err != nil {
		return nil, err
	}

	// Exec on the underlying pgconn will re-use the current transaction
	id, err := pglogrepl.ParseIdentifySystem(tx.Conn().PgConn().Exec(ctx, "IDENTIFY_SYSTEM"))
	if err != nil {
		return nil, errdefs.Storage("identify system", err)
	}
	s.XLogPos = id.XLogPos
	return s, nil
}

func syncTables(ctx context.Context, q Querier, expected map[string][]string) (map[string]*Table, error) {
	tables := make(map[string]*Table, len(expected))

	rows, err := q.Query(ctx, querySelectTables)
	if err != nil {
		return nil, errdefs.Storage("list tables", err)
	}
	defer rows.Close()
	for rows.Next() {
		var oid uint32
		var name string
		if err := rows.Scan(&oid, &name); err != nil {
			return nil, errdefs.Storage("list tables", err)
		}
		if _, ok := expected[name]; !ok {
			continue
		}
		tables[name] = &Table{
			ID:   oid,
			Name: name,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errdefs.Storage("list tables", err)
	}
	return tables, nil
}

func syncColIds(ctx context.Context, q Querier, oid uint32) ([]Col, error) {
	cols := make([]Col, 0)
	rows, err := q.Query(ctx, querySelectColIds, oid)
	if err != nil {
		return nil, errdefs.Storage("list columns", err)
	}
	defer rows.Close()
	for rows.Next() {
		var colnum int
		var col string
		if err := rows.Scan(&col, &colnum); err != nil {
			return nil, errdefs.Storage("list columns", err)
		}
		cols = append(cols, Col{
			Name: col,
			ID:   colnum,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errdefs.Storage("list columns", err)
	}
	return cols, nil
}
