package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/authzed/connector-warehouse/pkg/errdefs"
)

// sqlstate for unique_violation
const uniqueViolationCode = "23505"

// PostgresWarehouse is a Warehouse backed by a pgx pool. The pool is owned by
// the caller.
type PostgresWarehouse struct {
	pool *pgxpool.Pool
}

var _ Warehouse = &PostgresWarehouse{}

// NewPostgresWarehouse returns a warehouse that opens transactions on pool
func NewPostgresWarehouse(pool *pgxpool.Pool) *PostgresWarehouse {
	return &PostgresWarehouse{pool: pool}
}

// Begin opens a new transaction
func (w *PostgresWarehouse) Begin(ctx context.Context) (Tx, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return nil, errdefs.Storage("begin", err)
	}
	return &postgresTx{tx: tx}, nil
}

// CreateSchema creates any missing warehouse tables
func CreateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, SchemaSQL); err != nil {
		return errdefs.Storage("create schema", err)
	}
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) Lookup(ctx context.Context, table Table, match Columns, returning string) (int64, bool, error) {
	conds := make([]string, 0, len(match))
	for i, c := range match {
		conds = append(conds, fmt.Sprintf("%s = $%d", ident(c.Name), i+1))
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT 1",
		ident(returning), ident(table.Name), strings.Join(conds, " AND "), ident(table.Key))

	var v int64
	err := t.tx.QueryRow(ctx, query, match.Values()...).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errdefs.Storage("lookup "+table.Name, err)
	}
	return v, true, nil
}

func (t *postgresTx) MaxKey(ctx context.Context, table Table) (int64, error) {
	var max int64
	query := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s", ident(table.Key), ident(table.Name))
	if err := t.tx.QueryRow(ctx, query).Scan(&max); err != nil {
		return 0, errdefs.Storage("max key "+table.Name, err)
	}
	return max, nil
}

func (t *postgresTx) Count(ctx context.Context, table Table) (int64, error) {
	var n int64
	if err := t.tx.QueryRow(ctx, "SELECT count(*) FROM "+ident(table.Name)).Scan(&n); err != nil {
		return 0, errdefs.Storage("count "+table.Name, err)
	}
	return n, nil
}

func (t *postgresTx) Insert(ctx context.Context, table Table, key int64, cols Columns) (int64, error) {
	if key > 0 {
		cols = append(Columns{{Name: table.Key, Value: key}}, cols...)
	}
	names := make([]string, 0, len(cols))
	params := make([]string, 0, len(cols))
	for i, c := range cols {
		names = append(names, ident(c.Name))
		params = append(params, fmt.Sprintf("$%d", i+1))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		ident(table.Name), strings.Join(names, ", "), strings.Join(params, ", "), ident(table.Key))

	// a failed statement aborts the whole transaction in postgres; the
	// savepoint keeps the open batch usable after a lost race
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return 0, errdefs.Storage("savepoint", err)
	}
	var id int64
	if err := sp.QueryRow(ctx, query, cols.Values()...).Scan(&id); err != nil {
		if rerr := sp.Rollback(ctx); rerr != nil {
			return 0, errdefs.Storage("rollback to savepoint", rerr)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return 0, &UniqueViolationError{Table: table.Name, Constraint: pgErr.ConstraintName, Err: err}
		}
		return 0, errdefs.Storage("insert "+table.Name, err)
	}
	if key > 0 {
		// identity inserts from a later run must not reuse this key
		if err := advanceIdentity(ctx, sp, table, id); err != nil {
			_ = sp.Rollback(ctx)
			return 0, errdefs.Storage("advance identity "+table.Name, err)
		}
	}
	if err := sp.Commit(ctx); err != nil {
		return 0, errdefs.Storage("release savepoint", err)
	}
	return id, nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return errdefs.Storage("commit", err)
	}
	return nil
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return errdefs.Storage("rollback", err)
	}
	return nil
}

// UniqueViolationError is returned by Insert when a row collides with a unique
// constraint. It matches errdefs.ErrUniqueViolation.
type UniqueViolationError struct {
	Table      string
	Constraint string
	Err        error
}

func (e *UniqueViolationError) Error() string {
	if e.Constraint == "" {
		return fmt.Sprintf("insert %s: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("insert %s: %s: %v", e.Table, e.Constraint, e.Err)
}

func (e *UniqueViolationError) Unwrap() error {
	return e.Err
}

// Is matches errdefs.ErrUniqueViolation
func (e *UniqueViolationError) Is(target error) bool {
	return target == errdefs.ErrUniqueViolation
}

// advanceIdentity moves the identity sequence behind table's key column to at
// least key. It never moves the sequence backwards.
func advanceIdentity(ctx context.Context, tx pgx.Tx, table Table, key int64) error {
	var seq *string
	if err := tx.QueryRow(ctx, "SELECT pg_get_serial_sequence($1, $2)", table.Name, table.Key).Scan(&seq); err != nil {
		return err
	}
	if seq == nil {
		return nil
	}
	// seq is quoted by postgres
	_, err := tx.Exec(ctx, fmt.Sprintf("SELECT setval($1::text::regclass, GREATEST($2::bigint, last_value)) FROM %s", *seq), *seq, key)
	return err
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
