package warehouse

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLoggingWarehouse logs every insert and commit at level before delegating
// to w
func NewLoggingWarehouse(w Warehouse, level zerolog.Level) Warehouse {
	return &LoggingWarehouse{w: w, level: level}
}

// LoggingWarehouse will log each write made through its transactions
type LoggingWarehouse struct {
	w     Warehouse
	level zerolog.Level
}

func (l *LoggingWarehouse) Begin(ctx context.Context) (Tx, error) {
	tx, err := l.w.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &loggingTx{Tx: tx, level: l.level}, nil
}

type loggingTx struct {
	Tx
	level zerolog.Level
}

func (t *loggingTx) Insert(ctx context.Context, table Table, key int64, cols Columns) (int64, error) {
	id, err := t.Tx.Insert(ctx, table, key, cols)
	e := log.WithLevel(t.level).Str("table", table.Name).Int64("key", id)
	for _, c := range cols {
		e = e.Interface(c.Name, c.Value)
	}
	if err != nil {
		e = e.Err(err)
	}
	e.Msg("insert")
	return id, err
}

func (t *loggingTx) Commit(ctx context.Context) error {
	err := t.Tx.Commit(ctx)
	log.WithLevel(t.level).Err(err).Msg("commit")
	return err
}
