package load

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/authzed/connector-warehouse/pkg/errdefs"
	"github.com/authzed/connector-warehouse/pkg/metrics"
	"github.com/authzed/connector-warehouse/pkg/trip"
	"github.com/authzed/connector-warehouse/pkg/warehouse"
)

// DefaultBatchSize is the number of processed trips per commit
const DefaultBatchSize = 100

// Stats counts what a run did
type Stats struct {
	// Read counts records taken from the source, malformed ones included
	Read int
	// Processed counts trips whose fact row was resolved
	Processed int
	Inserted  int
	Existing  int
	Skipped   int
	// Committed counts processed trips whose batch has been committed
	Committed int
}

// MarshalZerologObject satisfies the zerolog.LogObjectMarshaler interface
func (s Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Int("read", s.Read)
	e.Int("processed", s.Processed)
	e.Int("inserted", s.Inserted)
	e.Int("existing", s.Existing)
	e.Int("skipped", s.Skipped)
	e.Int("committed", s.Committed)
}

// Pipeline drains a source into the warehouse through a Loader, committing
// every batchSize processed trips
type Pipeline struct {
	w         warehouse.Warehouse
	loader    *Loader
	feed      trip.Feed
	batchSize int
	prepared  bool
}

// NewPipeline returns a pipeline for feed. A batchSize below 1 uses
// DefaultBatchSize.
func NewPipeline(w warehouse.Warehouse, loader *Loader, feed trip.Feed, batchSize int) *Pipeline {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{w: w, loader: loader, feed: feed, batchSize: batchSize}
}

// Prepare commits whatever the loader's vessel resolver needs in place before
// trips are loaded. Run calls it if it hasn't been called yet.
func (p *Pipeline) Prepare(ctx context.Context) error {
	if p.prepared {
		return nil
	}
	preparer, ok := p.loader.vessels.(Preparer)
	if !ok {
		p.prepared = true
		return nil
	}

	tx, err := p.w.Begin(ctx)
	if err != nil {
		return errdefs.Storage("begin", err)
	}
	defer tx.Rollback(ctx)

	if err := preparer.Prepare(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errdefs.Storage("commit", err)
	}
	p.prepared = true
	return nil
}

// Run loads every trip src yields. Malformed records are logged and skipped;
// any other failure rolls back the open batch and stops the run, leaving
// earlier batches committed.
func (p *Pipeline) Run(ctx context.Context, src trip.Source) (Stats, error) {
	var stats Stats
	if err := p.Prepare(ctx); err != nil {
		return stats, err
	}

	tx, err := p.w.Begin(ctx)
	if err != nil {
		return stats, errdefs.Storage("begin", err)
	}
	// tx is replaced after every commit; rollback is a no-op on committed txs
	defer func() { tx.Rollback(ctx) }()

	pending := 0
	commit := func() error {
		start := time.Now()
		if err := tx.Commit(ctx); err != nil {
			return errdefs.Storage("commit", err)
		}
		metrics.BatchCommitDuration.WithLabelValues(string(p.feed)).Observe(time.Since(start).Seconds())
		stats.Committed += pending
		pending = 0
		log.Info().Str("feed", string(p.feed)).EmbedObject(stats).Msg("committed batch")
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		t, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if errdefs.IsValidation(err) {
			stats.Read++
			p.skip(&stats, err)
			continue
		}
		if err != nil {
			return stats, err
		}
		stats.Read++

		_, created, err := p.loader.Load(ctx, tx, t)
		if errdefs.IsValidation(err) {
			p.skip(&stats, err)
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("loading trip %s: %w", t.ID, err)
		}

		stats.Processed++
		pending++
		result := "existing"
		if created {
			stats.Inserted++
			result = "inserted"
		} else {
			stats.Existing++
		}
		metrics.FactsTotal.WithLabelValues(string(p.feed), result).Inc()
		log.Trace().EmbedObject(t).Bool("created", created).Msg("loaded trip")

		if pending >= p.batchSize {
			if err := commit(); err != nil {
				return stats, err
			}
			next, err := p.w.Begin(ctx)
			if err != nil {
				return stats, errdefs.Storage("begin", err)
			}
			tx = next
		}
	}

	if pending > 0 {
		if err := commit(); err != nil {
			return stats, err
		}
	}
	log.Info().Str("feed", string(p.feed)).EmbedObject(stats).Msg("run complete")
	return stats, nil
}

func (p *Pipeline) skip(stats *Stats, err error) {
	stats.Skipped++
	metrics.RecordsSkippedTotal.WithLabelValues(string(p.feed)).Inc()
	log.Warn().Str("feed", string(p.feed)).Err(err).Msg("skipping malformed record")
}
