package e2e

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	importercmd "github.com/authzed/connector-warehouse/pkg/cmd/importer"
	"github.com/authzed/connector-warehouse/pkg/cmd/run"
	"github.com/authzed/connector-warehouse/pkg/config"
	"github.com/authzed/connector-warehouse/pkg/importer"
	"github.com/authzed/connector-warehouse/pkg/load"
	"github.com/authzed/connector-warehouse/pkg/streams"
	"github.com/authzed/connector-warehouse/pkg/warehouse"
)

func noneChanged(string) bool { return false }

type factRow struct {
	Duration    int
	Class       string
	Fees        decimal.Decimal
	Containers  int64
	CargoWeight decimal.Decimal
	TEU         decimal.Decimal
	Year        int
	Month       int
	Quarter     int
	Half        int
	Vessel      string
	Carrier     string
}

func fact(t testing.TB, wh *pgxpool.Pool, feed, id string) factRow {
	var f factRow
	require.NoError(t, wh.QueryRow(context.Background(), `
		SELECT v.duracaoviagem, cd.duracao, v.totaltaxas, v.numerocontentores,
		       v.pesototalcontentores, v.teutotal, t.ano, t.mes, t.trimestre, t.semestre,
		       b.nome, e.nome
		FROM   viagens v
		JOIN   classeduracao cd ON cd.idclasseduracao = v.classeduracao_idclasseduracao
		JOIN   tempo t ON t.idtempo = v.tempo_idtempo
		JOIN   barco b ON b.idbarco = v.barco_idbarco
		JOIN   empresabarco e ON e.idempresa_barco = b.empresabarco_idempresa_barco
		WHERE  v.origem = $1 AND v.viagem_id_origem = $2`, feed, id).Scan(
		&f.Duration, &f.Class, &f.Fees, &f.Containers, &f.CargoWeight, &f.TEU,
		&f.Year, &f.Month, &f.Quarter, &f.Half, &f.Vessel, &f.Carrier,
	))
	return f
}

func TestRelationalImport(t *testing.T) {
	for _, policy := range []string{"explicit", "identity"} {
		policy := policy
		t.Run(policy, func(t *testing.T) {
			require := require.New(t)
			ctx := context.Background()
			sourceURI, _, warehouseURI, wh := databases(t)

			testIO, _, _, _ := streams.NewTestIO()
			o := importercmd.NewOptions(testIO)
			o.Source.URI = sourceURI
			o.Warehouse.URI = warehouseURI
			o.Pipeline.KeyPolicy = policy
			require.NoError(o.Complete(func(name string) bool { return name == "key-policy" }))
			require.NoError(o.Run(ctx))

			// trip 3 is not completed and trip 4 departs from elsewhere
			require.Equal(2, count(t, wh, "viagens"))
			require.Equal(1, count(t, wh, "localizacao"))
			require.Equal(2, count(t, wh, "condutor"))
			require.Equal(2, count(t, wh, "barco"))
			require.Equal(2, count(t, wh, "empresabarco"))

			f := fact(t, wh, "relational", "1")
			require.Equal(9, f.Duration)
			require.Equal("8-15", f.Class)
			require.True(decimal.RequireFromString("120.50").Equal(f.Fees), f.Fees.String())
			require.Equal(int64(3), f.Containers)
			require.True(decimal.NewFromInt(4500).Equal(f.CargoWeight), f.CargoWeight.String())
			require.True(decimal.NewFromInt(60).Equal(f.TEU), f.TEU.String())
			require.Equal([]int{2024, 1, 1, 1}, []int{f.Year, f.Month, f.Quarter, f.Half})
			require.Equal("Aurora", f.Vessel)
			require.Equal("MSC", f.Carrier)

			// a second run finds every row in place
			require.NoError(o.Run(ctx))
			require.Equal(2, count(t, wh, "viagens"))
			require.Equal(2, count(t, wh, "barco"))
			require.Equal(2, count(t, wh, "tempo"))
		})
	}
}

func TestFlatFileAfterRelational(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	_, src, _, wh := databases(t)

	c := config.Default()
	c.RequireVesselDirectory = true
	w := warehouse.NewPostgresWarehouse(wh)

	_, err := importer.NewFlatFileImporter("fixtures/export.csv", w, c).Import(ctx)
	require.Error(err, "the vessel directory is empty before the relational import")
	require.Equal(0, count(t, wh, "viagens"))

	_, err = importer.NewRelationalImporter(src, w, c).Import(ctx)
	require.NoError(err)

	stats, err := importer.NewFlatFileImporter("fixtures/export.csv", w, c).Import(ctx)
	require.NoError(err)
	require.Equal(load.Stats{Read: 3, Processed: 2, Inserted: 2, Skipped: 1, Committed: 2}, stats)

	// known vessels resolve through the directory, unknown ones to the sentinel
	require.Equal("Aurora", fact(t, wh, "flatfile", "501").Vessel)
	require.Equal("MSC", fact(t, wh, "flatfile", "501").Carrier)
	unknown := fact(t, wh, "flatfile", "502")
	require.Equal("unknown", unknown.Vessel)
	require.Equal("unknown", unknown.Carrier)
	require.True(decimal.NewFromInt(1010).Equal(unknown.Fees))
	require.Equal("0-7", unknown.Class)

	// relational and flat-file trips with the same source id stay apart
	require.Equal(4, count(t, wh, "viagens"))
}

func TestMixedKeyPolicies(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	_, src, _, wh := databases(t)
	w := warehouse.NewPostgresWarehouse(wh)

	explicit := config.Default()
	explicit.KeyPolicy = "explicit"
	_, err := importer.NewRelationalImporter(src, w, explicit).Import(ctx)
	require.NoError(err)

	// identity keys continue after the explicit ones
	stats, err := importer.NewFlatFileImporter("fixtures/export.csv", w, config.Default()).Import(ctx)
	require.NoError(err)
	require.Equal(2, stats.Inserted)
	require.Equal(4, count(t, wh, "viagens"))

	var maxKey int64
	require.NoError(wh.QueryRow(ctx, "SELECT MAX(idtempo) FROM tempo").Scan(&maxKey))
	require.Equal(int64(count(t, wh, "tempo")), maxKey)
}

func TestConcurrentImports(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	_, src, _, wh := databases(t)

	c := config.Default()
	c.BatchSize = 1
	w := warehouse.NewPostgresWarehouse(wh)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := importer.NewRelationalImporter(src, w, c).Import(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(err)
	}

	require.Equal(2, count(t, wh, "viagens"))
	require.Equal(1, count(t, wh, "localizacao"))
	require.Equal(2, count(t, wh, "condutor"))
	require.Equal(2, count(t, wh, "barco"))
	require.Equal(2, count(t, wh, "empresabarco"))
	require.Equal(1, count(t, wh, "tipo_viagem"))
}

func TestFollowCompletedTrips(t *testing.T) {
	require := require.New(t)
	sourceURI, src, warehouseURI, wh := databases(t)

	testIO, _, _, _ := streams.NewTestIO()
	o := run.NewOptions(testIO)
	o.Source.URI = sourceURI
	o.Warehouse.URI = warehouseURI
	o.MetricsAddr = ""
	o.Publication = "e2e_trips"
	require.NoError(o.Complete(noneChanged))

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: o.Out})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- o.Run(ctx)
	}()

	require.Eventually(func() bool { return count(t, wh, "viagens") == 2 }, 30*time.Second, 100*time.Millisecond)
	// give the follower time to start streaming after the backfill
	time.Sleep(2 * time.Second)

	_, err := src.Exec(context.Background(), "UPDATE viagem SET status = 'concluida' WHERE idviagem = 3")
	require.NoError(err)
	require.Eventually(func() bool { return count(t, wh, "viagens") == 3 }, 30*time.Second, 100*time.Millisecond)

	f := fact(t, wh, "relational", "3")
	require.Equal(19, f.Duration)
	require.Equal("16-30", f.Class)
	require.Equal("Boreas", f.Vessel)

	cancel()
	select {
	case err := <-done:
		require.NoError(err)
	case <-time.After(30 * time.Second):
		t.Fatal("run did not stop")
	}
}
