package e2e

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/require"

	"github.com/authzed/connector-warehouse/pkg/warehouse"
)

//go:embed fixtures/source_schema.sql
var sourceSchema string

const creds = "postgres:secret"

// postgres starts a container with logical replication enabled and returns a
// pool on its default database and the mapped port
func postgres(t testing.TB) (*pgxpool.Pool, string) {
	t.Log("starting postgres")
	defer t.Log("postgres started")
	require := require.New(t)
	pool, err := dockertest.NewPool("")
	require.NoError(err)

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Cmd:        strings.Split("postgres -c wal_level=logical -c max_wal_senders=5 -c max_replication_slots=5", " "),
		Repository: "postgres",
		Tag:        "13.4",
		Env:        []string{"POSTGRES_PASSWORD=secret", "POSTGRES_DB=defaultdb"},
	})
	require.NoError(err)
	t.Cleanup(func() {
		require.NoError(pool.Purge(resource))
	})

	var dbpool *pgxpool.Pool
	port := resource.GetPort("5432/tcp")
	require.NoError(pool.Retry(func() error {
		var err error
		dbpool, err = pgxpool.Connect(context.Background(), fmt.Sprintf("postgres://%s@localhost:%s/defaultdb?sslmode=disable", creds, port))
		if err != nil {
			return err
		}
		return dbpool.Ping(context.Background())
	}))
	t.Cleanup(dbpool.Close)

	return dbpool, port
}

// newTestDB creates an empty database, runs setup in it, and returns its uri
// and a pool on it
func newTestDB(t testing.TB, admin *pgxpool.Pool, port string, setup string) (string, *pgxpool.Pool) {
	require := require.New(t)
	name := "db" + tokenHex(require, 4)
	_, err := admin.Exec(context.Background(), "CREATE DATABASE "+name)
	require.NoError(err)

	connectStr := fmt.Sprintf("postgres://%s@localhost:%s/%s?sslmode=disable", creds, port, name)
	testpool, err := pgxpool.Connect(context.Background(), connectStr)
	require.NoError(err)
	t.Cleanup(testpool.Close)

	if setup != "" {
		_, err = testpool.Exec(context.Background(), setup)
		require.NoError(err)
	}
	t.Log(connectStr)

	return connectStr, testpool
}

// databases returns a seeded source database and an empty warehouse database
// with its tables created
func databases(t testing.TB) (sourceURI string, src *pgxpool.Pool, warehouseURI string, wh *pgxpool.Pool) {
	admin, port := postgres(t)
	sourceURI, src = newTestDB(t, admin, port, sourceSchema)
	warehouseURI, wh = newTestDB(t, admin, port, warehouse.SchemaSQL)
	return
}

func count(t testing.TB, pool *pgxpool.Pool, table string) int {
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT count(*) FROM "+table).Scan(&n))
	return n
}

func tokenHex(require *require.Assertions, nbytes uint8) string {
	token := make([]byte, nbytes)
	_, err := rand.Read(token)
	require.NoError(err)
	return hex.EncodeToString(token)
}
