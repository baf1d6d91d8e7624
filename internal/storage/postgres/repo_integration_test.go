//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"taxietl/internal/ddl"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithUsername("root"),
		tcpostgres.WithPassword("root"),
		tcpostgres.WithDatabase("ny_taxi"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestRepositoryIntegration(t *testing.T) {
	dsn := startPostgres(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, closeFn, err := NewRepository(ctx, Config{DSN: dsn})
	require.NoError(t, err)
	defer closeFn()

	def := ddl.TableDef{FQN: "yellow_taxi_data", Columns: []ddl.ColumnDef{
		{Name: "VendorID", Kind: ddl.KindBigInt, Nullable: true},
		{Name: "tpep_pickup_datetime", Kind: ddl.KindTimestamp, Nullable: true},
		{Name: "fare_amount", Kind: ddl.KindDouble, Nullable: true},
		{Name: "store_and_fwd_flag", Kind: ddl.KindText, Nullable: true},
	}}
	pickup := time.Date(2021, 1, 1, 0, 30, 10, 0, time.UTC)

	require.NoError(t, repo.ReplaceTable(ctx, def))
	n, err := repo.CopyFrom(ctx, def.FQN, def.Names(), [][]any{
		{int64(1), pickup, 8.0, "N"},
		{nil, nil, nil, nil},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.CountRows(ctx, def.FQN)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	// Replacing discards earlier rows.
	require.NoError(t, repo.ReplaceTable(ctx, def))
	n, err = repo.CountRows(ctx, def.FQN)
	require.NoError(t, err)
	assert.Zero(t, n)

	zones := ddl.TableDef{FQN: "zones", Columns: []ddl.ColumnDef{
		{Name: "LocationID", Kind: ddl.KindBigInt, Nullable: true},
		{Name: "Borough", Kind: ddl.KindText, Nullable: true},
	}}
	n, err = repo.ReplaceWithRows(ctx, zones, [][]any{{int64(1), "EWR"}, {int64(2), "Queens"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = repo.ReplaceWithRows(ctx, zones, [][]any{{int64(3), "Bronx"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = repo.CountRows(ctx, "zones")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
