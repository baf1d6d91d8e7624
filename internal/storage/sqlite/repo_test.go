package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"taxietl/internal/ddl"
	"taxietl/internal/storage"
)

func openTemp(t *testing.T) *Repository {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "ny_taxi.db")
	repo, closeFn, err := NewRepository(context.Background(), Config{DSN: dsn})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(closeFn)
	return repo
}

func tripsDef() ddl.TableDef {
	return ddl.TableDef{FQN: "yellow_taxi_data", Columns: []ddl.ColumnDef{
		{Name: "VendorID", Kind: ddl.KindBigInt, Nullable: true},
		{Name: "tpep_pickup_datetime", Kind: ddl.KindTimestamp, Nullable: true},
		{Name: "fare_amount", Kind: ddl.KindDouble, Nullable: true},
		{Name: "store_and_fwd_flag", Kind: ddl.KindText, Nullable: true},
	}}
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

func TestReplaceTableAndCopyFrom(t *testing.T) {
	t.Parallel()

	repo := openTemp(t)
	ctx := context.Background()
	def := tripsDef()

	if err := repo.ReplaceTable(ctx, def); err != nil {
		t.Fatalf("ReplaceTable: %v", err)
	}
	pickup := time.Date(2021, 1, 1, 0, 30, 10, 0, time.UTC)
	rows := [][]any{
		{int64(1), pickup, 8.0, "N"},
		{int64(2), pickup.Add(time.Minute), 12.5, nil},
		{nil, nil, nil, nil},
	}
	n, err := repo.CopyFrom(ctx, def.FQN, def.Names(), rows)
	if err != nil || n != 3 {
		t.Fatalf("CopyFrom = %d, %v", n, err)
	}
	if n, err = repo.CopyFrom(ctx, def.FQN, def.Names(), rows[:1]); err != nil || n != 1 {
		t.Fatalf("second CopyFrom = %d, %v", n, err)
	}
	if got, _ := repo.CountRows(ctx, def.FQN); got != 4 {
		t.Fatalf("CountRows = %d, want 4", got)
	}

	var fare float64
	var flag *string
	if err := repo.db.QueryRowContext(ctx,
		`SELECT fare_amount, store_and_fwd_flag FROM yellow_taxi_data WHERE VendorID = 2`).Scan(&fare, &flag); err != nil {
		t.Fatal(err)
	}
	if fare != 12.5 || flag != nil {
		t.Fatalf("row = %v, %v", fare, flag)
	}

	// Replacing truncates through DROP+CREATE.
	if err := repo.ReplaceTable(ctx, def); err != nil {
		t.Fatal(err)
	}
	if got, _ := repo.CountRows(ctx, def.FQN); got != 0 {
		t.Fatalf("CountRows after replace = %d", got)
	}
}

func TestCopyFrom_Errors(t *testing.T) {
	t.Parallel()

	repo := openTemp(t)
	ctx := context.Background()
	def := tripsDef()
	if err := repo.ReplaceTable(ctx, def); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.CopyFrom(ctx, def.FQN, nil, [][]any{{1}}); err == nil {
		t.Fatalf("expected error for empty columns")
	}
	if n, err := repo.CopyFrom(ctx, def.FQN, def.Names(), nil); n != 0 || err != nil {
		t.Fatalf("CopyFrom(nil rows) = %d, %v", n, err)
	}
	// A short row rolls back the whole call.
	_, err := repo.CopyFrom(ctx, def.FQN, def.Names(), [][]any{{int64(1), nil, 1.0, "N"}, {int64(2)}})
	if err == nil || !strings.Contains(err.Error(), "row length") {
		t.Fatalf("err = %v", err)
	}
	if got, _ := repo.CountRows(ctx, def.FQN); got != 0 {
		t.Fatalf("partial insert committed: %d rows", got)
	}
	if _, err := repo.CopyFrom(ctx, "missing_table", []string{"a"}, [][]any{{1}}); err == nil {
		t.Fatalf("expected error for missing table")
	}
}

func TestReplaceWithRows(t *testing.T) {
	t.Parallel()

	repo := openTemp(t)
	ctx := context.Background()
	def := ddl.TableDef{FQN: "zones", Columns: []ddl.ColumnDef{
		{Name: "LocationID", Kind: ddl.KindBigInt, Nullable: true},
		{Name: "Borough", Kind: ddl.KindText, Nullable: true},
	}}

	n, err := repo.ReplaceWithRows(ctx, def, [][]any{{int64(1), "EWR"}, {int64(2), "Queens"}})
	if err != nil || n != 2 {
		t.Fatalf("ReplaceWithRows = %d, %v", n, err)
	}
	n, err = repo.ReplaceWithRows(ctx, def, [][]any{{int64(3), "Bronx"}})
	if err != nil || n != 1 {
		t.Fatalf("second ReplaceWithRows = %d, %v", n, err)
	}
	if got, _ := repo.CountRows(ctx, "zones"); got != 1 {
		t.Fatalf("CountRows = %d, want 1", got)
	}

	// A failed replace leaves the previous table intact.
	bad := ddl.TableDef{FQN: "zones", Columns: def.Columns}
	if _, err := repo.ReplaceWithRows(ctx, bad, [][]any{{int64(4)}}); err == nil {
		t.Fatalf("expected error for short row")
	}
	if got, _ := repo.CountRows(ctx, "zones"); got != 1 {
		t.Fatalf("CountRows after failed replace = %d, want 1", got)
	}
}

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	got := insertSQL("main.zones", []string{"LocationID", "Zone"})
	want := `INSERT INTO "main"."zones" ("LocationID", "Zone") VALUES (?, ?)`
	if got != want {
		t.Fatalf("insertSQL = %q, want %q", got, want)
	}
}

func TestDialect_MapType(t *testing.T) {
	t.Parallel()

	cases := map[ddl.Kind]string{
		ddl.KindBigInt:    "INTEGER",
		ddl.KindBoolean:   "INTEGER",
		ddl.KindDouble:    "REAL",
		ddl.KindText:      "TEXT",
		ddl.KindTimestamp: "TIMESTAMP",
		ddl.Kind("blob"):  "",
	}
	for k, want := range cases {
		if got := (Dialect{}).MapType(k); got != want {
			t.Fatalf("MapType(%s) = %q, want %q", k, got, want)
		}
	}
}

// TestAdapter_Registration goes through the storage factory with a real
// database file.
func TestAdapter_Registration(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "adapter.db")
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer repo.Close()
	if _, ok := repo.Dialect().(Dialect); !ok {
		t.Fatalf("Dialect = %T, want sqlite.Dialect", repo.Dialect())
	}
	if n, err := repo.CountRows(context.Background(), "sqlite_master"); err != nil || n != 0 {
		t.Fatalf("CountRows(sqlite_master) = %d, %v", n, err)
	}
}
