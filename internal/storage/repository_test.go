package storage

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"taxietl/internal/ddl"
	"taxietl/internal/schema"
	"taxietl/internal/transformer"
)

// fakeRepo records calls and can be told to fail.
type fakeRepo struct {
	closed    bool
	replaced  []ddl.TableDef
	copies    [][][]any
	copyCols  [][]string
	failCopy  error
	failDDL   error
	rowsTotal int64
}

func (f *fakeRepo) Dialect() ddl.Dialect { return ddl.ANSI{} }
func (f *fakeRepo) ReplaceTable(ctx context.Context, def ddl.TableDef) error {
	if f.failDDL != nil {
		return f.failDDL
	}
	f.replaced = append(f.replaced, def)
	f.rowsTotal = 0
	return nil
}
func (f *fakeRepo) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if f.failCopy != nil {
		return 0, f.failCopy
	}
	cp := make([][]any, len(rows))
	for i, r := range rows {
		cp[i] = append([]any(nil), r...)
	}
	f.copies = append(f.copies, cp)
	f.copyCols = append(f.copyCols, columns)
	f.rowsTotal += int64(len(rows))
	return int64(len(rows)), nil
}
func (f *fakeRepo) ReplaceWithRows(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error) {
	if err := f.ReplaceTable(ctx, def); err != nil {
		return 0, err
	}
	return f.CopyFrom(ctx, def.FQN, def.Names(), rows)
}
func (f *fakeRepo) CountRows(ctx context.Context, table string) (int64, error) {
	return f.rowsTotal, nil
}
func (f *fakeRepo) Close()                                     { f.closed = true }

// TestRegisterAndNew_Success verifies that registering a backend enables New()
// to return the corresponding repository.
func TestRegisterAndNew_Success(t *testing.T) {
	t.Parallel()

	kind := "fake"
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		return &fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: kind})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if repo == nil {
		t.Fatalf("New returned nil repo")
	}

	found := false
	for _, k := range ListKinds() {
		if k == kind {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("registered kind %q not present in ListKinds: %v", kind, ListKinds())
	}
}

// TestNew_Unsupported verifies that unsupported kinds return a helpful error.
func TestNew_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	if err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
	if got, want := err.Error(), "unsupported storage.kind=does-not-exist"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
}

// TestRegister_Override verifies that re-registering a kind replaces the
// previous factory.
func TestRegister_Override(t *testing.T) {
	t.Parallel()

	kind := "override"
	calls := 0
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		calls++
		return &fakeRepo{}, nil
	})
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		calls += 10
		return &fakeRepo{}, nil
	})

	if _, err := New(context.Background(), Config{Kind: kind}); err != nil {
		t.Fatalf("New error: %v", err)
	}
	if calls != 10 {
		t.Fatalf("factory call count = %d, want 10", calls)
	}
}

// TestListKinds_Snapshot checks that ListKinds returns a copy.
func TestListKinds_Snapshot(t *testing.T) {
	t.Parallel()

	Register("snap", func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil })

	a := ListKinds()
	if len(a) == 0 {
		t.Fatalf("ListKinds empty after registration")
	}
	a[0] = "mutated"
	if reflect.DeepEqual(a, ListKinds()) {
		t.Fatalf("ListKinds returned same slice; want snapshot copy")
	}
}

// TestNew_FactoryErrorIsSinkUnavailable shows factory errors bubble up and
// are classified as sink failures.
func TestNew_FactoryErrorIsSinkUnavailable(t *testing.T) {
	t.Parallel()

	want := errors.New("connection refused")
	Register("errkind", func(ctx context.Context, cfg Config) (Repository, error) {
		return nil, want
	})

	_, err := New(context.Background(), Config{Kind: "errkind"})
	if !errors.Is(err, want) || !errors.Is(err, ErrSinkUnavailable) {
		t.Fatalf("err = %v; want both cause and ErrSinkUnavailable", err)
	}
}

func normalizedBatch(rows int) *transformer.Batch {
	b := transformer.NewBatch([]string{"VendorID", "store_and_fwd_flag", "fare_amount", "extra_col"}, rows)
	for i := 0; i < rows; i++ {
		r := b.NewRow()
		r.V[0] = int64(i)
		r.V[1] = "N"
		r.V[2] = float64(i) + 0.5
		r.V[3] = int64(i)
	}
	return b
}

func TestWriter_EnsureSchemaThenAppend(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	w := NewWriter(repo, "yellow_taxi_data", schema.YellowTrips())
	ctx := context.Background()

	b := normalizedBatch(3)
	defer b.Release()

	def, err := w.EnsureSchema(ctx, b)
	if err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if len(repo.replaced) != 1 || def.FQN != "yellow_taxi_data" {
		t.Fatalf("replaced = %+v", repo.replaced)
	}
	if len(repo.copies) != 0 {
		t.Fatalf("EnsureSchema must not write rows")
	}
	wantKinds := []ddl.Kind{ddl.KindBigInt, ddl.KindText, ddl.KindDouble, ddl.KindBigInt}
	if !reflect.DeepEqual(def.Kinds(), wantKinds) {
		t.Fatalf("kinds = %v, want %v", def.Kinds(), wantKinds)
	}

	n, err := w.AppendRows(ctx, b)
	if err != nil || n != 3 {
		t.Fatalf("AppendRows = %d, %v", n, err)
	}
	if len(repo.copies) != 1 || len(repo.copies[0]) != 3 {
		t.Fatalf("copies = %v", repo.copies)
	}
}

func TestWriter_ConformsLaterBatches(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	w := NewWriter(repo, "t", schema.Registry{})
	ctx := context.Background()

	first := transformer.NewBatch([]string{"code", "amount"}, 1)
	r := first.NewRow()
	r.V[0], r.V[1] = "A1", 2.5
	if _, err := w.EnsureSchema(ctx, first); err != nil {
		t.Fatal(err)
	}
	first.Release()

	// A later batch whose inferred types differ is conformed to the table.
	later := transformer.NewBatch([]string{"code", "amount"}, 1)
	r = later.NewRow()
	r.V[0], r.V[1] = int64(7), int64(3)
	if _, err := w.AppendRows(ctx, later); err != nil {
		t.Fatal(err)
	}
	later.Release()

	got := repo.copies[0][0]
	if got[0] != "7" || got[1] != 3.0 {
		t.Fatalf("conformed row = %#v", got)
	}
}

func TestWriter_ErrorsAreSinkUnavailable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := normalizedBatch(1)
	defer b.Release()

	w := NewWriter(&fakeRepo{failDDL: errors.New("permission denied")}, "t", schema.YellowTrips())
	if _, err := w.EnsureSchema(ctx, b); !errors.Is(err, ErrSinkUnavailable) {
		t.Fatalf("EnsureSchema err = %v", err)
	}

	w = NewWriter(&fakeRepo{failCopy: errors.New("connection reset")}, "t", schema.YellowTrips())
	_, err := w.AppendRows(ctx, b)
	if !errors.Is(err, ErrSinkUnavailable) || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("AppendRows err = %v", err)
	}

	w = NewWriter(&fakeRepo{}, "t", schema.YellowTrips())
	if _, err := w.EnsureSchema(ctx, b); err != nil {
		t.Fatal(err)
	}
	narrow := transformer.NewBatch([]string{"VendorID"}, 1)
	narrow.NewRow().V[0] = int64(1)
	defer narrow.Release()
	if _, err := w.AppendRows(ctx, narrow); !errors.Is(err, ErrSinkUnavailable) {
		t.Fatalf("column mismatch err = %v", err)
	}
}

func TestWriter_EmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	w := NewWriter(repo, "t", schema.YellowTrips())
	n, err := w.AppendRows(context.Background(), transformer.NewBatch([]string{"a"}, 0))
	if n != 0 || err != nil || len(repo.copies) != 0 {
		t.Fatalf("AppendRows(empty) = %d, %v, copies=%d", n, err, len(repo.copies))
	}
}
