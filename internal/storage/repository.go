// Package storage is the backend-agnostic sink layer. Concrete backends
// (postgres, sqlite, mssql, mysql) register a Factory at init time; callers
// obtain a Repository through New and stay unaware of the dialect.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"taxietl/internal/ddl"
)

// ErrSinkUnavailable reports that the database could not be reached or
// rejected a statement. It is fatal for the run.
var ErrSinkUnavailable = errors.New("sink unavailable")

// Repository is implemented by every backend.
type Repository interface {
	// Dialect returns the DDL renderer for the backend.
	Dialect() ddl.Dialect

	// ReplaceTable drops def.FQN if it exists and creates it empty.
	ReplaceTable(ctx context.Context, def ddl.TableDef) error

	// CopyFrom appends rows to table with the backend's bulk path and
	// returns the number of rows written. One call is one insert operation.
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// ReplaceWithRows drops, creates and fills def.FQN. Backends with
	// transactional DDL do it atomically; the others document their gap.
	ReplaceWithRows(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error)

	// CountRows returns SELECT COUNT(*) for table.
	CountRows(ctx context.Context, table string) (int64, error)

	Close()
}

// Config selects and parameterizes a backend.
type Config struct {
	Kind string
	DSN  string
}

// Factory constructs a Repository for a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs f for kind. Registering a kind again replaces it.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New builds the repository registered for cfg.Kind. Factory failures are
// wrapped with ErrSinkUnavailable.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	repo, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSinkUnavailable, cfg.Kind, err)
	}
	return repo, nil
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
