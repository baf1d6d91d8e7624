// Package postgres implements storage.Repository with pgx v5. Appends use the
// COPY protocol; table replacement runs DROP and CREATE in one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxietl/internal/ddl"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN string // connection string for pgxpool
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository connects, pings, and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", describe(err))
	}
	close := func() { pool.Close() }
	return &Repository{pool: pool}, close, nil
}

// Dialect is the Postgres DDL dialect.
type Dialect struct{ ddl.ANSI }

// MapType maps timestamps to TIMESTAMP WITHOUT TIME ZONE, matching naive
// source values; other kinds use the ANSI names.
func (Dialect) MapType(k ddl.Kind) string {
	if k == ddl.KindTimestamp {
		return "TIMESTAMP WITHOUT TIME ZONE"
	}
	return ddl.ANSI{}.MapType(k)
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() ddl.Dialect { return Dialect{} }

// ReplaceTable drops and recreates def.FQN in one transaction.
func (r *Repository) ReplaceTable(ctx context.Context, def ddl.TableDef) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return replaceTx(ctx, tx, def)
	})
}

// ReplaceWithRows drops, recreates and COPYs rows into def.FQN in one
// transaction.
func (r *Repository) ReplaceWithRows(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error) {
	var n int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := replaceTx(ctx, tx, def); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		var err error
		n, err = tx.CopyFrom(ctx, identifier(def.FQN), def.Names(), pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("copy into %s: %w", def.FQN, describe(err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func replaceTx(ctx context.Context, tx pgx.Tx, def ddl.TableDef) error {
	d := Dialect{}
	drop, err := ddl.BuildDropTableSQL(d, def.FQN)
	if err != nil {
		return err
	}
	create, err := ddl.BuildCreateTableSQL(d, def)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, drop); err != nil {
		return fmt.Errorf("drop %s: %w", def.FQN, describe(err))
	}
	if _, err := tx.Exec(ctx, create); err != nil {
		return fmt.Errorf("create %s: %w", def.FQN, describe(err))
	}
	return nil
}

// CopyFrom appends rows to table with COPY.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, describe(err))
	}
	return n, nil
}

// CountRows returns the row count of table.
func (r *Repository) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	q := "SELECT COUNT(*) FROM " + ddl.QuoteFQN(Dialect{}, table)
	if err := r.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, describe(err))
	}
	return n, nil
}

// identifier converts "schema.table" into a pgx.Identifier.
func identifier(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

// describe adds the server detail and SQLSTATE to Postgres errors.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (detail: %s, sqlstate %s)", err, pgErr.Detail, pgErr.SQLState())
	}
	return err
}
