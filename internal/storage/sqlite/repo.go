// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the pure-Go modernc driver. Appends are prepared INSERTs
// inside a transaction; SQLite has no bulk-load API like Postgres COPY.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"taxietl/internal/ddl"
)

// Config holds SQLite repository configuration.
type Config struct {
	// DSN is a file path or URI, e.g. "ny_taxi.db" or "file:ny_taxi.db?cache=shared".
	DSN string
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository opens the database, pings it, and returns a Close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer at a time; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Dialect maps kinds onto SQLite type affinities.
type Dialect struct{ ddl.ANSI }

// MapType implements ddl.Dialect.
func (Dialect) MapType(k ddl.Kind) string {
	switch k {
	case ddl.KindBigInt, ddl.KindBoolean:
		return "INTEGER"
	case ddl.KindDouble:
		return "REAL"
	case ddl.KindTimestamp:
		return "TIMESTAMP"
	case ddl.KindText:
		return "TEXT"
	default:
		return ""
	}
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() ddl.Dialect { return Dialect{} }

// ReplaceTable drops and recreates def.FQN in one transaction.
func (r *Repository) ReplaceTable(ctx context.Context, def ddl.TableDef) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return replaceTx(ctx, tx, def)
	})
}

// ReplaceWithRows drops, recreates and fills def.FQN in one transaction.
func (r *Repository) ReplaceWithRows(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error) {
	var n int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := replaceTx(ctx, tx, def); err != nil {
			return err
		}
		var err error
		n, err = insertTx(ctx, tx, def.FQN, def.Names(), rows)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CopyFrom inserts rows into table in a single transaction with a prepared
// statement.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	var n int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = insertTx(ctx, tx, table, columns, rows)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CountRows returns the row count of table.
func (r *Repository) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	q := "SELECT COUNT(*) FROM " + ddl.QuoteFQN(Dialect{}, table)
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count %s: %w", table, err)
	}
	return n, nil
}

func (r *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func replaceTx(ctx context.Context, tx *sql.Tx, def ddl.TableDef) error {
	d := Dialect{}
	drop, err := ddl.BuildDropTableSQL(d, def.FQN)
	if err != nil {
		return err
	}
	create, err := ddl.BuildCreateTableSQL(d, def)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, drop); err != nil {
		return fmt.Errorf("sqlite: drop %s: %w", def.FQN, err)
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("sqlite: create %s: %w", def.FQN, err)
	}
	return nil
}

func insertTx(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL(table, columns))
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			return inserted, fmt.Errorf("sqlite: row length %d != columns length %d", len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return inserted, fmt.Errorf("sqlite: insert row %d: %w", inserted, err)
		}
		inserted++
	}
	return inserted, nil
}

// insertSQL renders INSERT INTO <table> (<cols>) VALUES (?, ?, ...).
func insertSQL(table string, columns []string) string {
	d := Dialect{}
	cols := make([]string, len(columns))
	ph := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = d.QuoteIdent(c)
		ph[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ddl.QuoteFQN(d, table), strings.Join(cols, ", "), strings.Join(ph, ", "))
}
