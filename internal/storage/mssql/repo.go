// Package mssql implements a Microsoft SQL Server repository using the
// go-mssqldb bulk copy API.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"taxietl/internal/ddl"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN string
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	close := func() { _ = db.Close() }
	return &Repository{db: db}, close, nil
}

// Dialect renders [bracketed] identifiers and SQL Server types.
type Dialect struct{}

// QuoteIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func (Dialect) QuoteIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// MapType implements ddl.Dialect.
func (Dialect) MapType(k ddl.Kind) string {
	switch k {
	case ddl.KindBigInt:
		return "BIGINT"
	case ddl.KindDouble:
		return "FLOAT"
	case ddl.KindTimestamp:
		return "DATETIME2"
	case ddl.KindBoolean:
		return "BIT"
	case ddl.KindText:
		return "NVARCHAR(MAX)"
	default:
		return ""
	}
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() ddl.Dialect { return Dialect{} }

// ReplaceTable drops and recreates def.FQN in one transaction.
func (r *Repository) ReplaceTable(ctx context.Context, def ddl.TableDef) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := replaceTx(ctx, tx, def); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ReplaceWithRows drops, recreates and bulk-copies rows into def.FQN in one
// transaction.
func (r *Repository) ReplaceWithRows(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	if err := replaceTx(ctx, tx, def); err != nil {
		rollback()
		return 0, err
	}
	n, err := bulkTx(ctx, tx, def.FQN, def.Names(), rows)
	if err != nil {
		rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// CopyFrom performs a bulk insert directly into table.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	n, err := bulkTx(ctx, tx, table, columns, rows)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// CountRows returns the row count of table.
func (r *Repository) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT_BIG(*) FROM "+msFQN(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func replaceTx(ctx context.Context, tx *sql.Tx, def ddl.TableDef) error {
	create, err := ddl.BuildCreateTableSQL(Dialect{}, def)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, dropSQL(def.FQN)); err != nil {
		return fmt.Errorf("drop %s: %w", def.FQN, err)
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create %s: %w", def.FQN, err)
	}
	return nil
}

// bulkTx streams rows through a CopyIn statement and flushes it.
func bulkTx(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{Tablock: true}, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// dropSQL uses OBJECT_ID so it also works on servers older than 2016, which
// lack DROP TABLE IF EXISTS.
func dropSQL(fqn string) string {
	lit := strings.ReplaceAll(msFQN(fqn), `'`, `''`)
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s", lit, msFQN(fqn))
}

// msFQN quotes a possibly schema-qualified name like "dbo.zones" to
// "[dbo].[zones]".
func msFQN(name string) string { return ddl.QuoteFQN(Dialect{}, name) }
