// Package mysql provides a MySQL-backed storage.Repository implementation on
// go-sql-driver/mysql. Appends are multi-row INSERT statements, chunked to
// stay under the server's placeholder limit.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"taxietl/internal/ddl"
)

// maxPlaceholders is the prepared-statement parameter limit of MySQL.
const maxPlaceholders = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN string // go-sql-driver DSN, e.g. "user:pass@tcp(host:3306)/ny_taxi?parseTime=true"
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository validates the DSN, opens a pool, pings it and returns a
// Close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	mc.ParseTime = true
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	close := func() { _ = db.Close() }
	return &Repository{db: db}, close, nil
}

// Dialect renders `backticked` identifiers and MySQL types.
type Dialect struct{}

// QuoteIdent implements ddl.Dialect.
func (Dialect) QuoteIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// MapType implements ddl.Dialect.
func (Dialect) MapType(k ddl.Kind) string {
	switch k {
	case ddl.KindBigInt:
		return "BIGINT"
	case ddl.KindDouble:
		return "DOUBLE"
	case ddl.KindTimestamp:
		return "DATETIME(6)"
	case ddl.KindBoolean:
		return "TINYINT(1)"
	case ddl.KindText:
		return "TEXT"
	default:
		return ""
	}
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() ddl.Dialect { return Dialect{} }

// ReplaceTable drops and recreates def.FQN. MySQL commits DDL implicitly, so
// the two statements are not atomic.
func (r *Repository) ReplaceTable(ctx context.Context, def ddl.TableDef) error {
	d := Dialect{}
	drop, err := ddl.BuildDropTableSQL(d, def.FQN)
	if err != nil {
		return err
	}
	create, err := ddl.BuildCreateTableSQL(d, def)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, drop); err != nil {
		return fmt.Errorf("drop %s: %w", def.FQN, err)
	}
	if _, err := r.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create %s: %w", def.FQN, err)
	}
	return nil
}

// ReplaceWithRows drops and recreates def.FQN, then inserts rows in a
// separate transaction. It is not atomic: if the insert fails, the table
// stays empty and its previous contents are lost.
func (r *Repository) ReplaceWithRows(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error) {
	if err := r.ReplaceTable(ctx, def); err != nil {
		return 0, err
	}
	return r.CopyFrom(ctx, def.FQN, def.Names(), rows)
}

// CopyFrom inserts rows into table with chunked multi-row INSERTs inside one
// transaction.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	var total int64
	for _, chunk := range chunkRows(rows, len(columns)) {
		query, args, err := buildInsert(table, columns, chunk)
		if err != nil {
			rollback()
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			rollback()
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

// CountRows returns the row count of table.
func (r *Repository) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+ddl.QuoteFQN(Dialect{}, table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// chunkRows splits rows so no chunk exceeds maxPlaceholders parameters.
func chunkRows(rows [][]any, ncols int) [][][]any {
	per := max(maxPlaceholders/ncols, 1)
	out := make([][][]any, 0, len(rows)/per+1)
	for len(rows) > 0 {
		n := min(per, len(rows))
		out = append(out, rows[:n])
		rows = rows[n:]
	}
	return out
}

// buildInsert renders INSERT INTO t (a, b) VALUES (?, ?), (?, ?) and the
// flattened argument list.
func buildInsert(table string, columns []string, rows [][]any) (string, []any, error) {
	d := Dialect{}
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = d.QuoteIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", ddl.QuoteFQN(d, table), strings.Join(cols, ", "))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("mysql: row %d has %d values, want %d", i, len(row), len(columns))
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
		args = append(args, row...)
	}
	return sb.String(), args, nil
}
