// Package ddl defines a small, backend-agnostic model for table definitions,
// infers one from a normalized batch, and renders DROP/CREATE statements
// through a Dialect supplied by each storage backend.
package ddl

import (
	"fmt"
	"strings"
)

// Dialect is the per-backend rendering hook.
type Dialect interface {
	// QuoteIdent quotes a single identifier.
	QuoteIdent(name string) string
	// MapType returns the SQL type for k.
	MapType(k Kind) string
}

// QuoteFQN quotes each dot-separated part of fqn with d.
func QuoteFQN(d Dialect, fqn string) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// SplitFQN splits "schema.table" into its parts; schema is empty when fqn
// has no dot.
func SplitFQN(fqn string) (schema, table string) {
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		return fqn[:i], fqn[i+1:]
	}
	return "", fqn
}

// BuildCreateTableSQL renders:
//
//	CREATE TABLE <fqn> (
//	  <col> <type> [NOT NULL],
//	  ...
//	)
func BuildCreateTableSQL(d Dialect, t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	seen := make(map[string]struct{}, len(t.Columns))
	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		key := strings.ToLower(c.Name)
		if _, dup := seen[key]; dup {
			return "", fmt.Errorf("ddl: duplicate column %q in table %s", c.Name, fqn)
		}
		seen[key] = struct{}{}

		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			typ = d.MapType(c.Kind)
		}
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s has no SQL type for kind %q", c.Name, c.Kind)
		}

		def := d.QuoteIdent(c.Name) + " " + typ
		if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", QuoteFQN(d, fqn), strings.Join(cols, ",\n  ")), nil
}

// BuildDropTableSQL renders DROP TABLE IF EXISTS <fqn>.
func BuildDropTableSQL(d Dialect, fqn string) (string, error) {
	fqn = strings.TrimSpace(fqn)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	return "DROP TABLE IF EXISTS " + QuoteFQN(d, fqn), nil
}

// ANSI renders double-quoted identifiers and portable type names. Postgres
// and SQLite build on it.
type ANSI struct{}

// QuoteIdent wraps name in double quotes, doubling embedded quotes.
func (ANSI) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// MapType maps k to ANSI-ish SQL types.
func (ANSI) MapType(k Kind) string {
	switch k {
	case KindBigInt:
		return "BIGINT"
	case KindDouble:
		return "DOUBLE PRECISION"
	case KindTimestamp:
		return "TIMESTAMP"
	case KindBoolean:
		return "BOOLEAN"
	case KindText:
		return "TEXT"
	default:
		return ""
	}
}
