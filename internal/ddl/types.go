package ddl

// Kind is the dialect-neutral storage class of a column. Backends map it to a
// concrete SQL type through Dialect.MapType.
type Kind string

const (
	KindBigInt    Kind = "bigint"
	KindDouble    Kind = "double"
	KindText      Kind = "text"
	KindTimestamp Kind = "timestamp"
	KindBoolean   Kind = "boolean"
)

// ColumnDef describes a single column.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - Kind: storage class used when SQLType is empty
//   - SQLType: explicit SQL type overriding the dialect mapping
//   - Nullable: whether NULL is allowed
type ColumnDef struct {
	Name     string
	Kind     Kind
	SQLType  string
	Nullable bool
}

// TableDef holds the table name (optionally "schema.table") and its ordered
// columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Names returns the column names in order.
func (t TableDef) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Kinds returns the column kinds in order.
func (t TableDef) Kinds() []Kind {
	out := make([]Kind, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Kind
	}
	return out
}
