package transformer

// Batch is an ordered slice of rows sharing one column list. Readers create
// batches, the normalizer produces a typed copy, and the writer consumes and
// releases them. A batch never outlives one iteration of the load loop.
type Batch struct {
	Columns []string
	Rows    []*Row
}

// NewBatch returns an empty batch over columns with room for capacity rows.
// The column slice is copied.
func NewBatch(columns []string, capacity int) *Batch {
	cols := make([]string, len(columns))
	copy(cols, columns)
	if capacity < 0 {
		capacity = 0
	}
	return &Batch{Columns: cols, Rows: make([]*Row, 0, capacity)}
}

// Len returns the number of rows.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// NewRow appends a fresh pooled row sized to the batch's columns and returns
// it for filling.
func (b *Batch) NewRow() *Row {
	r := GetRow(len(b.Columns))
	b.Rows = append(b.Rows, r)
	return r
}

// Values exposes the rows as [][]any for bulk insert APIs. The inner slices
// alias the pooled rows, so the result is only valid until Release.
func (b *Batch) Values() [][]any {
	out := make([][]any, len(b.Rows))
	for i, r := range b.Rows {
		out[i] = r.V
	}
	return out
}

// Append moves the rows of other into b. Column lists must match; other is
// left empty.
func (b *Batch) Append(other *Batch) {
	b.Rows = append(b.Rows, other.Rows...)
	other.Rows = nil
}

// Release returns every row to the pool and empties the batch.
func (b *Batch) Release() {
	if b == nil {
		return
	}
	for _, r := range b.Rows {
		r.Free()
	}
	b.Rows = nil
}
