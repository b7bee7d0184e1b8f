package incident

import (
	"fmt"
)

// RawRow represents a row of raw source data as header -> cell text
type RawRow map[string]string

// RawTable is the untyped source table as read from disk
type RawTable struct {
	Headers []string
	Rows    []RawRow
}

// Table is an immutable typed table. Transformations return new tables.
type Table struct {
	columns []Column
	index   map[string]int
	rows    [][]Value
}

// NewTable builds a table, copying columns and rows so the caller keeps ownership
func NewTable(columns []Column, rows [][]Value) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %s", c.Name)
		}
		index[c.Name] = i
	}

	copied := make([][]Value, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", i, len(row), len(columns))
		}
		copied[i] = append([]Value(nil), row...)
	}

	return &Table{
		columns: append([]Column(nil), columns...),
		index:   index,
		rows:    copied,
	}, nil
}

// EmptyTable returns a zero-row table with the given columns
func EmptyTable(columns []Column) *Table {
	t, err := NewTable(columns, nil)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Columns returns a copy of the column descriptors
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.columns...)
}

// ColumnNames returns the column names in order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the table carries the named column
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Kind returns the kind of the named column
func (t *Table) Kind(name string) (Kind, bool) {
	i, ok := t.index[name]
	if !ok {
		return "", false
	}
	return t.columns[i].Kind, true
}

// Value returns the cell at row i of the named column; unknown columns read as missing
func (t *Table) Value(i int, name string) Value {
	j, ok := t.index[name]
	if !ok {
		return NewMissingValue()
	}
	return t.rows[i][j]
}

// Row returns a copy of row i
func (t *Table) Row(i int) []Value {
	return append([]Value(nil), t.rows[i]...)
}

// Rows returns a deep copy of all rows
func (t *Table) Rows() [][]Value {
	out := make([][]Value, len(t.rows))
	for i := range t.rows {
		out[i] = t.Row(i)
	}
	return out
}

// Column returns a copy of the named column's cells
func (t *Table) Column(name string) ([]Value, error) {
	j, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("unknown column %s", name)
	}
	out := make([]Value, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[j]
	}
	return out, nil
}

// Floats returns the non-missing numeric cells of the named column
func (t *Table) Floats(name string) []float64 {
	j, ok := t.index[name]
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(t.rows))
	for _, row := range t.rows {
		if row[j].IsNumeric() {
			out = append(out, row[j].Num)
		}
	}
	return out
}

// Strings renders every cell of row i for the given column kinds
func (t *Table) Strings(i int) []string {
	out := make([]string, len(t.columns))
	for j, c := range t.columns {
		out[j] = t.rows[i][j].Format(c.Kind)
	}
	return out
}

// Filter returns a table with the rows for which keep returns true
func (t *Table) Filter(keep func(i int) bool) *Table {
	rows := make([][]Value, 0, len(t.rows))
	for i, row := range t.rows {
		if keep(i) {
			rows = append(rows, row)
		}
	}
	out, _ := NewTable(t.columns, rows)
	return out
}

// WithColumn returns a table with the named column set (appended when new) to values
func (t *Table) WithColumn(col Column, values []Value) (*Table, error) {
	if len(values) != len(t.rows) {
		return nil, fmt.Errorf("column %s has %d values, table has %d rows", col.Name, len(values), len(t.rows))
	}

	columns := t.Columns()
	j, exists := t.index[col.Name]
	if exists {
		columns[j] = col
	} else {
		columns = append(columns, col)
		j = len(columns) - 1
	}

	rows := make([][]Value, len(t.rows))
	for i, row := range t.rows {
		next := make([]Value, len(columns))
		copy(next, row)
		next[j] = values[i]
		rows[i] = next
	}
	return NewTable(columns, rows)
}

// Project returns a table holding only the named columns, in the given order
func (t *Table) Project(columns []Column) (*Table, error) {
	positions := make([]int, len(columns))
	for k, c := range columns {
		j, ok := t.index[c.Name]
		if !ok {
			return nil, fmt.Errorf("unknown column %s", c.Name)
		}
		positions[k] = j
	}

	rows := make([][]Value, len(t.rows))
	for i, row := range t.rows {
		next := make([]Value, len(columns))
		for k, j := range positions {
			next[k] = row[j]
		}
		rows[i] = next
	}
	return NewTable(columns, rows)
}

// Concat returns the row-wise union of t followed by other. Column sets must match exactly.
func (t *Table) Concat(other *Table) (*Table, error) {
	if !SameColumns(t.ColumnNames(), other.ColumnNames()) {
		return nil, fmt.Errorf("cannot concatenate tables with different columns")
	}
	rows := make([][]Value, 0, len(t.rows)+len(other.rows))
	rows = append(rows, t.rows...)
	rows = append(rows, other.rows...)
	return NewTable(t.columns, rows)
}

// SameColumns reports whether two column name lists are identical in content and order
func SameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
