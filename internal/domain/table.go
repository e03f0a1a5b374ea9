package domain

import (
	"time"
)

// ColumnType is the semantic type of a table column. It drives storage type
// mapping in the sink; string is the fallback for anything uninferred.
type ColumnType string

const (
	TypeString    ColumnType = "string"
	TypeInteger   ColumnType = "integer"
	TypeFloat     ColumnType = "float"
	TypeBoolean   ColumnType = "boolean"
	TypeTimestamp ColumnType = "timestamp"
)

// Column describes one named, typed column of a Table.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Table is an immutable in-memory table: ordered columns and row-major cells.
// Cell values are nil (NULL), string, int64, float64, bool, or time.Time.
// Transformations never mutate a Table in place; each step returns a new one.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// NewTable creates an empty table with the given columns.
func NewTable(columns []Column) Table {
	return Table{
		Columns: append([]Column(nil), columns...),
		Rows:    [][]any{},
	}
}

// ColumnIndex returns the index of the named column, or -1 if absent.
func (t Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in declared order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// NumRows returns the row count.
func (t Table) NumRows() int {
	return len(t.Rows)
}

// AppendRow returns a new table with the row appended. The row is padded or
// truncated to the column count.
func (t Table) AppendRow(row []any) Table {
	cells := make([]any, len(t.Columns))
	copy(cells, row)
	return Table{
		Columns: t.Columns,
		Rows:    append(t.Rows, cells),
	}
}

// Equal reports whether both tables have identical columns and identical
// cells in identical order. This is the basis of the sink's
// replace-on-change policy: an equal table is never rewritten.
func (t Table) Equal(other Table) bool {
	if len(t.Columns) != len(other.Columns) || len(t.Rows) != len(other.Rows) {
		return false
	}
	for i, col := range t.Columns {
		if other.Columns[i] != col {
			return false
		}
	}
	for i, row := range t.Rows {
		if len(row) != len(other.Rows[i]) {
			return false
		}
		for j, cell := range row {
			if !cellsEqual(cell, other.Rows[i][j]) {
				return false
			}
		}
	}
	return true
}

func cellsEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return a == b
}

// RowMaps converts the table into one map per row keyed by column name,
// the shape the results endpoint serializes.
func (t Table) RowMaps() []map[string]any {
	maps := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := make(map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				m[col.Name] = row[i]
			} else {
				m[col.Name] = nil
			}
		}
		maps = append(maps, m)
	}
	return maps
}
