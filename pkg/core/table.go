package core

import (
	"fmt"
	"strconv"
	"time"
)

// Table is the tabular result of executing one query file.
// Rows hold normalized cell values: nil, bool, int64, float64, string or time.Time.
type Table struct {
	// Name is the query file's base name without extension.
	Name    string
	Columns []string
	Rows    [][]any
}

// QueryContext maps query names to their result tables.
// It is built once per build and read-only afterwards.
type QueryContext map[string]*Table

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Column returns all values of the named column in row order.
// The second result is false when the column does not exist.
func (t *Table) Column(name string) ([]any, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, true
}

// NormalizeValue converts a scanned driver value to one of the cell types
// a Table holds. Unknown types fall back to their fmt representation.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool, int64, float64, string, time.Time:
		return val
	case []byte:
		return string(val)
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val) //nolint:gosec // G115: query results beyond int64 range are not expected
	case float32:
		return float64(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// FormatValue renders a cell value as display text.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
