package starlark

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/dsg/pkg/core"
	"go.starlark.net/starlark"
)

// Table exposes a query result to templates.
//
// Indexing and iteration yield one dict per row keyed by column name.
// Attributes: name, columns, rows and column(name). Printing a table with
// {{ table }} renders it as a Markdown table.
type Table struct {
	table *core.Table
	rows  []starlark.Value
}

var (
	_ starlark.Value     = (*Table)(nil)
	_ starlark.Indexable = (*Table)(nil)
	_ starlark.Iterable  = (*Table)(nil)
	_ starlark.HasAttrs  = (*Table)(nil)
)

// NewTable wraps a query table. The rows are converted once and frozen.
func NewTable(t *core.Table) *Table {
	if t == nil {
		t = &core.Table{}
	}
	rows := make([]starlark.Value, len(t.Rows))
	for i, row := range t.Rows {
		d := starlark.NewDict(len(t.Columns))
		for j, col := range t.Columns {
			var cell any
			if j < len(row) {
				cell = row[j]
			}
			_ = d.SetKey(starlark.String(col), cellToStarlark(cell))
		}
		d.Freeze()
		rows[i] = d
	}
	return &Table{table: t, rows: rows}
}

// Core returns the wrapped query table.
func (t *Table) Core() *core.Table { return t.table }

func (t *Table) String() string        { return MarkdownTable(t.table) }
func (t *Table) Type() string          { return "table" }
func (t *Table) Freeze()               {}
func (t *Table) Truth() starlark.Bool  { return len(t.rows) > 0 }
func (t *Table) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: table") }

// Len returns the row count.
func (t *Table) Len() int { return len(t.rows) }

// Index returns row i as a dict.
func (t *Table) Index(i int) starlark.Value { return t.rows[i] }

// Iterate iterates over the rows.
func (t *Table) Iterate() starlark.Iterator { return &rowIterator{rows: t.rows} }

// AttrNames lists the table attributes.
func (t *Table) AttrNames() []string {
	return []string{"column", "columns", "name", "rows"}
}

// Attr returns the named attribute or nil when there is none.
func (t *Table) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(t.table.Name), nil
	case "columns":
		cols := make(starlark.Tuple, len(t.table.Columns))
		for i, c := range t.table.Columns {
			cols[i] = starlark.String(c)
		}
		return cols, nil
	case "rows":
		list := starlark.NewList(append([]starlark.Value(nil), t.rows...))
		list.Freeze()
		return list, nil
	case "column":
		return starlark.NewBuiltin("column", tableColumn).BindReceiver(t), nil
	}
	return nil, nil
}

// tableColumn implements table.column(name).
func tableColumn(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	t := b.Receiver().(*Table)
	values, ok := t.table.Column(name)
	if !ok {
		return nil, recordError(thread, &core.TemplateError{Function: "column", Field: name})
	}
	list := make([]starlark.Value, len(values))
	for i, v := range values {
		list[i] = cellToStarlark(v)
	}
	return starlark.NewList(list), nil
}

type rowIterator struct {
	rows []starlark.Value
	i    int
}

func (it *rowIterator) Next(p *starlark.Value) bool {
	if it.i >= len(it.rows) {
		return false
	}
	*p = it.rows[it.i]
	it.i++
	return true
}

func (it *rowIterator) Done() {}

// MarkdownTable renders a table as a GitHub-flavored Markdown table.
// A table without columns renders as the empty string.
func MarkdownTable(t *core.Table) string {
	if t == nil || len(t.Columns) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("|")
	for _, c := range t.Columns {
		b.WriteString(" " + escapeCell(c) + " |")
	}
	b.WriteString("\n|")
	for range t.Columns {
		b.WriteString(" --- |")
	}
	for _, row := range t.Rows {
		b.WriteString("\n|")
		for j := range t.Columns {
			var cell any
			if j < len(row) {
				cell = row[j]
			}
			b.WriteString(" " + escapeCell(core.FormatValue(cell)) + " |")
		}
	}
	return b.String()
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ")

func escapeCell(s string) string { return cellEscaper.Replace(s) }
