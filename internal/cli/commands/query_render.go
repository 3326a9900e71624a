package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/dsg/pkg/core"
)

// Query output formats.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
)

func renderResults(w io.Writer, tbl *core.Table, format string, limit int) error {
	rows := tbl.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	switch format {
	case FormatJSON:
		return renderJSON(w, tbl.Columns, rows)
	case FormatCSV:
		return renderCSV(w, tbl.Columns, rows)
	case FormatMarkdown, "markdown":
		return renderMarkdown(w, tbl.Columns, rows)
	case FormatTable, "":
		return renderTable(w, tbl.Columns, rows, len(tbl.Rows))
	default:
		return fmt.Errorf("unknown format %q (expected table, json, csv or md)", format)
	}
}

func renderTable(w io.Writer, cols []string, rows [][]any, total int) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, row := range rows {
		out := make(table.Row, len(cols))
		for i := range cols {
			out[i] = formatValue(cell(row, i))
		}
		t.AppendRow(out)
	}

	t.Render()
	if total > len(rows) {
		_, _ = fmt.Fprintf(w, "(%d of %d rows)\n", len(rows), total)
		return nil
	}
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}

func renderJSON(w io.Writer, cols []string, rows [][]any) error {
	results := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]any, len(cols))
		for i, col := range cols {
			v := cell(row, i)
			if ts, ok := v.(time.Time); ok {
				v = ts.Format(time.RFC3339)
			}
			obj[col] = v
		}
		results = append(results, obj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func renderCSV(w io.Writer, cols []string, rows [][]any) error {
	header := make([]string, len(cols))
	for i, col := range cols {
		header[i] = escapeCSV(col)
	}
	_, _ = fmt.Fprintln(w, strings.Join(header, ","))

	for _, row := range rows {
		values := make([]string, len(cols))
		for i := range cols {
			values[i] = escapeCSV(formatValue(cell(row, i)))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func renderMarkdown(w io.Writer, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cols, " | "))
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, row := range rows {
		values := make([]string, len(cols))
		for i := range cols {
			values[i] = strings.ReplaceAll(formatValue(cell(row, i)), "|", `\|`)
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

func cell(row []any, i int) any {
	if i < len(row) {
		return row[i]
	}
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
