package charts

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/leapstack-labs/dsg/pkg/core"
)

// trace is one Plotly data series. Field order fixes the JSON key order.
type trace struct {
	Type   string  `json:"type"`
	Name   string  `json:"name,omitempty"`
	Mode   string  `json:"mode,omitempty"`
	X      []any   `json:"x,omitempty"`
	Y      []any   `json:"y,omitempty"`
	Z      [][]any `json:"z,omitempty"`
	Labels []any   `json:"labels,omitempty"`
	Values []any   `json:"values,omitempty"`
	NBinsX int     `json:"nbinsx,omitempty"`
	NBinsY int     `json:"nbinsy,omitempty"`
}

type text struct {
	Text string `json:"text"`
}

type axis struct {
	Title text `json:"title"`
}

type legend struct {
	Title text `json:"title"`
}

type layout struct {
	Title   *text   `json:"title,omitempty"`
	Height  int     `json:"height,omitempty"`
	XAxis   *axis   `json:"xaxis,omitempty"`
	YAxis   *axis   `json:"yaxis,omitempty"`
	Legend  *legend `json:"legend,omitempty"`
	BarMode string  `json:"barmode,omitempty"`
}

type figure struct {
	Data   []trace
	Layout layout
}

func newLayout(s Spec, xTitle, yTitle string) layout {
	l := layout{Height: s.Height}
	if s.Title != "" {
		l.Title = &text{Text: s.Title}
	}
	if xTitle != "" {
		l.XAxis = &axis{Title: text{Text: xTitle}}
	}
	if yTitle != "" {
		l.YAxis = &axis{Title: text{Text: yTitle}}
	}
	if s.Color != "" {
		l.Legend = &legend{Title: text{Text: s.Color}}
	}
	return l
}

const (
	fragmentOpen  = `<div class="dsg-chart" data-figure='`
	fragmentClose = `'></div>`
)

// html encodes the figure as a chart placeholder. The figure JSON sits in a
// single-quoted attribute so Markdown passes it through untouched, inline or
// as a block; the page layout draws every placeholder. The div carries no id
// so fragments never depend on render order.
func (f figure) html(fn string) (string, error) {
	if f.Data == nil {
		f.Data = []trace{}
	}
	// json.Marshal already escapes <, > and &; only the quote needs an entity.
	body, err := json.Marshal(struct {
		Data   []trace `json:"data"`
		Layout layout  `json:"layout"`
	}{f.Data, f.Layout})
	if err != nil {
		return "", &core.TemplateError{Function: fn, Message: "cannot encode chart figure", Err: err}
	}

	var buf bytes.Buffer
	buf.WriteString(fragmentOpen)
	buf.WriteString(strings.ReplaceAll(string(body), "'", "&#39;"))
	buf.WriteString(fragmentClose)
	return buf.String(), nil
}

// jsonValue maps a table cell to a JSON-safe value.
func jsonValue(v any) any {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case nil, bool, int64, string:
		return val
	default:
		return core.FormatValue(val)
	}
}

// column returns the JSON-safe values of the named column.
func column(t *core.Table, name string) []any {
	idx := t.ColumnIndex(name)
	out := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		if idx >= 0 && idx < len(row) {
			out[i] = jsonValue(row[idx])
		}
	}
	return out
}

// group is the subset of rows sharing one value of the color column.
type group struct {
	name string
	rows [][]any
}

// groupBy partitions rows by the named column, keeping the order in which
// each distinct value first appears.
func groupBy(t *core.Table, name string) []group {
	idx := t.ColumnIndex(name)
	var groups []group
	index := make(map[string]int)
	for _, row := range t.Rows {
		var key string
		if idx >= 0 && idx < len(row) {
			key = core.FormatValue(row[idx])
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, group{name: key})
		}
		groups[i].rows = append(groups[i].rows, row)
	}
	return groups
}

// series builds one trace per color group, or a single trace when no color
// column is selected.
func series(t *core.Table, s Spec, base trace, withY bool) []trace {
	if s.Color == "" {
		tr := base
		tr.X = column(t, s.X)
		if withY {
			tr.Y = column(t, s.Y)
		}
		return []trace{tr}
	}

	groups := groupBy(t, s.Color)
	traces := make([]trace, 0, len(groups))
	for _, g := range groups {
		sub := &core.Table{Columns: t.Columns, Rows: g.rows}
		tr := base
		tr.Name = g.name
		tr.X = column(sub, s.X)
		if withY {
			tr.Y = column(sub, s.Y)
		}
		traces = append(traces, tr)
	}
	return traces
}
