// Package charts provides the fixed set of chart helpers exposed to page
// templates. Each helper turns a query table plus field selectors into an
// embeddable Plotly fragment. Helpers are pure: identical inputs always yield
// byte-identical output.
package charts

import (
	"sort"

	"github.com/leapstack-labs/dsg/pkg/core"
)

// Spec selects the table fields and style options for a chart.
type Spec struct {
	X      string // x-axis column
	Y      string // y-axis column
	Z      string // cell value column (heatmap)
	Color  string // grouping column, one trace per distinct value
	Names  string // slice label column (pie)
	Values string // slice size column (pie)
	Title  string
	Bins   int // bin count hint (histogram, density_heatmap)
	Height int // figure height in pixels, 0 lets Plotly decide
}

// Func renders a chart for a table.
type Func func(t *core.Table, s Spec) (string, error)

// Chart names.
const (
	Bar            = "bar_chart"
	Line           = "line_chart"
	Scatter        = "scatter_chart"
	Pie            = "pie_chart"
	Histogram      = "histogram"
	DensityHeatmap = "density_heatmap"
	Heatmap        = "heatmap"
)

var registry = map[string]Func{
	Bar:            barChart,
	Line:           lineChart,
	Scatter:        scatterChart,
	Pie:            pieChart,
	Histogram:      histogramChart,
	DensityHeatmap: densityHeatmap,
	Heatmap:        matrixHeatmap,
}

// Lookup returns the chart function registered under name.
func Lookup(name string) (Func, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Names returns all chart function names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render calls the chart function registered under name.
func Render(name string, t *core.Table, s Spec) (string, error) {
	fn, ok := registry[name]
	if !ok {
		return "", &core.TemplateError{Function: name, Message: "unknown chart function"}
	}
	return fn(t, s)
}

// selector pairs a Spec field with the keyword it was passed as.
type selector struct {
	arg    string
	column string
}

// validate checks that the table exists, that every required selector is set
// and that every non-empty selector names a table column.
func validate(fn string, t *core.Table, required []selector, optional ...selector) error {
	if t == nil {
		return &core.TemplateError{Function: fn, Message: "data is required"}
	}
	for _, sel := range required {
		if sel.column == "" {
			return &core.TemplateError{Function: fn, Message: "missing required argument " + quote(sel.arg)}
		}
	}
	for _, sel := range append(required, optional...) {
		if sel.column != "" && !t.HasColumn(sel.column) {
			return &core.TemplateError{Function: fn, Field: sel.column}
		}
	}
	return nil
}

func quote(s string) string { return `"` + s + `"` }
