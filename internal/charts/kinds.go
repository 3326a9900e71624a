package charts

import (
	"github.com/leapstack-labs/dsg/pkg/core"
)

func xy(s Spec) []selector {
	return []selector{{"x", s.X}, {"y", s.Y}}
}

func barChart(t *core.Table, s Spec) (string, error) {
	if err := validate(Bar, t, xy(s), selector{"color", s.Color}); err != nil {
		return "", err
	}
	l := newLayout(s, s.X, s.Y)
	if s.Color != "" {
		l.BarMode = "relative"
	}
	return figure{Data: series(t, s, trace{Type: "bar"}, true), Layout: l}.html(Bar)
}

func lineChart(t *core.Table, s Spec) (string, error) {
	if err := validate(Line, t, xy(s), selector{"color", s.Color}); err != nil {
		return "", err
	}
	data := series(t, s, trace{Type: "scatter", Mode: "lines"}, true)
	return figure{Data: data, Layout: newLayout(s, s.X, s.Y)}.html(Line)
}

func scatterChart(t *core.Table, s Spec) (string, error) {
	if err := validate(Scatter, t, xy(s), selector{"color", s.Color}); err != nil {
		return "", err
	}
	data := series(t, s, trace{Type: "scatter", Mode: "markers"}, true)
	return figure{Data: data, Layout: newLayout(s, s.X, s.Y)}.html(Scatter)
}

func pieChart(t *core.Table, s Spec) (string, error) {
	req := []selector{{"names", s.Names}, {"values", s.Values}}
	if err := validate(Pie, t, req); err != nil {
		return "", err
	}
	tr := trace{Type: "pie", Labels: column(t, s.Names), Values: column(t, s.Values)}
	s.Color = ""
	return figure{Data: []trace{tr}, Layout: newLayout(s, "", "")}.html(Pie)
}

func histogramChart(t *core.Table, s Spec) (string, error) {
	req := []selector{{"x", s.X}}
	if err := validate(Histogram, t, req, selector{"color", s.Color}); err != nil {
		return "", err
	}
	s.Y = ""
	l := newLayout(s, s.X, "count")
	if s.Color != "" {
		l.BarMode = "overlay"
	}
	data := series(t, s, trace{Type: "histogram", NBinsX: s.Bins}, false)
	return figure{Data: data, Layout: l}.html(Histogram)
}

// densityHeatmap bins x/y pairs into a 2-D count grid.
func densityHeatmap(t *core.Table, s Spec) (string, error) {
	if err := validate(DensityHeatmap, t, xy(s)); err != nil {
		return "", err
	}
	tr := trace{
		Type:   "histogram2d",
		X:      column(t, s.X),
		Y:      column(t, s.Y),
		NBinsX: s.Bins,
		NBinsY: s.Bins,
	}
	s.Color = ""
	return figure{Data: []trace{tr}, Layout: newLayout(s, s.X, s.Y)}.html(DensityHeatmap)
}

// matrixHeatmap pivots long-form x/y/z rows into a matrix. Axis categories
// keep first-appearance order; a repeated (x, y) pair keeps its last z and
// absent pairs are null.
func matrixHeatmap(t *core.Table, s Spec) (string, error) {
	req := []selector{{"x", s.X}, {"y", s.Y}, {"z", s.Z}}
	if err := validate(Heatmap, t, req); err != nil {
		return "", err
	}

	xs, xIndex := categories(t, s.X)
	ys, yIndex := categories(t, s.Y)
	xi, yi, zi := t.ColumnIndex(s.X), t.ColumnIndex(s.Y), t.ColumnIndex(s.Z)

	z := make([][]any, len(ys))
	for i := range z {
		z[i] = make([]any, len(xs))
	}
	for _, row := range t.Rows {
		if len(row) <= xi || len(row) <= yi || len(row) <= zi {
			continue
		}
		col := xIndex[core.FormatValue(row[xi])]
		r := yIndex[core.FormatValue(row[yi])]
		z[r][col] = jsonValue(row[zi])
	}

	tr := trace{Type: "heatmap", X: xs, Y: ys, Z: z}
	s.Color = ""
	return figure{Data: []trace{tr}, Layout: newLayout(s, s.X, s.Y)}.html(Heatmap)
}

// categories returns the distinct values of a column in first-appearance
// order and their positions keyed by display text.
func categories(t *core.Table, name string) ([]any, map[string]int) {
	idx := t.ColumnIndex(name)
	var values []any
	index := make(map[string]int)
	for _, row := range t.Rows {
		if idx >= len(row) {
			continue
		}
		key := core.FormatValue(row[idx])
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = len(values)
		values = append(values, jsonValue(row[idx]))
	}
	return values, index
}
