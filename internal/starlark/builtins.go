package starlark

import (
	"errors"

	"github.com/leapstack-labs/dsg/internal/charts"
	"github.com/leapstack-labs/dsg/pkg/core"
	"go.starlark.net/starlark"
)

// errorKey is the thread-local slot holding the last template error raised by
// a builtin. Starlark flattens builtin errors into messages, so the context
// reads it back to keep the typed error.
const errorKey = "dsg.template_error"

func recordError(thread *starlark.Thread, err error) error {
	var tplErr *core.TemplateError
	if thread != nil && errors.As(err, &tplErr) {
		thread.SetLocal(errorKey, tplErr)
	}
	return err
}

func recordedError(thread *starlark.Thread) *core.TemplateError {
	tplErr, _ := thread.Local(errorKey).(*core.TemplateError)
	return tplErr
}

// optString unpacks a string argument that may also be None.
type optString string

func (s *optString) Unpack(v starlark.Value) error {
	switch val := v.(type) {
	case starlark.NoneType:
		*s = ""
	case starlark.String:
		*s = optString(val)
	default:
		return errors.New("got " + v.Type() + ", want string or None")
	}
	return nil
}

// chartBuiltin exposes a chart function. Arguments follow the keyword style
// bar_chart(data=sales, x="month", y="amount", color=None, title=None).
func chartBuiltin(name string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var data *Table
		var x, y, z, color, names, values, title optString
		var bins, height int
		if err := starlark.UnpackArgs(b.Name(), args, kwargs,
			"data", &data,
			"x?", &x,
			"y?", &y,
			"color?", &color,
			"title?", &title,
			"z?", &z,
			"names?", &names,
			"values?", &values,
			"bins?", &bins,
			"height?", &height,
		); err != nil {
			return nil, recordError(thread, &core.TemplateError{Function: name, Message: err.Error()})
		}

		html, err := charts.Render(name, data.Core(), charts.Spec{
			X:      string(x),
			Y:      string(y),
			Z:      string(z),
			Color:  string(color),
			Names:  string(names),
			Values: string(values),
			Title:  string(title),
			Bins:   bins,
			Height: height,
		})
		if err != nil {
			return nil, recordError(thread, err)
		}
		return starlark.String(html), nil
	})
}

// ChartBuiltins returns one builtin per registered chart function.
func ChartBuiltins() starlark.StringDict {
	out := make(starlark.StringDict, len(charts.Names()))
	for _, name := range charts.Names() {
		out[name] = chartBuiltin(name)
	}
	return out
}

// TablesToStarlark wraps every query table. The result is also exposed as
// the "queries" dict so names that are not identifiers stay reachable.
func TablesToStarlark(tables core.QueryContext) (starlark.StringDict, *starlark.Dict) {
	globals := make(starlark.StringDict, len(tables))
	dict := starlark.NewDict(len(tables))
	for _, name := range sortedNames(tables) {
		v := NewTable(tables[name])
		globals[name] = v
		_ = dict.SetKey(starlark.String(name), v)
	}
	dict.Freeze()
	return globals, dict
}

// Predeclared returns all globals for template execution: one binding per
// query table, the queries dict, the chart functions, project and page.
// A query named like a builtin is a configuration error.
func Predeclared(tables core.QueryContext, project *ProjectInfo, page *PageInfo) (starlark.StringDict, error) {
	globals := ChartBuiltins()
	reserved := map[string]bool{"queries": true, "project": true, "page": true}
	for name := range globals {
		reserved[name] = true
	}

	tableGlobals, dict := TablesToStarlark(tables)
	for _, name := range sortedNames(tables) {
		if reserved[name] {
			return nil, &core.ConfigurationError{
				Subject: "query " + quoteName(name),
				Message: "query name conflicts with builtin " + quoteName(name),
			}
		}
		globals[name] = tableGlobals[name]
	}
	globals["queries"] = dict

	if project != nil {
		globals["project"] = project.ToStarlark()
	}
	if page != nil {
		globals["page"] = page.ToStarlark()
	}
	return globals, nil
}
