// Package starlark provides the Starlark execution context, value types and
// builtins used to render page templates.
package starlark

import (
	"fmt"
	"sort"
	"time"

	"github.com/leapstack-labs/dsg/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// ProjectInfo contains project-level values.
// Exposed as the "project" global in templates.
type ProjectInfo struct {
	Name        string
	DisplayName string
}

// PageInfo describes the page being rendered.
// Exposed as the "page" global in templates.
type PageInfo struct {
	ID    string         // content file base name
	Title string         // front matter title, or ID
	Home  bool           // true for the site root page
	Meta  map[string]any // remaining front matter keys
}

// ProjectInfoFromConfig extracts the template-visible project fields.
func ProjectInfoFromConfig(cfg *core.ProjectConfig) *ProjectInfo {
	if cfg == nil {
		return nil
	}
	display := cfg.DisplayName
	if display == "" {
		display = cfg.Name
	}
	return &ProjectInfo{Name: cfg.Name, DisplayName: display}
}

// ToStarlark converts ProjectInfo to a Starlark struct value.
func (p *ProjectInfo) ToStarlark() starlark.Value {
	return starlarkstruct.FromStringDict(starlark.String("project"), starlark.StringDict{
		"name":         starlark.String(p.Name),
		"display_name": starlark.String(p.DisplayName),
	})
}

// ToStarlark converts PageInfo to a Starlark struct value.
func (p *PageInfo) ToStarlark() starlark.Value {
	title := p.Title
	if title == "" {
		title = p.ID
	}
	meta := starlark.NewDict(len(p.Meta))
	for _, k := range sortedKeys(p.Meta) {
		_ = meta.SetKey(starlark.String(k), cellToStarlark(p.Meta[k]))
	}
	meta.Freeze()

	return starlarkstruct.FromStringDict(starlark.String("page"), starlark.StringDict{
		"id":    starlark.String(p.ID),
		"title": starlark.String(title),
		"home":  starlark.Bool(p.Home),
		"meta":  meta,
	})
}

// sortedKeys fixes dict insertion order, which Starlark preserves.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GoToStarlark converts a Go value to a Starlark value. Maps become dicts with
// sorted keys.
// Supported types: string, int, int64, float64, bool, time.Time, []string, []any, map[string]any
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case string:
		return starlark.String(val), nil

	case int:
		return starlark.MakeInt(val), nil

	case int64:
		return starlark.MakeInt64(val), nil

	case float64:
		return starlark.Float(val), nil

	case bool:
		return starlark.Bool(val), nil

	case time.Time:
		return starlark.String(val.Format(time.RFC3339)), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]any:
		dict := starlark.NewDict(len(val))
		for _, k := range sortedKeys(val) {
			sv, err := GoToStarlark(val[k])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// cellToStarlark converts a table cell or front matter value. Unknown types
// render as text.
func cellToStarlark(v any) starlark.Value {
	sv, err := GoToStarlark(v)
	if err != nil {
		return starlark.String(core.FormatValue(v))
	}
	return sv
}
