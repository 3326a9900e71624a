package starlark

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/leapstack-labs/dsg/pkg/core"
	"go.starlark.net/starlark"
)

// ExecutionContext provides all globals and state for Starlark template execution.
type ExecutionContext struct {
	// Tables holds the query results, one binding per query name.
	// Accessible as: sales, queries["sales"], len(sales), sales.columns
	Tables core.QueryContext

	// Project contains project-level values.
	// Accessible as: project.name, project.display_name
	Project *ProjectInfo

	// Page contains the page being rendered.
	// Accessible as: page.id, page.title, page.home, page.meta["owner"]
	Page *PageInfo

	// base holds the page-independent globals shared by ForPage copies.
	base starlark.StringDict

	// globals is the combined set of all globals for execution
	globals starlark.StringDict

	// mu protects globals
	mu sync.RWMutex
}

// NewExecutionContext creates a new execution context. Query tables are
// wrapped once here; use ForPage to derive per-page contexts cheaply.
func NewExecutionContext(tables core.QueryContext, project *ProjectInfo, page *PageInfo) (*ExecutionContext, error) {
	base, err := Predeclared(tables, project, nil)
	if err != nil {
		return nil, err
	}
	ctx := &ExecutionContext{
		Tables:  tables,
		Project: project,
		Page:    page,
		base:    base,
	}
	ctx.buildGlobals()
	return ctx, nil
}

// ForPage returns a context sharing all bindings of ctx except page.
func (ctx *ExecutionContext) ForPage(page *PageInfo) *ExecutionContext {
	derived := &ExecutionContext{
		Tables:  ctx.Tables,
		Project: ctx.Project,
		Page:    page,
		base:    ctx.base,
	}
	derived.buildGlobals()
	return derived
}

// buildGlobals constructs the combined globals dict.
func (ctx *ExecutionContext) buildGlobals() {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	ctx.globals = make(starlark.StringDict, len(ctx.base)+1)
	for k, v := range ctx.base {
		ctx.globals[k] = v
	}
	if ctx.Page != nil {
		ctx.globals["page"] = ctx.Page.ToStarlark()
	}
}

// Globals returns the combined globals dictionary for Starlark execution.
func (ctx *ExecutionContext) Globals() starlark.StringDict {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.globals
}

// EvalExpr evaluates a single Starlark expression and returns the result.
// This is used for {{ expr }} template expressions.
func (ctx *ExecutionContext) EvalExpr(expr string, filename string, line int) (starlark.Value, error) {
	return ctx.EvalExprWithLocals(expr, filename, line, nil)
}

// EvalExprWithLocals evaluates a Starlark expression with additional local variables.
// This is used for expressions inside loops where loop variables need to be in scope.
func (ctx *ExecutionContext) EvalExprWithLocals(expr string, filename string, line int, locals starlark.StringDict) (starlark.Value, error) {
	thread := ctx.newThread(filename)

	// Combine globals with locals (locals take precedence)
	globals := ctx.Globals()
	if len(locals) > 0 {
		combined := make(starlark.StringDict, len(globals)+len(locals))
		for k, v := range globals {
			combined[k] = v
		}
		for k, v := range locals {
			combined[k] = v
		}
		globals = combined
	}

	result, err := starlark.Eval(thread, filename, expr, globals) //nolint:staticcheck // SA1019: will migrate to EvalOptions later
	if err != nil {
		evalErr := &EvalError{
			File:    filename,
			Line:    line,
			Expr:    expr,
			Message: err.Error(),
			Err:     err,
		}
		if tplErr := recordedError(thread); tplErr != nil {
			evalErr.Err = tplErr
		}
		return nil, evalErr
	}

	return result, nil
}

// EvalExprString evaluates a Starlark expression and returns the string result.
// This is the typical use case for template expressions.
func (ctx *ExecutionContext) EvalExprString(expr string, filename string, line int) (string, error) {
	return ctx.EvalExprStringWithLocals(expr, filename, line, nil)
}

// EvalExprStringWithLocals evaluates a Starlark expression with local variables and returns the string result.
func (ctx *ExecutionContext) EvalExprStringWithLocals(expr string, filename string, line int, locals starlark.StringDict) (string, error) {
	result, err := ctx.EvalExprWithLocals(expr, filename, line, locals)
	if err != nil {
		return "", err
	}

	// Convert result to string
	switch v := result.(type) {
	case starlark.String:
		return string(v), nil
	case starlark.NoneType:
		return "", nil
	default:
		// Use Starlark's string representation for other types
		return result.String(), nil
	}
}

// newThread creates a new Starlark thread for execution.
func (ctx *ExecutionContext) newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, _ string) {
			// Template execution should not print
		},
	}
}

// EvalError represents an error during Starlark expression evaluation.
type EvalError struct {
	File    string
	Line    int
	Expr    string
	Message string
	Err     error
}

func (e *EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: error evaluating %q: %s", e.File, e.Line, e.Expr, e.Message)
	}
	return fmt.Sprintf("%s: error evaluating %q: %s", e.File, e.Expr, e.Message)
}

func (e *EvalError) Unwrap() error { return e.Err }

func sortedNames(tables core.QueryContext) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func quoteName(name string) string { return strconv.Quote(name) }
