package template

import (
	"fmt"
	"strings"

	starctx "github.com/leapstack-labs/dsg/internal/starlark"
	"go.starlark.net/starlark"
)

// Renderer evaluates a parsed template against an execution context.
type Renderer struct {
	ctx *starctx.ExecutionContext
}

// NewRenderer creates a renderer bound to ctx.
func NewRenderer(ctx *starctx.ExecutionContext) *Renderer {
	return &Renderer{ctx: ctx}
}

// Render renders the template to a string.
func (r *Renderer) Render(tmpl *Template) (string, error) {
	var b strings.Builder
	if err := r.renderNodes(&b, tmpl.File, tmpl.Nodes, nil); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RenderString parses and renders a template source in one step.
func RenderString(input, file string, ctx *starctx.ExecutionContext) (string, error) {
	return RenderStringAt(input, file, 1, ctx)
}

// RenderStringAt is RenderString for a source whose first line is line of file.
func RenderStringAt(input, file string, line int, ctx *starctx.ExecutionContext) (string, error) {
	tmpl, err := ParseStringAt(input, file, line)
	if err != nil {
		return "", err
	}
	return NewRenderer(ctx).Render(tmpl)
}

func (r *Renderer) renderNodes(b *strings.Builder, file string, nodes []Node, locals starlark.StringDict) error {
	for _, node := range nodes {
		if err := r.renderNode(b, file, node, locals); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) renderNode(b *strings.Builder, file string, node Node, locals starlark.StringDict) error {
	switch n := node.(type) {
	case *TextNode:
		b.WriteString(n.Text)

	case *ExprNode:
		out, err := r.ctx.EvalExprStringWithLocals(n.Expr, file, n.Pos().Line, locals)
		if err != nil {
			return renderErrorf(n.Pos(), err, "expression failed")
		}
		b.WriteString(out)

	case *ForBlock:
		return r.renderFor(b, file, n, locals)

	case *IfBlock:
		return r.renderIf(b, file, n, locals)

	default:
		return renderErrorf(node.Pos(), nil, "unexpected node %T", node)
	}
	return nil
}

func (r *Renderer) renderFor(b *strings.Builder, file string, n *ForBlock, locals starlark.StringDict) error {
	seq, err := r.ctx.EvalExprWithLocals(n.IterExpr, file, n.Pos().Line, locals)
	if err != nil {
		return renderErrorf(n.Pos(), err, "for loop iterator failed")
	}

	iter := starlark.Iterate(seq)
	if iter == nil {
		return renderErrorf(n.Pos(), nil, "cannot iterate over %s", seq.Type())
	}
	defer iter.Done()

	names := loopVars(n.VarName)
	scope := make(starlark.StringDict, len(locals)+len(names))
	for k, v := range locals {
		scope[k] = v
	}

	var item starlark.Value
	for iter.Next(&item) {
		if err := bindLoopVars(scope, names, item); err != nil {
			return renderErrorf(n.Pos(), err, "for loop")
		}
		if err := r.renderNodes(b, file, n.Body, scope); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) renderIf(b *strings.Builder, file string, n *IfBlock, locals starlark.StringDict) error {
	ok, err := r.truth(n.Condition, file, n.Pos(), locals)
	if err != nil {
		return err
	}
	if ok {
		return r.renderNodes(b, file, n.Body, locals)
	}

	for _, branch := range n.ElseIfs {
		ok, err := r.truth(branch.Condition, file, branch.pos, locals)
		if err != nil {
			return err
		}
		if ok {
			return r.renderNodes(b, file, branch.Body, locals)
		}
	}

	return r.renderNodes(b, file, n.Else, locals)
}

func (r *Renderer) truth(cond, file string, pos Position, locals starlark.StringDict) (bool, error) {
	v, err := r.ctx.EvalExprWithLocals(cond, file, pos.Line, locals)
	if err != nil {
		return false, renderErrorf(pos, err, "condition failed")
	}
	return bool(v.Truth()), nil
}

// loopVars splits "k, v" style loop targets.
func loopVars(spec string) []string {
	parts := strings.Split(spec, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

func bindLoopVars(scope starlark.StringDict, names []string, item starlark.Value) error {
	if len(names) == 1 {
		scope[names[0]] = item
		return nil
	}
	seq, ok := item.(starlark.Indexable)
	if !ok {
		return fmt.Errorf("cannot unpack %s into %d variables", item.Type(), len(names))
	}
	if seq.Len() != len(names) {
		return fmt.Errorf("cannot unpack %d values into %d variables", seq.Len(), len(names))
	}
	for i, name := range names {
		scope[name] = seq.Index(i)
	}
	return nil
}
