// Package template renders page bodies before Markdown conversion.
//
// Page sources use Jinja-style tags whose contents are Starlark:
//
//	{{ expr }}                  writes the value of expr
//	{% for row in sales %}      loops, closed by {% endfor %}
//	{% if cond %}               branches with elif/else, closed by {% endif %}
//	{# note #}                  is dropped from the output
//
// A '-' directly inside a delimiter ("{%-", "-}}") trims the whitespace on
// that side of the tag.
package template

// Position is a location in a page source.
type Position struct {
	File   string
	Line   int
	Column int
}

// Node is a template AST node.
type Node interface {
	Pos() Position
	node()
}

type nodeBase struct {
	pos Position
}

func (n *nodeBase) Pos() Position { return n.pos }
func (n *nodeBase) node()         {}

// TextNode is literal Markdown copied to the output.
type TextNode struct {
	nodeBase
	Text string
}

// ExprNode is a {{ expr }} tag; Expr holds the source without delimiters.
type ExprNode struct {
	nodeBase
	Expr string
}

// StmtKind identifies a {% ... %} statement.
type StmtKind int

// Statement kinds.
const (
	StmtUnknown StmtKind = iota
	StmtFor
	StmtEndFor
	StmtIf
	StmtElif
	StmtElse
	StmtEndIf
)

var stmtNames = [...]string{
	StmtUnknown: "unknown",
	StmtFor:     "for",
	StmtEndFor:  "endfor",
	StmtIf:      "if",
	StmtElif:    "elif",
	StmtElse:    "else",
	StmtEndIf:   "endif",
}

func (k StmtKind) String() string {
	if k < 0 || int(k) >= len(stmtNames) {
		return "unknown"
	}
	return stmtNames[k]
}

// StmtNode is a single statement tag before blocks are assembled.
type StmtNode struct {
	nodeBase
	Kind    StmtKind
	Expr    string // condition, or the iterable of a for loop
	VarName string // for loop target, possibly "k, v"
}

// ForBlock is a for loop and its body.
type ForBlock struct {
	nodeBase
	VarName  string
	IterExpr string
	Body     []Node
}

// IfBlock is an if statement with optional elif branches and else body.
// Else is nil when there is no else tag.
type IfBlock struct {
	nodeBase
	Condition string
	Body      []Node
	ElseIfs   []Branch
	Else      []Node
}

// Branch is one elif branch.
type Branch struct {
	Condition string
	Body      []Node
	pos       Position
}

// Template is a parsed page body.
type Template struct {
	Nodes []Node
	File  string
}
