package template

import (
	"regexp"
	"strings"
)

// Parse parses template tokens into a Template.
func Parse(tokens []Token, file string) (*Template, error) {
	p := &parser{tokens: tokens}
	nodes, term, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if term != nil {
		return nil, unmatchedBlock(term.Pos(), term.Kind)
	}
	return &Template{Nodes: nodes, File: file}, nil
}

// ParseString tokenizes and parses a template source.
func ParseString(input, file string) (*Template, error) {
	return ParseStringAt(input, file, 1)
}

// ParseStringAt is ParseString for a source whose first line is line of file.
func ParseStringAt(input, file string, line int) (*Template, error) {
	tokens, err := NewLexer(input, file).StartAt(line).Tokenize()
	if err != nil {
		return nil, err
	}
	return Parse(tokens, file)
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) next() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	tok := p.tokens[p.pos]
	p.pos++
	return tok
}

// parseBody collects nodes until EOF or a statement that closes or splits the
// enclosing block. That statement is returned so the caller can match it.
func (p *parser) parseBody() ([]Node, *StmtNode, error) {
	var nodes []Node
	for {
		tok := p.next()
		switch tok.Type {
		case TokenEOF:
			return nodes, nil, nil

		case TokenText:
			nodes = append(nodes, &TextNode{nodeBase: nodeBase{pos: tok.Pos}, Text: tok.Value})

		case TokenExpr:
			if tok.Value == "" {
				return nil, nil, parseErrorf(tok.Pos, "empty expression")
			}
			nodes = append(nodes, &ExprNode{nodeBase: nodeBase{pos: tok.Pos}, Expr: tok.Value})

		case TokenStmt:
			stmt, err := parseStmt(tok)
			if err != nil {
				return nil, nil, err
			}
			switch stmt.Kind {
			case StmtFor:
				block, err := p.parseFor(stmt)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, block)
			case StmtIf:
				block, err := p.parseIf(stmt)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, block)
			default:
				return nodes, stmt, nil
			}

		default:
			return nil, nil, parseErrorf(tok.Pos, "unexpected token %s", tok.Type)
		}
	}
}

func (p *parser) parseFor(open *StmtNode) (*ForBlock, error) {
	body, term, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if term == nil {
		return nil, unmatchedBlock(open.Pos(), StmtFor)
	}
	if term.Kind != StmtEndFor {
		return nil, unmatchedBlock(term.Pos(), term.Kind)
	}
	return &ForBlock{
		nodeBase: open.nodeBase,
		VarName:  open.VarName,
		IterExpr: open.Expr,
		Body:     body,
	}, nil
}

func (p *parser) parseIf(open *StmtNode) (*IfBlock, error) {
	block := &IfBlock{nodeBase: open.nodeBase, Condition: open.Expr}

	body, term, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	block.Body = body

	for {
		if term == nil {
			return nil, unmatchedBlock(open.Pos(), StmtIf)
		}
		switch term.Kind {
		case StmtElif:
			if block.Else != nil {
				return nil, parseErrorf(term.Pos(), "'elif' after 'else'")
			}
			branch := Branch{Condition: term.Expr, pos: term.Pos()}
			branch.Body, term, err = p.parseBody()
			if err != nil {
				return nil, err
			}
			block.ElseIfs = append(block.ElseIfs, branch)

		case StmtElse:
			if block.Else != nil {
				return nil, parseErrorf(term.Pos(), "duplicate 'else'")
			}
			var elseBody []Node
			elseBody, term, err = p.parseBody()
			if err != nil {
				return nil, err
			}
			if elseBody == nil {
				elseBody = []Node{}
			}
			block.Else = elseBody

		case StmtEndIf:
			return block, nil

		default:
			return nil, unmatchedBlock(term.Pos(), term.Kind)
		}
	}
}

var forPattern = regexp.MustCompile(`^for\s+(.+?)\s+in\s+(.+)$`)

// parseStmt classifies a {% ... %} statement. A trailing colon is optional.
func parseStmt(tok Token) (*StmtNode, error) {
	src := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(tok.Value), ":"))
	stmt := &StmtNode{nodeBase: nodeBase{pos: tok.Pos}}

	keyword, rest, _ := strings.Cut(src, " ")
	rest = strings.TrimSpace(rest)

	switch keyword {
	case "for":
		m := forPattern.FindStringSubmatch(src)
		if m == nil {
			return nil, parseErrorf(tok.Pos, "invalid for statement %q (expected 'for x in items')", tok.Value)
		}
		stmt.Kind = StmtFor
		stmt.VarName = strings.TrimSpace(m[1])
		stmt.Expr = strings.TrimSpace(m[2])
	case "if", "elif":
		if rest == "" {
			return nil, parseErrorf(tok.Pos, "%s statement requires a condition", keyword)
		}
		stmt.Kind = StmtIf
		if keyword == "elif" {
			stmt.Kind = StmtElif
		}
		stmt.Expr = rest
	case "else", "endfor", "endif":
		if rest != "" {
			return nil, parseErrorf(tok.Pos, "unexpected text after %q", keyword)
		}
		switch keyword {
		case "else":
			stmt.Kind = StmtElse
		case "endfor":
			stmt.Kind = StmtEndFor
		default:
			stmt.Kind = StmtEndIf
		}
	default:
		return nil, parseErrorf(tok.Pos, "unknown statement %q", tok.Value)
	}
	return stmt, nil
}
