// Package parser turns content source files into pages: YAML front matter
// extraction, template rendering and Markdown to HTML conversion.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter holds the metadata block at the top of a content file.
// Keys other than title and description are kept in Meta.
type Frontmatter struct {
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Meta        map[string]any `yaml:",inline"`
}

// FrontmatterResult holds the result of frontmatter extraction.
type FrontmatterResult struct {
	Matter   *Frontmatter
	Body     string // content after the closing delimiter
	BodyLine int    // 1-based line of content on which Body starts
	HasYAML  bool   // whether a frontmatter block was found
}

// ErrMissingClosingDelimiter indicates the document started with a
// frontmatter delimiter but did not contain a closing one.
var ErrMissingClosingDelimiter = errors.New("frontmatter start delimiter found but closing delimiter is missing")

const delimiter = "---"

// ExtractFrontmatter splits a `---` fenced YAML block from the start of
// content and parses it. Content without an opening delimiter is returned
// unchanged as the body.
func ExtractFrontmatter(content string) (*FrontmatterResult, error) {
	result := &FrontmatterResult{Matter: &Frontmatter{}, Body: content, BodyLine: 1}

	nl := detectNewline(content)
	open := delimiter + nl
	if !strings.HasPrefix(content, open) {
		return result, nil
	}
	rest := content[len(open):]

	var raw string
	switch {
	case strings.HasPrefix(rest, open):
		result.Body = rest[len(open):]
	case rest == delimiter:
		result.Body = ""
	default:
		idx := strings.Index(rest, nl+delimiter+nl)
		switch {
		case idx >= 0:
			raw = rest[:idx+len(nl)]
			result.Body = rest[idx+len(nl)+len(open):]
		case strings.HasSuffix(rest, nl+delimiter):
			raw = rest[:len(rest)-len(delimiter)]
			result.Body = ""
		default:
			return nil, &FrontmatterParseError{Line: 1, Message: ErrMissingClosingDelimiter.Error(), Err: ErrMissingClosingDelimiter}
		}
	}
	result.HasYAML = true
	result.BodyLine = 1 + strings.Count(content[:len(content)-len(result.Body)], "\n")

	matter, err := parseFrontmatterYAML(raw)
	if err != nil {
		return nil, err
	}
	result.Matter = matter
	return result, nil
}

// parseFrontmatterYAML decodes the raw block. An empty block is valid.
func parseFrontmatterYAML(raw string) (*Frontmatter, error) {
	var matter Frontmatter
	if strings.TrimSpace(raw) == "" {
		return &matter, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		return nil, &FrontmatterParseError{Message: fmt.Sprintf("invalid YAML: %v", err), Err: err}
	}
	if len(node.Content) == 0 {
		return &matter, nil
	}
	if doc := node.Content[0]; doc.Kind != yaml.MappingNode {
		return nil, &FrontmatterParseError{
			Line:    doc.Line + 1,
			Message: "frontmatter must be a mapping of keys to values",
		}
	}

	if err := node.Decode(&matter); err != nil {
		return nil, &FrontmatterParseError{Message: fmt.Sprintf("failed to parse frontmatter: %v", err), Err: err}
	}
	return &matter, nil
}

func detectNewline(content string) string {
	if i := strings.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}

// FrontmatterParseError represents a frontmatter parsing error.
type FrontmatterParseError struct {
	File    string
	Line    int
	Message string
	Err     error
}

func (e *FrontmatterParseError) Error() string {
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

func (e *FrontmatterParseError) Unwrap() error { return e.Err }
