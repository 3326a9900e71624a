package parser

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	starctx "github.com/leapstack-labs/dsg/internal/starlark"
	"github.com/leapstack-labs/dsg/internal/template"
	"github.com/leapstack-labs/dsg/pkg/core"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmparser "github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Parser parses content files into pages. Every page is rendered against
// the same execution context; only the page binding differs.
type Parser struct {
	ctx        *starctx.ExecutionContext
	md         goldmark.Markdown
	pagesRoute string
	logger     *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithPagesRoute sets the route segment non-home pages are served under.
func WithPagesRoute(route string) Option {
	return func(p *Parser) {
		p.pagesRoute = strings.Trim(route, "/")
	}
}

// WithLogger sets the parser logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a parser rendering templates against ctx.
func New(ctx *starctx.ExecutionContext, opts ...Option) *Parser {
	p := &Parser{
		ctx:        ctx,
		md:         NewMarkdown(),
		pagesRoute: core.DefaultPagesDir,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewMarkdown returns the Markdown converter used for page bodies: GitHub
// flavored, with heading anchors, keeping raw HTML so chart fragments survive.
func NewMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			gmparser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithUnsafe(),
		),
	)
}

// Parse reads and parses one content file.
func (p *Parser) Parse(file string, home bool) (*core.Page, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, &core.ContentError{File: file, Message: "cannot read content file", Err: err}
	}
	return p.ParseSource(file, src, home)
}

// ParseSource parses content already read from file.
//
// The title comes from the raw front matter, which is never templated, so it
// cannot depend on bindings. The body is rendered exactly once.
func (p *Parser) ParseSource(file string, src []byte, home bool) (*core.Page, error) {
	id := PageID(file)

	fm, err := ExtractFrontmatter(string(src))
	if err != nil {
		var fmErr *FrontmatterParseError
		if errors.As(err, &fmErr) {
			fmErr.File = file
		}
		return nil, &core.ContentError{File: file, Message: "malformed front matter", Err: err}
	}

	title := strings.TrimSpace(fm.Matter.Title)
	if title == "" {
		title = id
	}

	info := &starctx.PageInfo{ID: id, Title: title, Home: home, Meta: fm.Matter.Meta}
	rendered, err := p.render(file, fm.Body, fm.BodyLine, info)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := p.md.Convert([]byte(rendered), &buf); err != nil {
		return nil, &core.ContentError{File: file, Message: "cannot convert markdown", Err: err}
	}

	page := &core.Page{
		ID:          id,
		Title:       title,
		Description: strings.TrimSpace(fm.Matter.Description),
		Route:       Route(p.pagesRoute, id, home),
		Content:     buf.String(),
		Home:        home,
		Source:      file,
	}
	p.logger.Debug("parsed page",
		slog.String("file", file),
		slog.String("title", page.Title),
		slog.String("route", page.Route))
	return page, nil
}

// render evaluates the template layer and maps failures to TemplateError.
// line is the line of file on which body starts.
func (p *Parser) render(file, body string, line int, page *starctx.PageInfo) (string, error) {
	out, err := template.RenderStringAt(body, file, line, p.ctx.ForPage(page))
	if err == nil {
		return out, nil
	}

	errLine := 0
	var posErr template.Error
	if errors.As(err, &posErr) {
		errLine = posErr.Position().Line
	}

	var tplErr *core.TemplateError
	if errors.As(err, &tplErr) {
		located := *tplErr
		located.File = file
		located.Line = errLine
		return "", &located
	}
	return "", &core.TemplateError{File: file, Line: errLine, Err: err}
}

// PageID returns the page identifier for a content file: its base name
// without extension.
func PageID(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Route returns the site-relative route of a page.
func Route(pagesRoute, id string, home bool) string {
	if home {
		return "/"
	}
	return "/" + path.Join(pagesRoute, id+".html")
}
