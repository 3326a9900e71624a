// Package site orchestrates a full build: it executes the project queries,
// parses every content file, builds the navigation index and writes one HTML
// file per page.
package site

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/dsg/internal/parser"
	"github.com/leapstack-labs/dsg/internal/query"
	starctx "github.com/leapstack-labs/dsg/internal/starlark"
	"github.com/leapstack-labs/dsg/pkg/adapter"
	"github.com/leapstack-labs/dsg/pkg/core"
)

// Builder builds a site from a project directory.
type Builder struct {
	cfg    core.ProjectConfig
	root   string
	exec   adapter.Executor
	logger *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithExecutor sets the query executor instead of resolving one from the
// connection settings.
func WithExecutor(exec adapter.Executor) Option {
	return func(b *Builder) {
		b.exec = exec
	}
}

// WithLogger sets the builder logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a builder for the project rooted at root. Relative paths in
// cfg are resolved against root.
func New(cfg *core.ProjectConfig, root string, opts ...Option) *Builder {
	b := &Builder{
		root:   root,
		logger: slog.New(slog.DiscardHandler),
	}
	if cfg != nil {
		b.cfg = *cfg
	}
	b.cfg.ApplyDefaults()
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Result describes a completed build.
type Result struct {
	BuildID  string
	Queries  []string     // executed query names, sorted
	Pages    []*core.Page // home page first, then pages in lexical file order
	Links    core.LinkIndex
	Files    []string // written files, slash-separated and relative to the output directory
	Duration time.Duration
}

// output is one rendered artifact waiting to be written.
type output struct {
	rel  string
	data []byte
}

// Build runs the full pipeline. Any error aborts the build before a single
// output file is written.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	buildID := uuid.NewString()
	logger := b.logger.With(slog.String("build_id", buildID))
	logger.Info("build started", slog.String("project", b.cfg.Name), slog.String("root", b.root))

	exec := b.exec
	if exec == nil {
		resolved, err := adapter.Resolve(b.cfg.Connection.InRoot(b.root), logger)
		if err != nil {
			return nil, err
		}
		exec = resolved
	}

	tables, err := query.Build(ctx, b.path(b.cfg.QueriesDir), exec, logger)
	if err != nil {
		return nil, err
	}

	pages, err := b.parsePages(tables, logger)
	if err != nil {
		return nil, err
	}

	links := BuildLinkIndex(pages, logger)

	outputs, err := b.render(pages, links)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outDir := b.path(b.cfg.OutputDir)
	files := make([]string, 0, len(outputs))
	for _, out := range outputs {
		if err := writeFileAtomic(filepath.Join(outDir, filepath.FromSlash(out.rel)), out.data); err != nil {
			return nil, err
		}
		files = append(files, out.rel)
		logger.Debug("wrote page", slog.String("file", out.rel), slog.Int("bytes", len(out.data)))
	}

	res := &Result{
		BuildID:  buildID,
		Queries:  queryNames(tables),
		Pages:    pages,
		Links:    links,
		Files:    files,
		Duration: time.Since(start),
	}
	logger.Info("build complete",
		slog.Int("queries", len(tables)),
		slog.Int("pages", len(pages)),
		slog.String("output", outDir),
		slog.Duration("duration", res.Duration))
	return res, nil
}

func queryNames(tables core.QueryContext) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// parsePages parses the home page and then every page file in lexical order.
func (b *Builder) parsePages(tables core.QueryContext, logger *slog.Logger) ([]*core.Page, error) {
	sctx, err := starctx.NewExecutionContext(tables, starctx.ProjectInfoFromConfig(&b.cfg), nil)
	if err != nil {
		return nil, err
	}
	p := parser.New(sctx, parser.WithPagesRoute(b.PagesRoute()), parser.WithLogger(logger))

	files, err := discoverPages(b.path(b.cfg.PagesDir))
	if err != nil {
		return nil, err
	}

	home, err := p.Parse(b.path(b.cfg.HomeFile), true)
	if err != nil {
		return nil, err
	}

	pages := make([]*core.Page, 0, len(files)+1)
	pages = append(pages, home)
	for _, file := range files {
		page, err := p.Parse(file, false)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// render wraps every page in the layout. Nothing is written here.
func (b *Builder) render(pages []*core.Page, links core.LinkIndex) ([]output, error) {
	layout, err := LoadLayout(b.path(b.cfg.TemplatesDir))
	if err != nil {
		return nil, err
	}

	outputs := make([]output, 0, len(pages))
	for _, page := range pages {
		var buf bytes.Buffer
		if err := layout.Render(&buf, pageData(page, b.cfg.DisplayName, links)); err != nil {
			return nil, err
		}
		outputs = append(outputs, output{rel: b.outputPath(page), data: buf.Bytes()})
	}
	return outputs, nil
}

// PagesRoute returns the route segment non-home pages are served under. It
// mirrors the pages directory relative to the project root.
func (b *Builder) PagesRoute() string {
	dir := filepath.Clean(b.cfg.PagesDir)
	if filepath.IsAbs(dir) || dir == ".." || strings.HasPrefix(dir, ".."+string(filepath.Separator)) {
		dir = filepath.Base(dir)
	}
	if dir == "." {
		return ""
	}
	return filepath.ToSlash(dir)
}

// OutputDir returns the absolute or root-relative output directory.
func (b *Builder) OutputDir() string { return b.path(b.cfg.OutputDir) }

func (b *Builder) outputPath(page *core.Page) string {
	if page.Home {
		return "index.html"
	}
	return strings.TrimPrefix(page.Route, "/")
}

func (b *Builder) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(b.root, p)
}

// discoverPages lists page files in lexical order. Hidden files and
// directories are skipped; a missing directory has no pages.
func discoverPages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.ConfigurationError{Subject: "pages_dir", Message: "cannot read pages directory " + dir, Err: err}
	}

	seen := make(map[string]string, len(entries))
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		id := parser.PageID(name)
		if prev, ok := seen[id]; ok {
			return nil, &core.ConfigurationError{
				Subject: "page " + `"` + id + `"`,
				Message: "duplicate page name: " + prev + " and " + name,
			}
		}
		seen[id] = name
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}
