package site

import (
	_ "embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/dsg/pkg/core"
)

//go:embed templates/page.html
var defaultLayout string

// PageData is the data passed to the page wrapper template.
type PageData struct {
	Title       string
	Description string
	Route       string
	Home        bool
	Project     string        // project display name
	Content     template.HTML // rendered page body
	Pages       core.LinkIndex
}

// Layout is the page wrapper template.
type Layout struct {
	tmpl   *template.Template
	Source string // template file, empty for the built-in layout
}

// LoadLayout loads dir/page.html, falling back to the built-in layout when
// the project does not provide one.
func LoadLayout(dir string) (*Layout, error) {
	file := filepath.Join(dir, core.PageTemplateFile)
	src, err := os.ReadFile(file)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return parseLayout("", defaultLayout)
	case err != nil:
		return nil, &core.ContentError{File: file, Message: "cannot read page template", Err: err}
	}
	return parseLayout(file, string(src))
}

func parseLayout(file, src string) (*Layout, error) {
	name := file
	if name == "" {
		name = core.PageTemplateFile
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, &core.TemplateError{File: name, Message: "invalid page template", Err: err}
	}
	return &Layout{tmpl: tmpl, Source: file}, nil
}

// Render executes the layout for one page.
func (l *Layout) Render(w io.Writer, data PageData) error {
	if err := l.tmpl.Execute(w, data); err != nil {
		name := l.Source
		if name == "" {
			name = core.PageTemplateFile
		}
		return &core.TemplateError{File: name, Message: "cannot render page " + data.Route, Err: err}
	}
	return nil
}

// pageData assembles the wrapper bindings for a parsed page.
func pageData(page *core.Page, project string, links core.LinkIndex) PageData {
	return PageData{
		Title:       page.Title,
		Description: page.Description,
		Route:       page.Route,
		Home:        page.Home,
		Project:     project,
		Content:     template.HTML(page.Content), //nolint:gosec // G203: rendered from project content
		Pages:       links,
	}
}
