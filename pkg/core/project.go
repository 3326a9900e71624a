package core

import (
	"maps"
	"path/filepath"
)

// Default project layout, relative to the content root.
const (
	DefaultHomeFile     = "index.md"
	DefaultPagesDir     = "pages"
	DefaultQueriesDir   = "sql"
	DefaultOutputDir    = "dist"
	DefaultTemplatesDir = "templates"
	PageTemplateFile    = "page.html"
)

// ConnectionInfo identifies and parametrizes one data-source backend.
type ConnectionInfo struct {
	// Kind is the backend type tag (duckdb, sqlite, postgres).
	Kind string `koanf:"type"`

	// Settings holds backend-specific options (e.g. file, dsn, host).
	Settings map[string]string `koanf:"settings"`
}

// Setting returns the named setting or def when it is unset or empty.
func (c ConnectionInfo) Setting(name, def string) string {
	if v, ok := c.Settings[name]; ok && v != "" {
		return v
	}
	return def
}

// MemoryDatabase is the file setting of an in-memory database.
const MemoryDatabase = ":memory:"

// InRoot returns a copy whose relative file setting is joined onto root, so
// database files resolve against the project rather than the working
// directory. In-memory and absolute files are left alone.
func (c ConnectionInfo) InRoot(root string) ConnectionInfo {
	file := c.Settings["file"]
	if root == "" || file == "" || file == MemoryDatabase || filepath.IsAbs(file) {
		return c
	}
	settings := make(map[string]string, len(c.Settings))
	maps.Copy(settings, c.Settings)
	settings["file"] = filepath.Join(root, file)
	c.Settings = settings
	return c
}

// ProjectConfig holds project-level configuration for one build.
// Directory and file fields are relative to the content root unless absolute.
type ProjectConfig struct {
	Name         string         `koanf:"name"`
	DisplayName  string         `koanf:"display_name"`
	Connection   ConnectionInfo `koanf:"connection"`
	HomeFile     string         `koanf:"home_file"`
	PagesDir     string         `koanf:"pages_dir"`
	QueriesDir   string         `koanf:"queries_dir"`
	OutputDir    string         `koanf:"output_dir"`
	TemplatesDir string         `koanf:"templates_dir"`
}

// ApplyDefaults fills unset layout fields with the conventional project layout.
func (c *ProjectConfig) ApplyDefaults() {
	if c == nil {
		return
	}
	if c.HomeFile == "" {
		c.HomeFile = DefaultHomeFile
	}
	if c.PagesDir == "" {
		c.PagesDir = DefaultPagesDir
	}
	if c.QueriesDir == "" {
		c.QueriesDir = DefaultQueriesDir
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.TemplatesDir == "" {
		c.TemplatesDir = DefaultTemplatesDir
	}
	if c.DisplayName == "" {
		c.DisplayName = c.Name
	}
}
