// Package query builds the query context: it executes every query file in a
// directory and binds each result table to the file's base name.
package query

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/dsg/pkg/adapter"
	"github.com/leapstack-labs/dsg/pkg/core"
)

// File is one query definition discovered on disk.
type File struct {
	Name string // base name without extension, the binding name
	Path string
}

// Discover lists the query files in dir in lexical filename order.
// Hidden files and subdirectories are ignored; a missing directory yields no files.
// Two files sharing a base name fail with a *core.ConfigurationError.
func Discover(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.ConfigurationError{
			Subject: "queries directory " + dir,
			Message: "cannot list query files",
			Err:     err,
		}
	}

	// os.ReadDir already sorts by filename; keep the guarantee explicit.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	seen := make(map[string]string, len(entries))
	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		name := BaseName(entry.Name())
		path := filepath.Join(dir, entry.Name())
		if prev, dup := seen[name]; dup {
			return nil, &core.ConfigurationError{
				Subject: fmt.Sprintf("query %q", name),
				Message: fmt.Sprintf("duplicate query name: %s and %s", filepath.Base(prev), entry.Name()),
			}
		}
		seen[name] = path
		files = append(files, File{Name: name, Path: path})
	}
	return files, nil
}

// Build executes every query file in dir through exec and returns the query context.
// Any read or execution failure aborts the whole build; no partial context is returned.
func Build(ctx context.Context, dir string, exec adapter.Executor, logger *slog.Logger) (core.QueryContext, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	files, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	if files == nil {
		logger.Debug("no queries directory, query context is empty", "dir", dir)
	}

	qctx := make(core.QueryContext, len(files))
	for _, f := range files {
		tbl, err := Run(ctx, f, exec)
		if err != nil {
			return nil, err
		}
		qctx[f.Name] = tbl
		logger.Debug("executed query",
			slog.String("query", f.Name),
			slog.Int("columns", len(tbl.Columns)),
			slog.Int("rows", tbl.Len()))
	}

	logger.Info("query context built", "queries", len(qctx))
	return qctx, nil
}

// Run reads one query file verbatim and executes it.
func Run(ctx context.Context, f File, exec adapter.Executor) (*core.Table, error) {
	sqlText, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, &core.ContentError{File: f.Path, Message: "cannot read query file", Err: err}
	}

	tbl, err := exec.Execute(ctx, string(sqlText))
	if err != nil {
		return nil, &core.QueryExecutionError{Query: f.Name, File: f.Path, Err: err}
	}
	tbl.Name = f.Name
	return tbl, nil
}

// Find returns the query file bound to name, or false.
func Find(dir, name string) (File, bool, error) {
	files, err := Discover(dir)
	if err != nil {
		return File{}, false, err
	}
	for _, f := range files {
		if f.Name == name {
			return f, true, nil
		}
	}
	return File{}, false, nil
}

// BaseName strips the extension from a file name ("sales.sql" -> "sales").
func BaseName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
