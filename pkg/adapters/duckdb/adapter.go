package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/dsg/pkg/adapter"
	"github.com/leapstack-labs/dsg/pkg/core"
	"github.com/marcboeker/go-duckdb"
)

// Executor runs queries against a DuckDB database file.
type Executor struct {
	adapter.BaseSQLExecutor

	// Path is the database file, or ":memory:".
	Path string
	// Extensions are installed and loaded on every new connection.
	Extensions []string
	// ReadOnly opens the database file with access_mode=READ_ONLY.
	ReadOnly bool
}

// New creates a DuckDB executor from connection settings.
//
// Recognized settings:
//   - file: database path (default ":memory:")
//   - extensions: comma-separated extensions to load (e.g. "httpfs,json")
//   - read_only: "true" to open the file read-only
func New(info core.ConnectionInfo, logger *slog.Logger) (*Executor, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &Executor{
		Path:       info.Setting("file", core.MemoryDatabase),
		Extensions: splitList(info.Setting("extensions", "")),
	}

	switch strings.ToLower(info.Setting("read_only", "false")) {
	case "true", "1", "yes":
		e.ReadOnly = true
	case "false", "0", "no":
	default:
		return nil, &core.ConfigurationError{
			Subject: "connection.settings.read_only",
			Message: fmt.Sprintf("expected true or false, got %q", info.Settings["read_only"]),
		}
	}
	if e.ReadOnly && e.Path == core.MemoryDatabase {
		return nil, &core.ConfigurationError{
			Subject: "connection.settings.read_only",
			Message: "an in-memory database cannot be opened read-only",
		}
	}

	e.BaseSQLExecutor = adapter.BaseSQLExecutor{
		KindName: Kind,
		Driver:   "duckdb",
		DSN:      e.dsn(),
		Logger:   logger,
		Open:     e.open,
	}
	return e, nil
}

// dsn builds the DuckDB data source name.
func (e *Executor) dsn() string {
	path := e.Path
	if path == core.MemoryDatabase {
		path = ""
	}
	if e.ReadOnly {
		return path + "?access_mode=READ_ONLY"
	}
	return path
}

// open creates a handle whose connections load the configured extensions.
func (e *Executor) open(_, dsn string) (*sql.DB, error) {
	connector, err := duckdb.NewConnector(dsn, func(execer driver.ExecerContext) error {
		for _, ext := range e.Extensions {
			for _, stmt := range []string{"INSTALL " + ext, "LOAD " + ext} {
				if _, err := execer.ExecContext(context.Background(), stmt, nil); err != nil {
					return fmt.Errorf("failed to %s: %w", strings.ToLower(stmt), err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// splitList splits a comma-separated setting, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Ensure Executor implements adapter.Executor interface
var _ adapter.Executor = (*Executor)(nil)
