package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/dsg/pkg/core"
)

// OpenFunc opens a database handle. It matches sql.Open.
type OpenFunc func(driverName, dataSourceName string) (*sql.DB, error)

// BaseSQLExecutor provides database/sql backed query execution.
// Embed this struct in concrete backends; each Execute call opens a fresh
// handle, runs the query and closes the handle again.
type BaseSQLExecutor struct {
	KindName string
	Driver   string
	DSN      string
	Logger   *slog.Logger

	// Open overrides how handles are opened. Defaults to sql.Open.
	Open OpenFunc
}

// Kind returns the backend type tag.
func (b *BaseSQLExecutor) Kind() string {
	return b.KindName
}

// Execute runs sqlText on a connection that is acquired for this call only.
func (b *BaseSQLExecutor) Execute(ctx context.Context, sqlText string) (*core.Table, error) {
	logger := b.logger()

	db, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Warn("failed to close database connection", "error", cerr)
		}
	}()

	logger.Debug("executing query", "bytes", len(sqlText))

	//nolint:rowserrcheck // rows.Err() is checked in ScanTable
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return ScanTable(rows)
}

// connect opens and pings a single-connection handle.
func (b *BaseSQLExecutor) connect(ctx context.Context) (*sql.DB, error) {
	open := b.Open
	if open == nil {
		open = sql.Open
	}

	db, err := open(b.Driver, b.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", b.KindName, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", b.KindName, err)
	}
	return db, nil
}

func (b *BaseSQLExecutor) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

// ScanTable reads all remaining rows into a core.Table with normalized cell values.
func ScanTable(rows *sql.Rows) (*core.Table, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	table := &core.Table{
		Columns: columns,
		Rows:    [][]any{},
	}

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			values[i] = core.NormalizeValue(v)
		}
		table.Rows = append(table.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return table, nil
}
