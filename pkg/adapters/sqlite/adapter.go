package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/dsg/pkg/adapter"
	"github.com/leapstack-labs/dsg/pkg/core"

	// sqlite driver (pure Go)
	_ "modernc.org/sqlite"
)

// Executor runs queries against a SQLite database file.
type Executor struct {
	adapter.BaseSQLExecutor
}

// New creates a SQLite executor. settings.file is the database path
// (default ":memory:"); a file path is opened read-only.
func New(info core.ConnectionInfo, logger *slog.Logger) (*Executor, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	path := info.Setting("file", core.MemoryDatabase)
	dsn := path
	if path != core.MemoryDatabase {
		dsn = "file:" + path + "?mode=ro"
	}

	return &Executor{
		BaseSQLExecutor: adapter.BaseSQLExecutor{
			KindName: Kind,
			Driver:   "sqlite",
			DSN:      dsn,
			Logger:   logger,
		},
	}, nil
}

// Ensure Executor implements adapter.Executor interface
var _ adapter.Executor = (*Executor)(nil)
