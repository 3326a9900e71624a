package postgres

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/dsg/pkg/adapter"
	"github.com/leapstack-labs/dsg/pkg/core"
)

// Executor runs queries against a PostgreSQL server.
type Executor struct {
	adapter.BaseSQLExecutor

	connConfig *pgx.ConnConfig
}

// New creates a PostgreSQL executor from connection settings.
//
// Either settings.dsn is given, or the DSN is assembled from host, port,
// user, password, database and sslmode.
func New(info core.ConnectionInfo, logger *slog.Logger) (*Executor, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := info.Setting("dsn", "")
	if dsn == "" {
		if info.Setting("database", "") == "" {
			return nil, &core.ConfigurationError{
				Subject: "connection.settings",
				Message: "postgres requires either dsn or database",
			}
		}
		var err error
		if dsn, err = buildPostgresDSN(info); err != nil {
			return nil, err
		}
	}

	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, &core.ConfigurationError{
			Subject: "connection.settings",
			Message: "invalid postgres connection string",
			Err:     err,
		}
	}

	logger.Debug("configured postgres", slog.String("host", connConfig.Host), slog.String("database", connConfig.Database))

	e := &Executor{connConfig: connConfig}
	e.BaseSQLExecutor = adapter.BaseSQLExecutor{
		KindName: Kind,
		Driver:   "pgx",
		DSN:      dsn,
		Logger:   logger,
		Open:     e.open,
	}
	return e, nil
}

// open builds a handle from the parsed pgx config.
func (e *Executor) open(_, _ string) (*sql.DB, error) {
	return stdlib.OpenDB(*e.connConfig), nil
}

// buildPostgresDSN constructs a key=value PostgreSQL connection string.
func buildPostgresDSN(info core.ConnectionInfo) (string, error) {
	port := info.Setting("port", "5432")
	if _, err := strconv.Atoi(port); err != nil {
		return "", &core.ConfigurationError{
			Subject: "connection.settings.port",
			Message: fmt.Sprintf("invalid port %q", port),
		}
	}

	dsn := fmt.Sprintf("host=%s port=%s dbname=%s sslmode=%s",
		info.Setting("host", "localhost"),
		port,
		info.Setting("database", ""),
		info.Setting("sslmode", "disable"))

	if user := info.Setting("user", ""); user != "" {
		dsn += fmt.Sprintf(" user=%s", user)
	}
	if password := info.Setting("password", ""); password != "" {
		dsn += fmt.Sprintf(" password=%s", password)
	}
	return dsn, nil
}

// Ensure Executor implements adapter.Executor interface
var _ adapter.Executor = (*Executor)(nil)
