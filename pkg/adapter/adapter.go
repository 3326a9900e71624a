// Package adapter resolves a configured data source to a query executor.
//
// This package contains the public contract every backend implements and the
// kind-keyed registry used to resolve a core.ConnectionInfo. Concrete backends
// live in pkg/adapters/ subdirectories and register themselves in init().
package adapter

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/dsg/pkg/core"
)

// Executor runs SQL text against one backend and returns the result table.
//
// Implementations acquire a connection for the duration of a single Execute
// call and release it before returning, on success and on failure alike.
type Executor interface {
	// Kind returns the backend type tag (e.g. "duckdb").
	Kind() string

	// Execute runs sql and returns its tabular result.
	Execute(ctx context.Context, sql string) (*core.Table, error)
}

// Factory constructs an Executor from connection settings.
// Factories validate settings and return a *core.ConfigurationError when they are unusable.
type Factory func(info core.ConnectionInfo, logger *slog.Logger) (Executor, error)
