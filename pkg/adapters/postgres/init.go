// Package postgres provides the PostgreSQL query backend for dsg.
//
// This file registers the backend with the adapter registry.
// Import this package with a blank identifier to register it:
//
//	import _ "github.com/leapstack-labs/dsg/pkg/adapters/postgres"
package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/dsg/pkg/adapter"
	"github.com/leapstack-labs/dsg/pkg/core"
)

// Kind is the connection type tag for PostgreSQL.
const Kind = "postgres"

func init() {
	adapter.Register(Kind, func(info core.ConnectionInfo, logger *slog.Logger) (adapter.Executor, error) {
		return New(info, logger)
	})
}
