// Package sqlite provides the SQLite query backend for dsg.
//
// This file registers the backend with the adapter registry.
// Import this package with a blank identifier to register it:
//
//	import _ "github.com/leapstack-labs/dsg/pkg/adapters/sqlite"
package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/dsg/pkg/adapter"
	"github.com/leapstack-labs/dsg/pkg/core"
)

// Kind is the connection type tag for SQLite.
const Kind = "sqlite"

func init() {
	adapter.Register(Kind, func(info core.ConnectionInfo, logger *slog.Logger) (adapter.Executor, error) {
		return New(info, logger)
	})
}
