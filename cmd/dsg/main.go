// Package main provides the dsg command.
package main

import (
	"os"

	"github.com/leapstack-labs/dsg/internal/cli"

	_ "github.com/leapstack-labs/dsg/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/dsg/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/dsg/pkg/adapters/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
