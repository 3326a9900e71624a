package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/dsg/internal/query"
	"github.com/leapstack-labs/dsg/pkg/adapter"
	"github.com/leapstack-labs/dsg/pkg/core"
	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Limit  int
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query <name>",
		Short: "Run one query file and print its table",
		Long: `Execute a single query file against the configured connection and print the
resulting table, exactly as templates see it under the query's name.`,
		Example: `  # Preview sql/sales.sql
  dsg query sales

  # First 10 rows as JSON
  dsg query sales --format json --limit 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := commandConfig(cmd)
			if err != nil {
				return err
			}

			dir := cfg.QueriesDir
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(cfg.ProjectRoot, dir)
			}
			tbl, err := runNamedQuery(cmd, cfg.Connection, dir, args[0])
			if err != nil {
				return err
			}
			return renderResults(cmd.OutOrStdout(), tbl, opts.Format, opts.Limit)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", FormatTable, "Output format: table, json, csv, md")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "Maximum rows to print (0 for all)")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{FormatTable, FormatJSON, FormatCSV, FormatMarkdown}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runNamedQuery(cmd *cobra.Command, conn core.ConnectionInfo, dir, name string) (*core.Table, error) {
	name = query.BaseName(name)
	f, ok, err := query.Find(dir, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		files, _ := query.Discover(dir)
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, f.Name)
		}
		available := "none"
		if len(names) > 0 {
			available = strings.Join(names, ", ")
		}
		return nil, fmt.Errorf("query %q not found in %s (available: %s)", name, dir, available)
	}

	logger := commandLogger(cmd)
	exec, err := adapter.Resolve(conn, logger)
	if err != nil {
		return nil, err
	}
	return query.Run(cmd.Context(), f, exec)
}
