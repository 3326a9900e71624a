package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/dsg/internal/cli/config"
	"github.com/leapstack-labs/dsg/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/dsg/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/dsg/pkg/adapters/sqlite"
)

// sqliteProject writes a project that queries an in-memory SQLite database.
func sqliteProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"dsg.yml":        "name: sales_report\nconnection:\n  type: sqlite\n",
		"sql/sales.sql":  "SELECT 'Widgets' AS product, 120 AS revenue UNION ALL SELECT 'Gadgets', 80",
		"index.md":       "# Sales\n\n{{ bar_chart(data=sales, x=\"product\", y=\"revenue\") }}\n",
		"pages/about.md": "---\ntitle: About Us\n---\nAbout {{ project.display_name }}\n",
	})
	return root
}

// execute runs cmd with the project's configuration in its context.
func execute(t *testing.T, cmd *cobra.Command, root, mode string, args ...string) (string, error) {
	t.Helper()
	cfg, err := config.Load(filepath.Join(root, "dsg.yml"), nil)
	require.NoError(t, err)
	cfg.Output = mode

	ctx := config.WithLogger(config.WithConfig(context.Background(), cfg), testutil.NewTestLogger(t))
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(ctx)
	return buf.String(), err
}
