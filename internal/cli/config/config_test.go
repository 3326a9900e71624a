package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/dsg/internal/testutil"
	"github.com/leapstack-labs/dsg/pkg/core"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	flags.String("project-dir", "", "")
	flags.String("output-dir", "", "")
	flags.BoolP("verbose", "v", false, "")
	flags.Bool("no-color", false, "")
	flags.String("output", "", "")
	return flags
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTree(t, root, files)
	return root
}

func TestLoad_Defaults(t *testing.T) {
	root := writeProject(t, map[string]string{
		"dsg.yml": "name: sales_report\nconnection:\n  type: duckdb\n  settings:\n    file: data.duckdb\n",
	})

	cfg, err := Load(filepath.Join(root, "dsg.yml"), nil)
	require.NoError(t, err)

	assert.Equal(t, "sales_report", cfg.Name)
	assert.Equal(t, "Sales Report", cfg.DisplayName)
	assert.Equal(t, core.ConnectionInfo{Kind: "duckdb", Settings: map[string]string{"file": filepath.Join(root, "data.duckdb")}}, cfg.Connection)
	assert.Equal(t, core.DefaultHomeFile, cfg.HomeFile)
	assert.Equal(t, core.DefaultPagesDir, cfg.PagesDir)
	assert.Equal(t, core.DefaultQueriesDir, cfg.QueriesDir)
	assert.Equal(t, core.DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, core.DefaultTemplatesDir, cfg.TemplatesDir)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, ServeConfig{Host: DefaultServeHost, Port: DefaultServePort}, cfg.Serve)
	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(root, "dsg.yml"), cfg.File)
}

func TestLoad_ProjectFields(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "explicit display name",
			yaml: "name: demo\ndisplay_name: My Dashboard\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "My Dashboard", cfg.DisplayName)
			},
		},
		{
			name: "default connection type",
			yaml: "name: demo\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "duckdb", cfg.Connection.Kind)
			},
		},
		{
			name: "connection type is case insensitive",
			yaml: "name: demo\nconnection:\n  type: SQLite\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "sqlite", cfg.Connection.Kind)
			},
		},
		{
			name: "numeric settings become strings",
			yaml: "name: demo\nconnection:\n  type: postgres\n  settings:\n    host: db\n    port: 5432\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, map[string]string{"host": "db", "port": "5432"}, cfg.Connection.Settings)
			},
		},
		{
			name: "custom layout",
			yaml: "name: demo\npages_dir: content\nqueries_dir: queries\noutput_dir: public\nhome_file: home.md\n",
			check: func(t *testing.T, cfg *Config) {
				p := cfg.Project()
				assert.Equal(t, "content", p.PagesDir)
				assert.Equal(t, "queries", p.QueriesDir)
				assert.Equal(t, "public", p.OutputDir)
				assert.Equal(t, "home.md", p.HomeFile)
			},
		},
		{
			name: "serve settings",
			yaml: "name: demo\nserve:\n  port: 9000\n  watch: true\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ServeConfig{Host: DefaultServeHost, Port: 9000, Watch: true}, cfg.Serve)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeProject(t, map[string]string{"dsg.yml": tt.yaml})
			cfg, err := Load(filepath.Join(root, "dsg.yml"), nil)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_NameDefaultsToDirectory(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "quarterly-numbers")
	testutil.WriteTree(t, root, map[string]string{"dsg.yaml": "connection:\n  type: duckdb\n"})

	cfg, err := Load(filepath.Join(root, "dsg.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, "quarterly-numbers", cfg.Name)
	assert.Equal(t, "Quarterly Numbers", cfg.DisplayName)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string]string
		errSubstr string
	}{
		{name: "no config file", files: map[string]string{"index.md": "x"}, errSubstr: "no dsg.yml found"},
		{name: "invalid yaml", files: map[string]string{"dsg.yml": "name: [unclosed"}, errSubstr: "cannot read config file"},
		{name: "empty connection type", files: map[string]string{"dsg.yml": "connection:\n  type: ''\n"}, errSubstr: "connection type is required"},
		{name: "bad port", files: map[string]string{"dsg.yml": "serve:\n  port: 70000\n"}, errSubstr: "invalid port"},
		{name: "bad .env", files: map[string]string{"dsg.yml": "name: x\n", ".env": "DSG-BAD=1\n"}, errSubstr: ".env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeProject(t, tt.files)
			flags := newFlags()
			require.NoError(t, flags.Parse([]string{"--project-dir", root}))

			_, err := Load("", flags)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)

			var cfgErr *core.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "got %T", err)
		})
	}
}

func TestLoad_Precedence(t *testing.T) {
	root := writeProject(t, map[string]string{
		"dsg.yml": "name: demo\noutput_dir: from-file\npages_dir: from-file\nqueries_dir: from-file\nverbose: false\n",
		".env":    "DSG_PAGES_DIR=from-dotenv\nDSG_QUERIES_DIR=from-dotenv\nOTHER=ignored\n",
	})
	t.Setenv("DSG_QUERIES_DIR", "from-env")
	t.Setenv("DSG_OUTPUT_DIR", "from-env")

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--project-dir", root, "--output-dir", "from-flag", "-v"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", cfg.PagesDir, ".env overrides the file")
	assert.Equal(t, "from-env", cfg.QueriesDir, "environment overrides .env")
	wantOut, _ := filepath.Abs("from-flag")
	assert.Equal(t, wantOut, cfg.OutputDir, "flags override everything and resolve against the working directory")
	assert.True(t, cfg.Verbose)
	_, exported := os.LookupEnv("OTHER")
	assert.False(t, exported, ".env values are not exported to the process")
}

func TestLoad_NestedEnv(t *testing.T) {
	root := writeProject(t, map[string]string{"dsg.yml": "name: demo\n"})
	t.Setenv("DSG_CONNECTION__TYPE", "sqlite")
	t.Setenv("DSG_CONNECTION__SETTINGS__FILE", "warehouse.db")
	t.Setenv("DSG_SERVE__PORT", "8123")

	cfg, err := Load(filepath.Join(root, "dsg.yml"), nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Connection.Kind)
	assert.Equal(t, filepath.Join(root, "warehouse.db"), cfg.Connection.Settings["file"])
	assert.Equal(t, 8123, cfg.Serve.Port)
}

func TestLoad_ExpandsSettings(t *testing.T) {
	root := writeProject(t, map[string]string{
		"dsg.yml": "name: demo\nconnection:\n  type: postgres\n  settings:\n    host: ${DSG_TEST_PG_HOST}\n    password: ${DSG_TEST_PG_PASSWORD}\n    user: ${DSG_TEST_UNSET_USER}\n",
		".env":    "DSG_TEST_PG_PASSWORD=secret\n",
	})
	t.Setenv("DSG_TEST_PG_HOST", "db.internal")

	cfg, err := Load(filepath.Join(root, "dsg.yml"), nil)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Connection.Settings["host"])
	assert.Equal(t, "secret", cfg.Connection.Settings["password"])
	assert.Equal(t, "${DSG_TEST_UNSET_USER}", cfg.Connection.Settings["user"])
}

func TestLoad_DatabaseFileRelativeToRoot(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "shared.db")
	tests := []struct {
		name string
		file string
		want func(root string) string
	}{
		{name: "relative", file: "data/sales.db", want: func(root string) string { return filepath.Join(root, "data", "sales.db") }},
		{name: "env reference", file: "${DSG_TEST_DB_NAME}", want: func(root string) string { return filepath.Join(root, "from-env.db") }},
		{name: "memory", file: core.MemoryDatabase, want: func(string) string { return core.MemoryDatabase }},
		{name: "absolute", file: abs, want: func(string) string { return abs }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeProject(t, map[string]string{
				"dsg.yml": "name: demo\nconnection:\n  type: sqlite\n  settings:\n    file: \"" + tt.file + "\"\n",
			})
			t.Setenv("DSG_TEST_DB_NAME", "from-env.db")
			t.Chdir(t.TempDir())

			cfg, err := Load(filepath.Join(root, "dsg.yml"), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want(root), cfg.Connection.Settings["file"])
		})
	}
}

func TestLoad_FindsConfigUpward(t *testing.T) {
	root := writeProject(t, map[string]string{
		"dsg.yml":        "name: upward\n",
		"pages/about.md": "about",
	})
	root, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	t.Chdir(filepath.Join(root, "pages"))

	cfg, err := Load("", newFlags())
	require.NoError(t, err)
	assert.Equal(t, "upward", cfg.Name)
	assert.Equal(t, root, cfg.ProjectRoot)
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sales", "Sales"},
		{"sales_report", "Sales Report"},
		{"my-site", "My Site"},
		{"already Titled", "Already Titled"},
		{"__odd__name__", "Odd Name"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.in))
		})
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))
	assert.NotNil(t, GetLogger(ctx))

	cfg := &Config{}
	logger := testutil.NewTestLogger(t)
	ctx = WithLogger(WithConfig(ctx, cfg), logger)

	assert.Same(t, cfg, FromContext(ctx))
	assert.Same(t, logger, GetLogger(ctx))
}
