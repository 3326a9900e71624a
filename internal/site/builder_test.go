package site

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/dsg/internal/testutil"
	"github.com/leapstack-labs/dsg/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/dsg/pkg/adapters/sqlite"
)

// fakeExecutor answers queries from a map keyed by trimmed SQL text.
type fakeExecutor struct {
	results map[string]*core.Table
	calls   int
}

func (f *fakeExecutor) Kind() string { return "fake" }

func (f *fakeExecutor) Execute(_ context.Context, sql string) (*core.Table, error) {
	f.calls++
	if tbl, ok := f.results[strings.TrimSpace(sql)]; ok {
		cp := *tbl
		return &cp, nil
	}
	return nil, fmt.Errorf("Catalog Error: Table does not exist for %q", strings.TrimSpace(sql))
}

func salesExecutor() *fakeExecutor {
	return &fakeExecutor{results: map[string]*core.Table{
		"SELECT x, y FROM sales": {
			Columns: []string{"x", "y"},
			Rows:    [][]any{{"x", int64(1)}, {"x", int64(2)}},
		},
	}}
}

func salesProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"sql/sales.sql":  "SELECT x, y FROM sales\n",
		"pages/about.md": "---\ntitle: About Us\n---\n# About\n\nWe sell x.\n",
		"index.md":       "# Home\n\n{{ bar_chart(data=sales, x=\"x\", y=\"y\") }}\n",
	})
	return root
}

func testConfig() *core.ProjectConfig {
	return &core.ProjectConfig{Name: "demo", DisplayName: "Demo Site"}
}

func TestBuild_SalesAboutScenario(t *testing.T) {
	root := salesProject(t)
	exec := salesExecutor()

	res, err := New(testConfig(), root, WithExecutor(exec), WithLogger(testutil.NewTestLogger(t))).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, exec.calls)
	assert.Equal(t, []string{"sales"}, res.Queries)
	assert.Equal(t, core.LinkIndex{"About Us": "/pages/about.html"}, res.Links)
	assert.Equal(t, []string{"index.html", "pages/about.html"}, res.Files)
	assert.NotEmpty(t, res.BuildID)

	require.Len(t, res.Pages, 2)
	assert.True(t, res.Pages[0].Home)
	assert.Equal(t, "/", res.Pages[0].Route)
	assert.Equal(t, "About Us", res.Pages[1].Title)

	dist := filepath.Join(root, "dist")
	assert.Equal(t, []string{"index.html", "pages/about.html"}, testutil.ListFiles(t, dist))

	index := testutil.ReadFile(t, dist, "index.html")
	assert.Contains(t, index, `<div class="dsg-chart" data-figure='`)
	assert.Contains(t, index, `"x":["x","x"],"y":[1,2]`, "chart is derived from the two-row table")
	assert.Contains(t, index, `<a href="/pages/about.html">About Us</a>`)
	assert.Contains(t, index, "<title>index | Demo Site</title>")

	about := testutil.ReadFile(t, dist, "pages/about.html")
	assert.Contains(t, about, `<h1 id="about">About</h1>`)
	assert.Contains(t, about, `<a href="/pages/about.html" aria-current="page">About Us</a>`)
}

func TestBuild_WritesNPlusOneFiles(t *testing.T) {
	for _, n := range []int{0, 1, 4} {
		t.Run(fmt.Sprintf("%d pages", n), func(t *testing.T) {
			root := t.TempDir()
			files := map[string]string{"index.md": "# Home\n"}
			want := []string{"index.html"}
			for i := 0; i < n; i++ {
				id := fmt.Sprintf("p%d", i)
				files["pages/"+id+".md"] = "Page " + id + "\n"
				want = append(want, "pages/"+id+".html")
			}
			testutil.WriteTree(t, root, files)

			res, err := New(testConfig(), root, WithExecutor(&fakeExecutor{})).Build(context.Background())
			require.NoError(t, err)

			assert.Equal(t, want, res.Files)
			assert.Equal(t, want, testutil.ListFiles(t, filepath.Join(root, "dist")))
			assert.Len(t, res.Links, n)
			for _, page := range res.Pages[1:] {
				assert.Equal(t, "/pages/"+page.ID+".html", page.Route)
			}
		})
	}
}

func TestBuild_Idempotent(t *testing.T) {
	root := salesProject(t)
	testutil.WriteTree(t, root, map[string]string{
		"pages/zeta.md":  "---\ntitle: Zeta\n---\n{{ sales }}\n",
		"pages/chart.md": "{{ line_chart(data=sales, x=\"x\", y=\"y\", color=\"x\") }}\n",
	})
	dist := filepath.Join(root, "dist")

	_, err := New(testConfig(), root, WithExecutor(salesExecutor())).Build(context.Background())
	require.NoError(t, err)
	first := snapshot(t, dist)

	_, err = New(testConfig(), root, WithExecutor(salesExecutor())).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, snapshot(t, dist))
}

func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for _, rel := range testutil.ListFiles(t, dir) {
		out[rel] = testutil.ReadFile(t, dir, rel)
	}
	return out
}

func TestBuild_UnsupportedConnectionWritesNothing(t *testing.T) {
	root := salesProject(t)
	cfg := testConfig()
	cfg.Connection = core.ConnectionInfo{Kind: "unsupported"}

	res, err := New(cfg, root).Build(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)

	var cfgErr *core.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %T: %v", err, err)
	assert.Contains(t, err.Error(), "unsupported")

	_, statErr := os.Stat(filepath.Join(root, "dist"))
	assert.True(t, os.IsNotExist(statErr), "no output directory is created")
}

func TestBuild_FailuresWriteNothing(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		exec  *fakeExecutor
		check func(t *testing.T, err error)
	}{
		{
			name:  "missing chart column",
			files: map[string]string{"pages/bad.md": "{{ bar_chart(data=sales, x=\"x\", y=\"revenue\") }}\n"},
			exec:  salesExecutor(),
			check: func(t *testing.T, err error) {
				var tplErr *core.TemplateError
				require.True(t, errors.As(err, &tplErr), "got %T: %v", err, err)
				assert.Equal(t, "revenue", tplErr.Field)
				assert.Contains(t, tplErr.File, "bad.md")
			},
		},
		{
			name:  "query failure",
			files: map[string]string{"sql/broken.sql": "SELECT * FROM nowhere"},
			exec:  salesExecutor(),
			check: func(t *testing.T, err error) {
				var qErr *core.QueryExecutionError
				require.True(t, errors.As(err, &qErr), "got %T: %v", err, err)
				assert.Equal(t, "broken", qErr.Query)
				assert.Contains(t, err.Error(), "nowhere")
			},
		},
		{
			name:  "duplicate query name",
			files: map[string]string{"sql/sales.query": "SELECT 1"},
			exec:  salesExecutor(),
			check: func(t *testing.T, err error) {
				var cfgErr *core.ConfigurationError
				require.True(t, errors.As(err, &cfgErr), "got %T: %v", err, err)
			},
		},
		{
			name:  "duplicate page name",
			files: map[string]string{"pages/about.markdown": "again"},
			exec:  salesExecutor(),
			check: func(t *testing.T, err error) {
				var cfgErr *core.ConfigurationError
				require.True(t, errors.As(err, &cfgErr), "got %T: %v", err, err)
				assert.Contains(t, err.Error(), "about.markdown")
			},
		},
		{
			name:  "malformed front matter",
			files: map[string]string{"pages/broken.md": "---\ntitle: x\n"},
			exec:  salesExecutor(),
			check: func(t *testing.T, err error) {
				var contentErr *core.ContentError
				require.True(t, errors.As(err, &contentErr), "got %T: %v", err, err)
				assert.Contains(t, contentErr.File, "broken.md")
			},
		},
		{
			name:  "invalid page template",
			files: map[string]string{"templates/page.html": "{{ if }}"},
			exec:  salesExecutor(),
			check: func(t *testing.T, err error) {
				var tplErr *core.TemplateError
				require.True(t, errors.As(err, &tplErr), "got %T: %v", err, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := salesProject(t)
			testutil.WriteTree(t, root, tt.files)

			res, err := New(testConfig(), root, WithExecutor(tt.exec)).Build(context.Background())
			require.Error(t, err)
			assert.Nil(t, res)
			tt.check(t, err)

			_, statErr := os.Stat(filepath.Join(root, "dist"))
			assert.True(t, os.IsNotExist(statErr), "nothing is written on failure")
		})
	}
}

func TestBuild_MissingHomePage(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"pages/about.md": "about"})

	_, err := New(testConfig(), root, WithExecutor(&fakeExecutor{})).Build(context.Background())
	var contentErr *core.ContentError
	require.True(t, errors.As(err, &contentErr), "got %T: %v", err, err)
	assert.Contains(t, contentErr.File, "index.md")
}

func TestBuild_TitleCollisionLastWins(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"index.md":   "home",
		"pages/a.md": "---\ntitle: Report\n---\nA",
		"pages/b.md": "---\ntitle: Report\n---\nB",
	})
	logger, logs := testutil.NewCaptureLogger()

	res, err := New(testConfig(), root, WithExecutor(&fakeExecutor{}), WithLogger(logger)).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, core.LinkIndex{"Report": "/pages/b.html"}, res.Links)
	assert.Equal(t, []string{"index.html", "pages/a.html", "pages/b.html"}, res.Files, "both pages are still written")
	assert.Contains(t, logs.String(), "duplicate page title")
	assert.Contains(t, logs.String(), "build_id="+res.BuildID)
}

func TestBuild_KeepsStaleOutput(t *testing.T) {
	root := salesProject(t)
	testutil.WriteTree(t, root, map[string]string{
		"dist/old.html":   "stale",
		"dist/index.html": "previous build",
	})

	_, err := New(testConfig(), root, WithExecutor(salesExecutor())).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "stale", testutil.ReadFile(t, filepath.Join(root, "dist"), "old.html"))
	assert.NotEqual(t, "previous build", testutil.ReadFile(t, filepath.Join(root, "dist"), "index.html"))
	assert.Equal(t, []string{"index.html", "old.html", "pages/about.html"}, testutil.ListFiles(t, filepath.Join(root, "dist")),
		"no temporary files are left behind")
}

func TestBuild_CustomLayoutAndDirectories(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"content/home.md":       "---\ntitle: Start\n---\nhello",
		"content/docs/intro.md": "intro",
		"layouts/page.html":     `{{ .Title }}|{{ range $t, $r := .Pages }}{{ $t }}={{ $r }}{{ end }}|{{ .Content }}`,
	})
	cfg := &core.ProjectConfig{
		Name:         "custom",
		HomeFile:     "content/home.md",
		PagesDir:     "content/docs",
		TemplatesDir: "layouts",
		OutputDir:    filepath.Join(root, "public"),
	}

	res, err := New(cfg, root, WithExecutor(&fakeExecutor{})).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"index.html", "content/docs/intro.html"}, res.Files)
	public := filepath.Join(root, "public")
	assert.Equal(t, "Start|intro=/content/docs/intro.html|<p>hello</p>\n", testutil.ReadFile(t, public, "index.html"))
}

func TestBuild_WithSQLiteBackend(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"sql/sales.sql":  "SELECT 'x' AS x, 1 AS y UNION ALL SELECT 'x', 2",
		"pages/about.md": "---\ntitle: About Us\n---\nabout",
		"index.md":       "{{ bar_chart(data=sales, x=\"x\", y=\"y\") }}\n\nRows: {{ len(sales) }}\n",
	})
	cfg := testConfig()
	cfg.Connection = core.ConnectionInfo{Kind: "sqlite"}

	res, err := New(cfg, root, WithLogger(testutil.NewTestLogger(t))).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, core.LinkIndex{"About Us": "/pages/about.html"}, res.Links)
	index := testutil.ReadFile(t, filepath.Join(root, "dist"), "index.html")
	assert.Contains(t, index, `"y":[1,2]`)
	assert.Contains(t, index, "<p>Rows: 2</p>")
}

func TestBuild_DatabaseFileRelativeToRoot(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"sql/sales.sql": "SELECT x, y FROM sales ORDER BY y",
		"index.md":      "Total rows: {{ len(sales) }}\n",
	})

	db, err := sql.Open("sqlite", filepath.Join(root, "data.db"))
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE sales (x TEXT, y INTEGER); INSERT INTO sales VALUES ('a', 1), ('b', 2), ('c', 3)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	t.Chdir(t.TempDir())

	cfg := testConfig()
	cfg.Connection = core.ConnectionInfo{Kind: "sqlite", Settings: map[string]string{"file": "data.db"}}

	_, err = New(cfg, root, WithLogger(testutil.NewTestLogger(t))).Build(context.Background())
	require.NoError(t, err)
	assert.Contains(t, testutil.ReadFile(t, filepath.Join(root, "dist"), "index.html"), "<p>Total rows: 3</p>")
	assert.Equal(t, "data.db", cfg.Connection.Settings["file"], "caller config is not modified")
}

func TestBuilder_PagesRoute(t *testing.T) {
	tests := []struct {
		dir  string
		want string
	}{
		{"", "pages"},
		{"pages/", "pages"},
		{"content/docs", "content/docs"},
		{"../shared/pages", "pages"},
		{"/abs/site/posts", "posts"},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			b := New(&core.ProjectConfig{PagesDir: tt.dir}, t.TempDir())
			assert.Equal(t, tt.want, b.PagesRoute())
		})
	}
}
