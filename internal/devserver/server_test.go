package devserver

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/dsg/internal/site"
	"github.com/leapstack-labs/dsg/internal/testutil"
	"github.com/leapstack-labs/dsg/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuilder struct {
	mu    sync.Mutex
	out   string
	calls int
	err   error
}

func (b *fakeBuilder) Build(_ context.Context) (*site.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	if err := os.MkdirAll(b.out, 0o750); err != nil {
		return nil, err
	}
	page := "<html><body><h1>build</h1></body></html>"
	if err := os.WriteFile(filepath.Join(b.out, "index.html"), []byte(page), 0o600); err != nil {
		return nil, err
	}
	return &site.Result{Pages: []*core.Page{{ID: "index", Home: true}}}, nil
}

func (b *fakeBuilder) OutputDir() string { return b.out }

func (b *fakeBuilder) setErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func TestHandler_ServesOutput(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{
		"index.html":       "<html><body><h1>Home</h1></body></html>",
		"pages/about.html": "<p>About</p>",
		"style.css":        "body{}",
	})
	s := New(Config{Builder: &fakeBuilder{out: dir}})
	h := s.Handler()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   []string
	}{
		{name: "root serves index", path: "/", wantStatus: http.StatusOK, wantBody: []string{"<h1>Home</h1>", ReloadPath}},
		{name: "page", path: "/pages/about.html", wantStatus: http.StatusOK, wantBody: []string{"<p>About</p>", ReloadPath}},
		{name: "static file", path: "/style.css", wantStatus: http.StatusOK, wantBody: []string{"body{}"}},
		{name: "missing file", path: "/missing.html", wantStatus: http.StatusNotFound},
		{name: "directory without index", path: "/pages/", wantStatus: http.StatusNotFound},
		{name: "traversal is rooted", path: "/../../etc/passwd", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "http://localhost"+tt.path, nil)
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			for _, want := range tt.wantBody {
				assert.Contains(t, rec.Body.String(), want)
			}
		})
	}
}

func TestHandler_StaticFilesAreNotModified(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"data.json": `{"a":1}`})
	s := New(Config{Builder: &fakeBuilder{out: dir}})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data.json", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"a":1}`, rec.Body.String())
}

func TestInjectReload(t *testing.T) {
	tests := []struct {
		name  string
		page  string
		check func(t *testing.T, out string)
	}{
		{
			name: "before closing body",
			page: "<html><body><p>x</p></body></html>",
			check: func(t *testing.T, out string) {
				assert.True(t, strings.HasPrefix(out, "<html><body><p>x</p><script>"))
				assert.True(t, strings.HasSuffix(out, "</script>\n</body></html>"))
			},
		},
		{
			name: "upper case body tag",
			page: "<BODY>x</BODY>",
			check: func(t *testing.T, out string) {
				assert.True(t, strings.HasPrefix(out, "<BODY>x<script>"))
				assert.True(t, strings.HasSuffix(out, "</BODY>"))
			},
		},
		{
			name: "no body tag",
			page: "<p>fragment</p>",
			check: func(t *testing.T, out string) {
				assert.Equal(t, "<p>fragment</p>"+reloadScript, out)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, string(injectReload([]byte(tt.page))))
		})
	}
}

func TestRebuild_NotifiesOnSuccessOnly(t *testing.T) {
	b := &fakeBuilder{out: t.TempDir()}
	s := New(Config{Builder: b, Logger: testutil.NewTestLogger(t)})
	ch := s.notifier.subscribe()
	defer s.notifier.unsubscribe(ch)

	require.NoError(t, s.Rebuild(context.Background()))
	select {
	case <-ch:
	default:
		t.Fatal("expected a reload ping after a successful build")
	}

	boom := errors.New("boom")
	b.setErr(boom)
	err := s.Rebuild(context.Background())
	require.ErrorIs(t, err, boom)
	select {
	case <-ch:
		t.Fatal("no reload ping after a failed build")
	default:
	}

	builds, lastErr := s.Builds()
	assert.Equal(t, 1, builds)
	assert.ErrorIs(t, lastErr, boom)
}

func TestReloadStream(t *testing.T) {
	b := &fakeBuilder{out: t.TempDir()}
	s := New(Config{Builder: b})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+ReloadPath, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "data: connected\n", line)
	require.Equal(t, 1, s.notifier.count())

	require.NoError(t, s.Rebuild(context.Background()))

	_, err = reader.ReadString('\n') // blank separator
	require.NoError(t, err)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "data: reload\n", line)
}

func TestServe_RebuildsOnChange(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"index.md": "# Home"})
	b := &fakeBuilder{out: filepath.Join(root, "dist")}
	s := New(Config{
		Builder:  b,
		Root:     root,
		Port:     0,
		Watch:    true,
		Debounce: 10 * time.Millisecond,
		Logger:   testutil.NewTestLogger(t),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	assert.Eventually(t, func() bool {
		builds, _ := s.Builds()
		return builds >= 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		// Keep touching the file until the watcher has been registered.
		_ = os.WriteFile(filepath.Join(root, "index.md"), []byte("# Changed"), 0o600)
		builds, _ := s.Builds()
		return builds >= 2
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServe_InitialBuildFailure(t *testing.T) {
	b := &fakeBuilder{out: t.TempDir(), err: errors.New("no such table")}
	s := New(Config{Builder: b, Port: 0})

	err := s.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial build failed")
	assert.Contains(t, err.Error(), "no such table")
}

func TestWatcher_Ignored(t *testing.T) {
	root := t.TempDir()
	w := &watcher{root: root, output: filepath.Join(root, "dist")}

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "index.md"), false},
		{filepath.Join(root, "sql", "sales.sql"), false},
		{filepath.Join(root, "templates", "page.html"), false},
		{filepath.Join(root, "dist"), true},
		{filepath.Join(root, "dist", "index.html"), true},
		{filepath.Join(root, "dist", "pages", ".about.html.tmp-1"), true},
		{filepath.Join(root, ".git", "HEAD"), true},
		{filepath.Join(root, "pages", ".about.md.swp"), true},
		{filepath.Join(root, "distribution.md"), false},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			assert.Equal(t, tt.want, w.ignored(tt.path))
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{Builder: &fakeBuilder{}, Port: 8080})
	assert.Equal(t, "localhost:8080", s.Addr())
	assert.Equal(t, 100*time.Millisecond, s.debounce)
	assert.NotNil(t, s.logger)
}
