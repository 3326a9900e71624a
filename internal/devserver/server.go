// Package devserver serves a built site locally and, in watch mode, rebuilds
// it whenever project files change. Connected browsers reload after every
// successful rebuild.
package devserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/dsg/internal/site"
	"golang.org/x/sync/errgroup"
)

// ReloadPath is the server-sent events endpoint used for live reload.
const ReloadPath = "/__reload"

// Builder runs a full site build.
type Builder interface {
	Build(ctx context.Context) (*site.Result, error)
	OutputDir() string
}

// Config holds configuration for the dev server.
type Config struct {
	Builder Builder
	Root    string // project directory watched for changes
	Host    string // defaults to localhost
	Port    int
	Watch   bool
	Logger  *slog.Logger

	// Debounce delays a rebuild until changes settle. Defaults to 100ms.
	Debounce time.Duration
}

// Server serves the output directory of a site build.
type Server struct {
	builder  Builder
	root     string
	addr     string
	watch    bool
	debounce time.Duration
	logger   *slog.Logger
	notifier *notifier

	// mu serializes rebuilds.
	mu      sync.Mutex
	builds  int
	lastErr error
}

// New creates a dev server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Server{
		builder:  cfg.Builder,
		root:     cfg.Root,
		addr:     net.JoinHostPort(host, strconv.Itoa(cfg.Port)),
		watch:    cfg.Watch,
		debounce: debounce,
		logger:   logger,
		notifier: newNotifier(),
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.addr }

// Serve builds the site once, then serves it until ctx is cancelled. The
// initial build must succeed; later rebuild failures are logged and the
// previous output keeps being served.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Rebuild(ctx); err != nil {
		return fmt.Errorf("initial build failed: %w", err)
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("serving site",
		slog.String("url", "http://"+ln.Addr().String()),
		slog.String("dir", s.builder.OutputDir()),
		slog.Bool("watch", s.watch))

	if s.watch {
		eg.Go(func() error {
			return s.watchFiles(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down dev server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Handler returns the HTTP handler serving the output directory.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(middleware.Recoverer, middleware.NoCache)
	r.Get(ReloadPath, s.handleReload)
	r.Get("/*", s.handleFile)
	r.Head("/*", s.handleFile)
	return r
}

// Rebuild runs a full build. Concurrent calls are serialized. Browsers are
// told to reload only when the build succeeds.
func (s *Server) Rebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.builder.Build(ctx)
	s.lastErr = err
	if err != nil {
		s.logger.Error("rebuild failed", slog.Any("error", err))
		return err
	}
	s.builds++
	s.logger.Info("site rebuilt",
		slog.Int("pages", len(res.Pages)),
		slog.Duration("duration", res.Duration))
	s.notifier.broadcast()
	return nil
}

// Builds returns the number of successful builds and the error of the most
// recent attempt.
func (s *Server) Builds() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builds, s.lastErr
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	dir := s.builder.OutputDir()
	urlPath := path.Clean("/" + r.URL.Path)
	file := filepath.Join(dir, filepath.FromSlash(urlPath))

	info, err := os.Stat(file)
	if err == nil && info.IsDir() {
		file = filepath.Join(file, "index.html")
		info, err = os.Stat(file)
	}
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	if filepath.Ext(file) != ".html" {
		http.ServeFile(w, r, file)
		return
	}

	data, err := os.ReadFile(file) //nolint:gosec // G304: path is cleaned and rooted at the output directory
	if err != nil {
		http.Error(w, "cannot read page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, info.Name(), info.ModTime(), bytes.NewReader(injectReload(data)))
}

// handleReload streams a "reload" event after every successful rebuild.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")

	ch := s.notifier.subscribe()
	defer s.notifier.unsubscribe(ch)

	_, _ = fmt.Fprint(w, "data: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			_, _ = fmt.Fprint(w, "data: reload\n\n")
			flusher.Flush()
		}
	}
}

// reloadScript is injected into served HTML pages.
const reloadScript = `<script>
(function() {
  var es = new EventSource("` + ReloadPath + `");
  es.onmessage = function(e) {
    if (e.data === "reload") { window.location.reload(); }
  };
})();
</script>
`

// injectReload inserts the reload script before the closing body tag, or
// appends it when the page has none.
func injectReload(page []byte) []byte {
	idx := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if idx < 0 {
		return append(append([]byte{}, page...), reloadScript...)
	}
	out := make([]byte, 0, len(page)+len(reloadScript))
	out = append(out, page[:idx]...)
	out = append(out, reloadScript...)
	out = append(out, page[idx:]...)
	return out
}

// watchFiles rebuilds the site after project files change.
func (s *Server) watchFiles(ctx context.Context) error {
	watcher, err := newWatcher(s.root, s.builder.OutputDir())
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			s.logger.Debug("file changed", slog.String("file", event))

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(s.debounce, func() {
				_ = s.Rebuild(ctx)
			})

		case err, ok := <-watcher.Errors():
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", slog.Any("error", err))
		}
	}
}

// isHidden reports whether any element of rel starts with a dot.
func isHidden(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

// within reports whether target is dir or inside it.
func within(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
