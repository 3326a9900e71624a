package devserver

import (
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watcher reports changes to project files below a root directory. The
// output directory and hidden paths are ignored so a build never triggers
// itself.
type watcher struct {
	fsw    *fsnotify.Watcher
	root   string
	output string
	events chan string
	errors chan error
	done   chan struct{}
}

func newWatcher(root, output string) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	absOutput, err := filepath.Abs(output)
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &watcher{
		fsw:    fsw,
		root:   absRoot,
		output: absOutput,
		events: make(chan string),
		errors: make(chan error),
		done:   make(chan struct{}),
	}
	if err := w.addTree(absRoot); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	go w.loop()
	return w, nil
}

// Events delivers the paths of relevant changes.
func (w *watcher) Events() <-chan string { return w.events }

// Errors delivers watcher errors.
func (w *watcher) Errors() <-chan error { return w.errors }

// Close stops the watcher.
func (w *watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *watcher) loop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				// New directories must be watched too; plain files fail the walk harmlessly.
				_ = w.addTree(event.Name)
			}
			select {
			case w.events <- event.Name:
			case <-w.done:
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

func (w *watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	return !w.ignored(event.Name)
}

func (w *watcher) ignored(path string) bool {
	if within(w.output, path) {
		return true
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return true
	}
	return isHidden(rel)
}

// addTree watches dir and every directory below it.
func (w *watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}
