// Package watch recompiles sources as they change on disk.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docfold/internal/build"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/logfields"
)

// Builder is the part of build.Builder the watcher drives.
type Builder interface {
	Build(ctx context.Context) (*build.Report, error)
	BuildPaths(ctx context.Context, paths []string) (*build.Report, error)
}

// Watcher batches filesystem events under a source directory and hands the
// changed paths to a Builder once the directory has been quiet for Debounce.
type Watcher struct {
	Dir      string
	Debounce time.Duration
	Builder  Builder
	// OnBuild, when set, is called after every rebuild.
	OnBuild func(*build.Report, error)

	mu      sync.Mutex
	pending map[string]bool
	full    bool
	timer   *time.Timer
}

// Run watches until ctx is canceled. Rebuilds never overlap.
func (w *Watcher) Run(ctx context.Context) error {
	absDir, err := filepath.Abs(w.Dir)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "resolve source dir").Build()
	}
	if st, err := os.Stat(absDir); err != nil || !st.IsDir() {
		return errors.ConfigError("source dir not found or not a directory").
			WithContext("dir", absDir).
			Build()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "create watcher").Build()
	}
	defer func() { _ = fw.Close() }()
	addDirsRecursive(fw, absDir)

	rebuild := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-rebuild:
				w.rebuild(ctx)
			}
		}
	}()

	slog.Info("Watching for changes", logfields.Path(absDir), slog.Duration("debounce", w.Debounce))
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			<-done
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(fw, absDir, ev, rebuild)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(fw *fsnotify.Watcher, absDir string, ev fsnotify.Event, rebuild chan<- struct{}) {
	if ev.Op == fsnotify.Chmod || shouldIgnore(ev.Name) {
		return
	}
	rel, err := filepath.Rel(absDir, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	slog.Debug("File change detected", logfields.Path(rel), slog.String("op", ev.Op.String()))

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		w.pending = map[string]bool{}
	}
	switch {
	case ev.Has(fsnotify.Create) && isDir(ev.Name):
		addDirsRecursive(fw, ev.Name)
		// Files created with the directory may predate the watch.
		w.full = true
	case (build.Source{Path: rel}).Kind() != "":
		w.pending[rel] = true
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		// A directory went away; its documents are only found by a full build.
		w.full = true
	default:
		return
	}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.Debounce, func() {
		select {
		case rebuild <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) rebuild(ctx context.Context) {
	w.mu.Lock()
	full := w.full
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = map[string]bool{}
	w.full = false
	w.mu.Unlock()

	if !full && len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	var (
		report *build.Report
		err    error
	)
	if full {
		slog.Info("Change detected; rebuilding all documents")
		report, err = w.Builder.Build(ctx)
	} else {
		slog.Info("Change detected; rebuilding", slog.Int("paths", len(paths)))
		report, err = w.Builder.BuildPaths(ctx, paths)
	}
	if err != nil {
		slog.Warn("Rebuild failed", logfields.Error(err))
	}
	if w.OnBuild != nil {
		w.OnBuild(report, err)
	}
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

func addDirsRecursive(fw *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.Add(p); err != nil {
			slog.Warn("Watch add failed", logfields.Path(p), logfields.Error(err))
		}
		return nil
	})
}

// shouldIgnore reports editor droppings and hidden files.
func shouldIgnore(p string) bool {
	base := filepath.Base(p)
	switch {
	case strings.HasPrefix(base, "."),
		strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"),
		base == "Thumbs.db":
		return true
	}
	return false
}
