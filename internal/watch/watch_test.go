package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docfold/internal/build"
)

type recordingBuilder struct {
	mu    sync.Mutex
	full  int
	paths [][]string
}

func (b *recordingBuilder) Build(context.Context) (*build.Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.full++
	return &build.Report{}, nil
}

func (b *recordingBuilder) BuildPaths(_ context.Context, paths []string) (*build.Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, paths)
	return &build.Report{}, nil
}

func (b *recordingBuilder) snapshot() (int, [][]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.full, append([][]string(nil), b.paths...)
}

func startWatcher(t *testing.T, dir string) (*recordingBuilder, chan struct{}) {
	t.Helper()
	b := &recordingBuilder{}
	built := make(chan struct{}, 16)
	w := &Watcher{
		Dir:      dir,
		Debounce: 50 * time.Millisecond,
		Builder:  b,
		OnBuild:  func(*build.Report, error) { built <- struct{}{} },
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errCh)
	})
	// Give the watcher time to register its directories.
	time.Sleep(100 * time.Millisecond)
	return b, built
}

func waitBuild(t *testing.T, built <-chan struct{}) {
	t.Helper()
	select {
	case <-built:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rebuild")
	}
}

func TestWatcherBatchesChangedSources(t *testing.T) {
	dir := t.TempDir()
	b, built := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("# A\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.html"), []byte("<p>b</p>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".a.md.swp"), []byte("x"), 0o600))
	waitBuild(t, built)

	require.Eventually(t, func() bool {
		full, paths := b.snapshot()
		seen := map[string]bool{}
		for _, batch := range paths {
			for _, p := range batch {
				seen[p] = true
			}
		}
		return full == 0 && len(seen) == 2 && seen["a.md"] && seen["b.html"]
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcherNewDirectoryTriggersFullBuild(t *testing.T) {
	dir := t.TempDir()
	b, built := startWatcher(t, dir)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "guides"), 0o750))
	waitBuild(t, built)
	full, _ := b.snapshot()
	assert.Equal(t, 1, full)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "guides", "setup.md"), []byte("# Setup\n"), 0o600))
	waitBuild(t, built)
	_, paths := b.snapshot()
	require.NotEmpty(t, paths)
	assert.Contains(t, paths[len(paths)-1], "guides/setup.md")
}

func TestWatcherRejectsMissingDir(t *testing.T) {
	w := &Watcher{Dir: filepath.Join(t.TempDir(), "missing"), Builder: &recordingBuilder{}}
	assert.Error(t, w.Run(context.Background()))
}

func TestShouldIgnore(t *testing.T) {
	for _, p := range []string{".hidden.md", "a.md~", "a.md.swp", "#a.md#", "Thumbs.db"} {
		assert.True(t, shouldIgnore(p), p)
	}
	assert.False(t, shouldIgnore("docs/a.md"))
}
