package builder

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/events"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/workqueue"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int)
	for _, ev := range r.events {
		out[ev.Type]++
	}
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func corpus(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "Hello, world!\nRunning programs.")
	writeFile(t, filepath.Join(dir, "sub", "b.TEXT"), "hello hello")
	writeFile(t, filepath.Join(dir, "sub", "deeper", "c.txt"), "world")
	writeFile(t, filepath.Join(dir, "notes.md"), "ignored words")
	return dir
}

func TestIsTextFile(t *testing.T) {
	assert.True(t, IsTextFile("a.txt"))
	assert.True(t, IsTextFile("A.TeXt"))
	assert.False(t, IsTextFile("a.txt.bak"))
	assert.False(t, IsTextFile("readme.md"))
}

func TestBuildDirectory(t *testing.T) {
	dir := corpus(t)
	idx := index.New()
	rec := &recorder{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	require.NoError(t, New(0, m, rec).Build(context.Background(), dir, idx))

	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "sub", "b.TEXT")
	c := filepath.Join(dir, "sub", "deeper", "c.txt")
	assert.Equal(t, map[string]int{a: 4, b: 2, c: 1}, idx.Counts())
	assert.Equal(t, []int{1}, idx.Positions("hello", a))
	assert.Equal(t, []int{3}, idx.Positions("run", a))
	assert.Equal(t, []int{4}, idx.Positions("program", a))
	assert.Equal(t, []int{1, 2}, idx.Positions("hello", b))
	assert.False(t, idx.HasWord("ignor"))

	assert.Equal(t, 3, rec.types()[events.DocumentIndexed])
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DocsIndexedTotal.WithLabelValues("indexed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.IndexWords))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IndexLocations))
}

func TestBuildSingleFileIgnoresExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	writeFile(t, path, "one two three")
	idx := index.New()
	require.NoError(t, New(0, nil, nil).Build(context.Background(), path, idx))
	assert.Equal(t, 3, idx.WordCount(path))
}

func TestBuildMissingInput(t *testing.T) {
	err := New(0, nil, nil).Build(context.Background(), filepath.Join(t.TempDir(), "missing"), index.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnreadable)
}

func TestBuildAbortsOnFirstUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	require.NoError(t, os.Symlink(filepath.Join(dir, "nowhere"), filepath.Join(dir, "b.txt")))
	writeFile(t, filepath.Join(dir, "c.txt"), "gamma")

	idx := index.New()
	rec := &recorder{}
	err := New(0, nil, rec).Build(context.Background(), dir, idx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnreadable)
	assert.True(t, idx.HasCount(filepath.Join(dir, "a.txt")))
	assert.False(t, idx.HasCount(filepath.Join(dir, "c.txt")), "build stops at the first failure")
	assert.Equal(t, 1, rec.types()[events.DocumentFailed])
}

func TestBuildConcurrentMatchesSingleThreaded(t *testing.T) {
	dir := corpus(t)
	serial := index.New()
	require.NoError(t, New(0, nil, nil).Build(context.Background(), dir, serial))

	q := workqueue.New(3, nil)
	defer q.Shutdown()
	shared := index.NewThreadSafe()
	require.NoError(t, New(0, nil, nil).BuildConcurrent(context.Background(), dir, shared, q))

	assert.Equal(t, serial.Snapshot(), shared.Snapshot())
	assert.Equal(t, serial.Counts(), shared.Counts())
}

func TestBuildConcurrentCollectsPerDocumentErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	require.NoError(t, os.Symlink(filepath.Join(dir, "nowhere"), filepath.Join(dir, "b.txt")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "gone"), filepath.Join(dir, "c.txt")))
	writeFile(t, filepath.Join(dir, "d.txt"), "delta")

	q := workqueue.New(2, nil)
	defer q.Shutdown()
	shared := index.NewThreadSafe()
	err := New(0, nil, nil).BuildConcurrent(context.Background(), dir, shared, q)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnreadable)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.True(t, shared.HasCount(filepath.Join(dir, "a.txt")))
	assert.True(t, shared.HasCount(filepath.Join(dir, "d.txt")))
}

func TestBuildConcurrentAfterShutdown(t *testing.T) {
	dir := corpus(t)
	q := workqueue.New(1, nil)
	q.Shutdown()
	err := New(0, nil, nil).BuildConcurrent(context.Background(), dir, index.NewThreadSafe(), q)
	assert.ErrorIs(t, err, apperrors.ErrShutdown)
}
