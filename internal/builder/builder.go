// Package builder indexes local text files. Build walks and indexes on the
// calling goroutine; BuildConcurrent walks on the caller and indexes each
// document in its own work-queue task.
package builder

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/events"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/stemmer"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/workqueue"
)

type Builder struct {
	stemCacheSize int
	metrics       *metrics.Metrics
	events        events.Publisher
	logger        *slog.Logger
}

// New returns a Builder. m and pub may be nil.
func New(stemCacheSize int, m *metrics.Metrics, pub events.Publisher) *Builder {
	if m == nil {
		m = metrics.Discard()
	}
	return &Builder{
		stemCacheSize: stemCacheSize,
		metrics:       m,
		events:        events.OrNop(pub),
		logger:        logger.WithComponent("builder"),
	}
}

// IsTextFile reports whether path ends in .txt or .text, ignoring case.
func IsTextFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".txt") || strings.HasSuffix(lower, ".text")
}

// Build indexes input into idx. A directory is walked recursively in
// lexical order and every text file in it is indexed; a regular file is
// indexed whatever its extension. The first unreadable file or directory
// aborts the build with an error wrapping ErrUnreadable.
func (b *Builder) Build(ctx context.Context, input string, idx index.Writer) error {
	st := stemmer.New(b.stemCacheSize)
	err := walk(input, func(path string) error {
		if err := b.indexFile(path, idx, st); err != nil {
			b.recordFailure(ctx, path, err)
			return err
		}
		b.recordSuccess(ctx, path)
		return nil
	})
	b.updateGauges(idx)
	return err
}

// BuildConcurrent submits one task per document to q and waits for all of
// them. Each task indexes its document into a private index and merges it
// into idx once. A failing document does not stop the others; every
// per-document error is returned together after the barrier.
func (b *Builder) BuildConcurrent(ctx context.Context, input string, idx index.Writer, q *workqueue.Queue) error {
	var (
		mu     sync.Mutex
		result *multierror.Error
	)
	walkErr := walk(input, func(path string) error {
		return q.Submit(func() error {
			local := index.New()
			if err := b.indexFile(path, local, stemmer.New(b.stemCacheSize)); err != nil {
				b.recordFailure(ctx, path, err)
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
				return err
			}
			idx.AddAll(local)
			b.recordSuccess(ctx, path)
			return nil
		})
	})

	// tasks already submitted must finish before the caller regains idx
	if err := q.AwaitIdle(ctx); err != nil {
		return err
	}
	b.updateGauges(idx)

	mu.Lock()
	defer mu.Unlock()
	if walkErr != nil {
		result = multierror.Append(result, walkErr)
	}
	return result.ErrorOrNil()
}

// IndexFile indexes one file into idx with positions starting at 1.
func (b *Builder) IndexFile(path string, idx index.Writer) error {
	return b.indexFile(path, idx, stemmer.New(b.stemCacheSize))
}

func (b *Builder) indexFile(path string, idx index.Writer, st *stemmer.Stemmer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w: %w", path, apperrors.ErrUnreadable, err)
	}
	defer f.Close()

	position := 1
	err = st.StemReader(f, func(stem string) {
		idx.Add(stem, path, position)
		position++
	})
	if err != nil {
		return fmt.Errorf("reading %s: %w: %w", path, apperrors.ErrUnreadable, err)
	}
	b.logger.Debug("file indexed", "path", path, "words", position-1)
	return nil
}

// walk calls fn for input itself when it is not a directory, and otherwise
// for every text file below it in lexical order. It stops at the first
// error from the file system or fn.
func walk(input string, fn func(path string) error) error {
	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("reading %s: %w: %w", input, apperrors.ErrUnreadable, err)
	}
	if !info.IsDir() {
		return fn(input)
	}
	return filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking %s: %w: %w", path, apperrors.ErrUnreadable, err)
		}
		if d.IsDir() || !IsTextFile(path) {
			return nil
		}
		return fn(path)
	})
}

func (b *Builder) recordSuccess(ctx context.Context, path string) {
	b.metrics.DocsIndexedTotal.WithLabelValues("indexed").Inc()
	b.events.Publish(ctx, events.Event{Type: events.DocumentIndexed, Location: path})
}

func (b *Builder) recordFailure(ctx context.Context, path string, err error) {
	logger.FromContext(ctx).Warn("document not indexed", "component", "builder", "path", path, "error", err)
	b.metrics.DocsIndexedTotal.WithLabelValues("failed").Inc()
	b.events.Publish(ctx, events.Event{Type: events.DocumentFailed, Location: path, Error: err.Error()})
}

func (b *Builder) updateGauges(idx index.Writer) {
	if v, ok := idx.(index.Viewer); ok {
		b.metrics.IndexWords.Set(float64(v.NumWords()))
		b.metrics.IndexLocations.Set(float64(v.NumCounts()))
	}
}
