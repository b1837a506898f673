package query

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/events"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/stemmer"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/rwlock"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/workqueue"
)

// entry is a cached answer. An entry that is not ready marks a search in
// flight and reads as empty.
type entry struct {
	results []index.SearchResult
	ready   bool
}

// ConcurrentEvaluator answers each query line in its own work-queue task.
// The searcher must be safe for concurrent use.
type ConcurrentEvaluator struct {
	searcher index.Searcher
	queue    *workqueue.Queue
	stemmer  *stemmer.Stemmer

	lock    *rwlock.Lock
	entries map[string]*entry

	metrics *metrics.Metrics
	events  events.Publisher
	logger  *slog.Logger
}

func NewConcurrentEvaluator(s index.Searcher, q *workqueue.Queue, opts Options) *ConcurrentEvaluator {
	opts = opts.withDefaults()
	return &ConcurrentEvaluator{
		searcher: s,
		queue:    q,
		stemmer:  stemmer.New(opts.StemCacheSize),
		lock:     rwlock.New(),
		entries:  make(map[string]*entry),
		metrics:  opts.Metrics,
		events:   opts.Events,
		logger:   logger.WithComponent("query"),
	}
}

// Evaluate schedules line for evaluation and returns without waiting. The
// only error is ErrShutdown from a closed queue.
func (e *ConcurrentEvaluator) Evaluate(ctx context.Context, line string, partial bool) error {
	return e.queue.Submit(func() error {
		e.evaluate(ctx, line, partial)
		return nil
	})
}

// evaluate claims the key with a placeholder so concurrent duplicates skip
// the search, which then runs without the cache lock held.
func (e *ConcurrentEvaluator) evaluate(ctx context.Context, line string, partial bool) {
	key, stems := Canonical(e.stemmer, line)
	if key == "" {
		e.metrics.QueriesTotal.WithLabelValues("empty").Inc()
		return
	}

	e.lock.Lock()
	if _, ok := e.entries[key]; ok {
		e.lock.Unlock()
		e.metrics.QueriesTotal.WithLabelValues("duplicate").Inc()
		return
	}
	e.entries[key] = &entry{}
	e.lock.Unlock()

	results := search(ctx, e.searcher, key, stems, partial, e.metrics, e.events)

	e.lock.Lock()
	defer e.lock.Unlock()
	ent := e.entries[key]
	// AddAll may have merged into the placeholder meanwhile.
	ent.results = Merge(results, ent.results)
	ent.ready = true
}

// EvaluateFile schedules every line of the file at path and waits for the
// queue to go idle. A read error is returned after the lines already
// scheduled have finished.
func (e *ConcurrentEvaluator) EvaluateFile(ctx context.Context, path string, partial bool) error {
	e.logger.Info("evaluating queries", "path", path, "partial", partial, "workers", e.queue.Workers())
	readErr := readLines(path, func(line string) error {
		return e.Evaluate(ctx, line, partial)
	})
	waitErr := e.queue.AwaitIdle(ctx)
	if readErr != nil {
		return readErr
	}
	return waitErr
}

// Wait blocks until every scheduled line has been answered.
func (e *ConcurrentEvaluator) Wait(ctx context.Context) error {
	return e.queue.AwaitIdle(ctx)
}

// AddAll merges every key of other into e, skipping results whose location
// is already stored under the same key.
// Results merged into a key whose search is still running become visible
// together with that search's results.
func (e *ConcurrentEvaluator) AddAll(other Provider) {
	snap := Snapshot(other)

	e.lock.Lock()
	defer e.lock.Unlock()
	for key, incoming := range snap {
		ent, ok := e.entries[key]
		if !ok {
			e.entries[key] = &entry{results: incoming, ready: true}
			continue
		}
		// a pending entry stays empty until its search writes back
		ent.results = Merge(ent.results, incoming)
	}
}

func (e *ConcurrentEvaluator) Queries() []string {
	e.lock.RLock()
	defer e.lock.RUnlock()
	keys := make([]string, 0, len(e.entries))
	for key := range e.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (e *ConcurrentEvaluator) ResultsFor(key string) []index.SearchResult {
	e.lock.RLock()
	defer e.lock.RUnlock()
	ent, ok := e.entries[key]
	if !ok {
		return nil
	}
	if !ent.ready {
		return []index.SearchResult{}
	}
	return append([]index.SearchResult{}, ent.results...)
}

func (e *ConcurrentEvaluator) Stemmer() *stemmer.Stemmer {
	return e.stemmer
}
