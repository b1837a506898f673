package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/events"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/stemmer"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/metrics"
)

// Evaluator answers query lines on the calling goroutine. It is not safe
// for concurrent use.
type Evaluator struct {
	searcher index.Searcher
	stemmer  *stemmer.Stemmer
	results  map[string][]index.SearchResult
	metrics  *metrics.Metrics
	events   events.Publisher
	logger   *slog.Logger
}

func NewEvaluator(s index.Searcher, opts Options) *Evaluator {
	opts = opts.withDefaults()
	return &Evaluator{
		searcher: s,
		stemmer:  stemmer.New(opts.StemCacheSize),
		results:  make(map[string][]index.SearchResult),
		metrics:  opts.Metrics,
		events:   opts.Events,
		logger:   logger.WithComponent("query"),
	}
}

// Evaluate searches for line unless its key has already been answered.
func (e *Evaluator) Evaluate(ctx context.Context, line string, partial bool) {
	key, stems := Canonical(e.stemmer, line)
	if key == "" {
		e.metrics.QueriesTotal.WithLabelValues("empty").Inc()
		return
	}
	if _, ok := e.results[key]; ok {
		e.metrics.QueriesTotal.WithLabelValues("duplicate").Inc()
		return
	}
	e.results[key] = search(ctx, e.searcher, key, stems, partial, e.metrics, e.events)
}

// EvaluateFile evaluates every line of the file at path in order.
func (e *Evaluator) EvaluateFile(ctx context.Context, path string, partial bool) error {
	e.logger.Info("evaluating queries", "path", path, "partial", partial)
	return readLines(path, func(line string) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrInterrupted, err)
		}
		e.Evaluate(ctx, line, partial)
		return nil
	})
}

// AddAll merges every key of other into e. Results whose location is already
// stored under the same key are skipped.
func (e *Evaluator) AddAll(other Provider) {
	for key, incoming := range Snapshot(other) {
		e.results[key] = Merge(e.results[key], incoming)
	}
}

func (e *Evaluator) Queries() []string {
	keys := make([]string, 0, len(e.results))
	for key := range e.results {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (e *Evaluator) ResultsFor(key string) []index.SearchResult {
	results, ok := e.results[key]
	if !ok {
		return nil
	}
	return append([]index.SearchResult{}, results...)
}

// Stemmer returns the stemmer used to canonicalize lines.
func (e *Evaluator) Stemmer() *stemmer.Stemmer {
	return e.stemmer
}

// search runs one ranked search and records its outcome.
func search(ctx context.Context, s index.Searcher, key string, stems []string, partial bool, m *metrics.Metrics, pub events.Publisher) []index.SearchResult {
	mode := searchMode(partial)
	start := time.Now()
	results := s.Search(stems, partial)
	m.SearchLatency.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	m.QueriesTotal.WithLabelValues("searched").Inc()

	pub.Publish(ctx, events.Event{Type: events.QueryEvaluated, Query: key, Results: len(results)})
	logger.FromContext(ctx).Debug("query evaluated",
		"component", "query",
		"query", key,
		"mode", mode,
		"results", len(results),
	)
	return results
}
