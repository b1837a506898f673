// Package query evaluates query lines against an index and caches the
// ranked results under a canonical key: the sorted, deduplicated stems of
// the line joined by single spaces. Lines with no stems are ignored.
//
// Evaluator runs on the calling goroutine. ConcurrentEvaluator runs one
// work-queue task per line and guarantees at most one search per key even
// when the same line is evaluated concurrently.
package query

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/events"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/stemmer"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/metrics"
)

// Provider is the read side shared by both evaluators.
type Provider interface {
	// Queries lists every stored key in ascending order.
	Queries() []string
	// ResultsFor returns a copy of the results stored under key, or nil.
	ResultsFor(key string) []index.SearchResult
}

type Options struct {
	StemCacheSize int
	Metrics       *metrics.Metrics
	Events        events.Publisher
}

func (o Options) withDefaults() Options {
	if o.Metrics == nil {
		o.Metrics = metrics.Discard()
	}
	o.Events = events.OrNop(o.Events)
	return o
}

// Key joins stems into the canonical cache key. stems may be unsorted and
// contain duplicates.
func Key(stems []string) string {
	if len(stems) == 0 {
		return ""
	}
	sorted := append([]string(nil), stems...)
	sort.Strings(sorted)
	unique := sorted[:1]
	for _, s := range sorted[1:] {
		if s != unique[len(unique)-1] {
			unique = append(unique, s)
		}
	}
	return strings.Join(unique, " ")
}

// Canonical stems line and returns its key with the unique sorted stems.
// Both are empty when line has no stems.
func Canonical(st *stemmer.Stemmer, line string) (string, []string) {
	stems := st.UniqueStems(line)
	return strings.Join(stems, " "), stems
}

// Results returns the stored results for line, or nil.
func Results(p Provider, st *stemmer.Stemmer, line string) []index.SearchResult {
	key, _ := Canonical(st, line)
	if key == "" {
		return nil
	}
	return p.ResultsFor(key)
}

// HasQuery reports whether line's key has been stored.
func HasQuery(p Provider, st *stemmer.Stemmer, line string) bool {
	key, _ := Canonical(st, line)
	if key == "" {
		return false
	}
	keys := p.Queries()
	i := sort.SearchStrings(keys, key)
	return i < len(keys) && keys[i] == key
}

// HasResult reports whether the results for line include location.
func HasResult(p Provider, st *stemmer.Stemmer, line, location string) bool {
	for _, r := range Results(p, st, line) {
		if r.Location == location {
			return true
		}
	}
	return false
}

func NumQueries(p Provider) int {
	return len(p.Queries())
}

// Snapshot copies every key and its results.
func Snapshot(p Provider) map[string][]index.SearchResult {
	keys := p.Queries()
	snap := make(map[string][]index.SearchResult, len(keys))
	for _, key := range keys {
		results := p.ResultsFor(key)
		if results == nil {
			results = []index.SearchResult{}
		}
		snap[key] = results
	}
	return snap
}

// Merge appends to existing every result of incoming whose location is not
// already present.
func Merge(existing, incoming []index.SearchResult) []index.SearchResult {
	seen := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		seen[r.Location] = struct{}{}
	}
	for _, r := range incoming {
		if _, ok := seen[r.Location]; ok {
			continue
		}
		seen[r.Location] = struct{}{}
		existing = append(existing, r)
	}
	return existing
}

// readLines calls fn with every line of the file at path.
func readLines(path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w: %w", path, apperrors.ErrUnreadable, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if ferr := fn(line); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w: %w", path, apperrors.ErrUnreadable, err)
		}
	}
}

func searchMode(partial bool) string {
	if partial {
		return "partial"
	}
	return "exact"
}
