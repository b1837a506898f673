package index

import (
	"sort"
	"strings"
)

// Search runs a partial or exact search over queries, a set of stems.
func (idx *InvertedIndex) Search(queries []string, partial bool) []SearchResult {
	if partial {
		return idx.PartialSearch(queries)
	}
	return idx.ExactSearch(queries)
}

// ExactSearch ranks every location containing at least one of queries.
func (idx *InvertedIndex) ExactSearch(queries []string) []SearchResult {
	acc := newAccumulator(idx)
	for _, q := range queries {
		if _, ok := idx.words[q]; ok {
			acc.addWord(q)
		}
	}
	return acc.results()
}

// PartialSearch ranks every location containing a word that starts with one
// of queries. Only the contiguous range of the sorted vocabulary sharing the
// prefix is scanned. A word matched by several queries counts once.
func (idx *InvertedIndex) PartialSearch(queries []string) []SearchResult {
	words := idx.sortedWords()
	acc := newAccumulator(idx)
	for _, q := range queries {
		for i := sort.SearchStrings(words, q); i < len(words) && strings.HasPrefix(words[i], q); i++ {
			acc.addWord(words[i])
		}
	}
	return acc.results()
}

// accumulator is the per-call lookup table keyed by location.
type accumulator struct {
	idx    *InvertedIndex
	seen   map[string]struct{}
	lookup map[string]int
	hits   []SearchResult
}

func newAccumulator(idx *InvertedIndex) *accumulator {
	return &accumulator{
		idx:    idx,
		seen:   make(map[string]struct{}),
		lookup: make(map[string]int),
	}
}

func (a *accumulator) addWord(word string) {
	if _, dup := a.seen[word]; dup {
		return
	}
	a.seen[word] = struct{}{}
	for loc, positions := range a.idx.words[word] {
		i, ok := a.lookup[loc]
		if !ok {
			i = len(a.hits)
			a.lookup[loc] = i
			a.hits = append(a.hits, SearchResult{Location: loc})
		}
		a.hits[i].Count += len(positions)
	}
}

func (a *accumulator) results() []SearchResult {
	for i := range a.hits {
		if total := a.idx.counts[a.hits[i].Location]; total > 0 {
			a.hits[i].Score = float64(a.hits[i].Count) / float64(total)
		}
	}
	SortResults(a.hits)
	if a.hits == nil {
		return []SearchResult{}
	}
	return a.hits
}
