// Package index implements the word-location inverted index: for every stem,
// the locations it occurs in and the ordered positions within each location,
// plus a per-location word count used to score search results.
//
// InvertedIndex is not safe for concurrent use. ThreadSafeIndex wraps one
// behind a readers-writer lock and exposes the same behavior.
package index

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Writer adds words to an index.
type Writer interface {
	Add(word, location string, position int)
	AddAll(other *InvertedIndex)
}

// Searcher answers ranked queries.
type Searcher interface {
	Search(queries []string, partial bool) []SearchResult
	ExactSearch(queries []string) []SearchResult
	PartialSearch(queries []string) []SearchResult
}

// Viewer exposes read-only copies of index contents.
type Viewer interface {
	Words() []string
	Locations(word string) []string
	Positions(word, location string) []int
	Counts() map[string]int
	CountedLocations() []string
	Snapshot() Snapshot
	HasWord(word string) bool
	HasLocation(word, location string) bool
	HasPosition(word, location string, position int) bool
	HasCount(location string) bool
	WordCount(location string) int
	NumWords() int
	NumCounts() int
	NumLocations(word string) int
	NumPositions(word, location string) int
}

// Index is the full capability set shared by both index flavors.
type Index interface {
	Writer
	Searcher
	Viewer
}

// Snapshot is a deep copy of the index suitable for serialization.
type Snapshot map[string]map[string][]int

var (
	_ Index = (*InvertedIndex)(nil)
	_ Index = (*ThreadSafeIndex)(nil)
)

type InvertedIndex struct {
	words  map[string]map[string][]int
	counts map[string]int

	// order caches the sorted vocabulary. Words added since the last sort sit
	// in unsorted until a partial search or Words needs the full order.
	orderMu  sync.Mutex
	order    []string
	unsorted []string
}

func New() *InvertedIndex {
	return &InvertedIndex{
		words:  make(map[string]map[string][]int),
		counts: make(map[string]int),
	}
}

// Add records word at position in location. Adding the same triple twice is
// a no-op. Positions below 1 are ignored.
func (idx *InvertedIndex) Add(word, location string, position int) {
	if position < 1 {
		return
	}
	locs, ok := idx.words[word]
	if !ok {
		locs = make(map[string][]int)
		idx.words[word] = locs
		idx.unsorted = append(idx.unsorted, word)
	}
	locs[location] = insertPosition(locs[location], position)
	if idx.counts[location] < position {
		idx.counts[location] = position
	}
}

// AddAll merges other into idx: positions are unioned per word and location
// and counts take the larger value. other's storage is copied, never shared.
func (idx *InvertedIndex) AddAll(other *InvertedIndex) {
	if other == nil || other == idx {
		return
	}
	for word, otherLocs := range other.words {
		locs, ok := idx.words[word]
		if !ok {
			locs = make(map[string][]int, len(otherLocs))
			idx.words[word] = locs
			idx.unsorted = append(idx.unsorted, word)
		}
		for loc, positions := range otherLocs {
			locs[loc] = mergePositions(locs[loc], positions)
		}
	}
	for loc, count := range other.counts {
		if idx.counts[loc] < count {
			idx.counts[loc] = count
		}
	}
}

// sortedWords returns the vocabulary in ascending order. The returned slice
// must not be modified and is only valid until the next write.
func (idx *InvertedIndex) sortedWords() []string {
	idx.orderMu.Lock()
	defer idx.orderMu.Unlock()
	if len(idx.unsorted) == 0 {
		return idx.order
	}
	sort.Strings(idx.unsorted)
	merged := make([]string, 0, len(idx.order)+len(idx.unsorted))
	i, j := 0, 0
	for i < len(idx.order) && j < len(idx.unsorted) {
		if idx.order[i] < idx.unsorted[j] {
			merged = append(merged, idx.order[i])
			i++
		} else {
			merged = append(merged, idx.unsorted[j])
			j++
		}
	}
	merged = append(merged, idx.order[i:]...)
	merged = append(merged, idx.unsorted[j:]...)
	idx.order = merged
	idx.unsorted = nil
	return idx.order
}

func (idx *InvertedIndex) Words() []string {
	return append([]string(nil), idx.sortedWords()...)
}

func (idx *InvertedIndex) Locations(word string) []string {
	return sortedKeys(idx.words[word])
}

func (idx *InvertedIndex) Positions(word, location string) []int {
	return append([]int(nil), idx.words[word][location]...)
}

func (idx *InvertedIndex) Counts() map[string]int {
	counts := make(map[string]int, len(idx.counts))
	for loc, n := range idx.counts {
		counts[loc] = n
	}
	return counts
}

// CountedLocations lists every location that has a word count, sorted.
func (idx *InvertedIndex) CountedLocations() []string {
	return sortedKeys(idx.counts)
}

func (idx *InvertedIndex) Snapshot() Snapshot {
	snap := make(Snapshot, len(idx.words))
	for word, locs := range idx.words {
		copied := make(map[string][]int, len(locs))
		for loc, positions := range locs {
			copied[loc] = append([]int(nil), positions...)
		}
		snap[word] = copied
	}
	return snap
}

func (idx *InvertedIndex) HasWord(word string) bool {
	_, ok := idx.words[word]
	return ok
}

func (idx *InvertedIndex) HasLocation(word, location string) bool {
	_, ok := idx.words[word][location]
	return ok
}

func (idx *InvertedIndex) HasPosition(word, location string, position int) bool {
	positions := idx.words[word][location]
	i := sort.SearchInts(positions, position)
	return i < len(positions) && positions[i] == position
}

func (idx *InvertedIndex) HasCount(location string) bool {
	_, ok := idx.counts[location]
	return ok
}

// WordCount returns the word count of location, or 0 if it has none.
func (idx *InvertedIndex) WordCount(location string) int {
	return idx.counts[location]
}

func (idx *InvertedIndex) NumWords() int {
	return len(idx.words)
}

func (idx *InvertedIndex) NumCounts() int {
	return len(idx.counts)
}

func (idx *InvertedIndex) NumLocations(word string) int {
	return len(idx.words[word])
}

func (idx *InvertedIndex) NumPositions(word, location string) int {
	return len(idx.words[word][location])
}

func (idx *InvertedIndex) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "counts: %v\n", idx.counts)
	b.WriteString("index: {")
	for i, word := range idx.sortedWords() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: {", word)
		for j, loc := range sortedKeys(idx.words[word]) {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %v", loc, idx.words[word][loc])
		}
		b.WriteString("}")
	}
	b.WriteString("}")
	return b.String()
}

// insertPosition adds p to the sorted set positions. Builders emit positions
// in increasing order, so the append path is the common one.
func insertPosition(positions []int, p int) []int {
	n := len(positions)
	if n == 0 || positions[n-1] < p {
		return append(positions, p)
	}
	i := sort.SearchInts(positions, p)
	if positions[i] == p {
		return positions
	}
	positions = append(positions, 0)
	copy(positions[i+1:], positions[i:])
	positions[i] = p
	return positions
}

// mergePositions returns the sorted union of a and b in fresh storage when b
// contributes anything new.
func mergePositions(a, b []int) []int {
	if len(b) == 0 {
		return a
	}
	if len(a) == 0 {
		return append([]int(nil), b...)
	}
	merged := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			merged = append(merged, a[i])
			i++
		case a[i] > b[j]:
			merged = append(merged, b[j])
			j++
		default:
			merged = append(merged, a[i])
			i++
			j++
		}
	}
	merged = append(merged, a[i:]...)
	return append(merged, b[j:]...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
