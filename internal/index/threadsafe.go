package index

import (
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/rwlock"
)

// ThreadSafeIndex guards an InvertedIndex with a readers-writer lock. Writes
// take the write lock and every other method takes the read lock, so it can
// be shared by builder, crawler and query tasks.
type ThreadSafeIndex struct {
	lock  *rwlock.Lock
	index *InvertedIndex
}

func NewThreadSafe() *ThreadSafeIndex {
	return &ThreadSafeIndex{
		lock:  rwlock.New(),
		index: New(),
	}
}

func (t *ThreadSafeIndex) Add(word, location string, position int) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.index.Add(word, location, position)
}

// AddAll merges other under the write lock. other must not be shared with
// another goroutine while the merge runs.
func (t *ThreadSafeIndex) AddAll(other *InvertedIndex) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.index.AddAll(other)
}

func (t *ThreadSafeIndex) Search(queries []string, partial bool) []SearchResult {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.Search(queries, partial)
}

func (t *ThreadSafeIndex) ExactSearch(queries []string) []SearchResult {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.ExactSearch(queries)
}

func (t *ThreadSafeIndex) PartialSearch(queries []string) []SearchResult {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.PartialSearch(queries)
}

func (t *ThreadSafeIndex) Words() []string {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.Words()
}

func (t *ThreadSafeIndex) Locations(word string) []string {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.Locations(word)
}

func (t *ThreadSafeIndex) Positions(word, location string) []int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.Positions(word, location)
}

func (t *ThreadSafeIndex) Counts() map[string]int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.Counts()
}

func (t *ThreadSafeIndex) CountedLocations() []string {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.CountedLocations()
}

func (t *ThreadSafeIndex) Snapshot() Snapshot {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.Snapshot()
}

func (t *ThreadSafeIndex) HasWord(word string) bool {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.HasWord(word)
}

func (t *ThreadSafeIndex) HasLocation(word, location string) bool {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.HasLocation(word, location)
}

func (t *ThreadSafeIndex) HasPosition(word, location string, position int) bool {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.HasPosition(word, location, position)
}

func (t *ThreadSafeIndex) HasCount(location string) bool {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.HasCount(location)
}

func (t *ThreadSafeIndex) WordCount(location string) int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.WordCount(location)
}

func (t *ThreadSafeIndex) NumWords() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.NumWords()
}

func (t *ThreadSafeIndex) NumCounts() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.NumCounts()
}

func (t *ThreadSafeIndex) NumLocations(word string) int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.NumLocations(word)
}

func (t *ThreadSafeIndex) NumPositions(word, location string) int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.NumPositions(word, location)
}

func (t *ThreadSafeIndex) String() string {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.index.String()
}
