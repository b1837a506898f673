package crawler

import (
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/rwlock"
)

// VisitedSet records the locations a crawl has scheduled. It never holds
// more than its capacity and is shared by every task of one crawl.
type VisitedSet struct {
	lock  *rwlock.Lock
	seen  map[string]struct{}
	order []string
	limit int
}

// NewVisitedSet returns an empty set holding at most limit locations.
// Limits below 1 become 1.
func NewVisitedSet(limit int) *VisitedSet {
	if limit < 1 {
		limit = 1
	}
	return &VisitedSet{
		lock:  rwlock.New(),
		seen:  make(map[string]struct{}),
		limit: limit,
	}
}

// TryVisit marks location as visited if the set has room and does not
// already hold it, and reports whether it did. The check and the mark happen
// under one write lock so two tasks can never both claim a location.
func (v *VisitedSet) TryVisit(location string) bool {
	v.lock.Lock()
	defer v.lock.Unlock()
	if len(v.order) >= v.limit {
		return false
	}
	if _, ok := v.seen[location]; ok {
		return false
	}
	v.seen[location] = struct{}{}
	v.order = append(v.order, location)
	return true
}

func (v *VisitedSet) Contains(location string) bool {
	v.lock.RLock()
	defer v.lock.RUnlock()
	_, ok := v.seen[location]
	return ok
}

func (v *VisitedSet) Len() int {
	v.lock.RLock()
	defer v.lock.RUnlock()
	return len(v.order)
}

// Full reports whether no further location can be added.
func (v *VisitedSet) Full() bool {
	v.lock.RLock()
	defer v.lock.RUnlock()
	return len(v.order) >= v.limit
}

func (v *VisitedSet) Limit() int {
	return v.limit
}

// List returns the visited locations in the order they were claimed.
func (v *VisitedSet) List() []string {
	v.lock.RLock()
	defer v.lock.RUnlock()
	return append([]string(nil), v.order...)
}
