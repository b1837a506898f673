package index

import (
	"sort"
	"strings"
)

// SearchResult is one ranked location for a query. Score is Count divided
// by the location's word count.
type SearchResult struct {
	Location string  `json:"where"`
	Count    int     `json:"count"`
	Score    float64 `json:"score"`
}

// Compare orders results by score descending, then count descending, then
// location ascending ignoring case. The raw location breaks remaining ties
// so the order is total.
func (r SearchResult) Compare(other SearchResult) int {
	switch {
	case r.Score > other.Score:
		return -1
	case r.Score < other.Score:
		return 1
	case r.Count > other.Count:
		return -1
	case r.Count < other.Count:
		return 1
	}
	if c := strings.Compare(strings.ToLower(r.Location), strings.ToLower(other.Location)); c != 0 {
		return c
	}
	return strings.Compare(r.Location, other.Location)
}

func SortResults(results []SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Compare(results[j]) < 0
	})
}
