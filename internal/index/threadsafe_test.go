package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThreadSafeMatchesPlain(t *testing.T) {
	plain := New()
	safe := NewThreadSafe()
	sampleIndex(plain)
	sampleIndex(safe)

	assert.Equal(t, plain.Snapshot(), safe.Snapshot())
	assert.Equal(t, plain.ExactSearch([]string{"program"}), safe.ExactSearch([]string{"program"}))
	assert.Equal(t, plain.PartialSearch([]string{"pro"}), safe.Search([]string{"pro"}, true))
	assert.Equal(t, plain.Words(), safe.Words())
	assert.Equal(t, plain.String(), safe.String())
}

func TestThreadSafeConcurrentMergesAreDeterministic(t *testing.T) {
	const docs = 40
	build := func(d int) *InvertedIndex {
		local := New()
		for p := 1; p <= 25; p++ {
			local.Add(fmt.Sprintf("w%d", (d*7+p)%60), fmt.Sprintf("doc%02d", d), p)
		}
		return local
	}

	serial := New()
	for d := 0; d < docs; d++ {
		serial.AddAll(build(d))
	}

	safe := NewThreadSafe()
	var wg sync.WaitGroup
	for d := 0; d < docs; d++ {
		wg.Add(1)
		go func(d int) {
			defer wg.Done()
			safe.AddAll(build(d))
			// readers interleave with writers
			safe.PartialSearch([]string{"w1"})
			safe.NumWords()
		}(d)
	}
	wg.Wait()

	assert.Equal(t, serial.Snapshot(), safe.Snapshot())
	assert.Equal(t, serial.Counts(), safe.Counts())
	assert.Equal(t, serial.PartialSearch([]string{"w"}), safe.PartialSearch([]string{"w"}))
	assert.Equal(t, docs, safe.NumCounts())
}

func TestThreadSafeConcurrentPartialSearchesAfterWrites(t *testing.T) {
	safe := NewThreadSafe()
	for i := 0; i < 500; i++ {
		safe.Add(fmt.Sprintf("term%d", i), "loc", i+1)
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := safe.PartialSearch([]string{"term1"})
			assert.Len(t, res, 1)
			assert.Equal(t, 111, res[0].Count)
		}()
	}
	wg.Wait()
}
