package rwlock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadersShareTheLock(t *testing.T) {
	l := New()
	const readers = 5

	var entered sync.WaitGroup
	entered.Add(readers)
	release := make(chan struct{})
	var done sync.WaitGroup
	done.Add(readers)

	for i := 0; i < readers; i++ {
		go func() {
			defer done.Done()
			l.RLock()
			defer l.RUnlock()
			entered.Done()
			<-release
		}()
	}

	waitOrFail(t, &entered, "readers did not enter concurrently")
	assert.Equal(t, readers, l.Readers())
	close(release)
	done.Wait()
	assert.Equal(t, 0, l.Readers())
}

func TestWriterExcludesReaders(t *testing.T) {
	l := New()
	l.Lock()

	var acquired atomic.Bool
	go func() {
		l.RLock()
		acquired.Store(true)
		l.RUnlock()
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, acquired.Load(), "reader acquired lock held by writer")
	l.Unlock()
	require.Eventually(t, acquired.Load, time.Second, time.Millisecond)
}

func TestWaitingWriterBlocksNewReaders(t *testing.T) {
	l := New()
	l.RLock()

	var writerDone atomic.Bool
	go func() {
		l.Lock()
		writerDone.Store(true)
		l.Unlock()
	}()

	// give the writer time to queue
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.waitingWriters == 1
	}, time.Second, time.Millisecond)

	var lateReader atomic.Bool
	go func() {
		l.RLock()
		lateReader.Store(true)
		l.RUnlock()
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, lateReader.Load(), "new reader overtook a waiting writer")
	assert.False(t, writerDone.Load())

	l.RUnlock()
	require.Eventually(t, writerDone.Load, time.Second, time.Millisecond)
	require.Eventually(t, lateReader.Load, time.Second, time.Millisecond)
}

func TestWritersAreMutuallyExclusive(t *testing.T) {
	l := New()
	var inside int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Lock()
			defer l.Unlock()
			assert.Equal(t, int32(1), atomic.AddInt32(&inside, 1))
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
}

func TestUnlockWithoutHoldPanics(t *testing.T) {
	assert.Panics(t, func() { New().Unlock() })
	assert.Panics(t, func() { New().RUnlock() })
}

func TestRLocker(t *testing.T) {
	l := New()
	rl := l.RLocker()
	rl.Lock()
	assert.Equal(t, 1, l.Readers())
	rl.Unlock()
	assert.Equal(t, 0, l.Readers())
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup, msg string) {
	t.Helper()
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal(msg)
	}
}
