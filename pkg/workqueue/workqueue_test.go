package workqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/wordindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/metrics"
)

func TestIndependentTasks(t *testing.T) {
	q := New(3, nil)
	defer q.Shutdown()

	var counter atomic.Int64
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Submit(func() error {
			counter.Add(1)
			return nil
		}))
	}
	require.NoError(t, q.AwaitIdle(context.Background()))
	assert.Equal(t, int64(10), counter.Load())
	assert.Equal(t, 0, q.Pending())
}

func TestAwaitIdleWaitsForTransitiveTasks(t *testing.T) {
	q := New(4, nil)
	defer q.Shutdown()

	const fanout = 25
	var counter atomic.Int64
	var spawn func(depth int) Task
	spawn = func(depth int) Task {
		return func() error {
			// the slow parent makes a queue-empty check race with its children
			time.Sleep(time.Millisecond)
			counter.Add(1)
			if depth == 0 {
				for i := 0; i < fanout; i++ {
					if err := q.Submit(spawn(depth + 1)); err != nil {
						return err
					}
				}
			}
			return nil
		}
	}

	require.NoError(t, q.Submit(spawn(0)))
	require.NoError(t, q.AwaitIdle(context.Background()))
	assert.Equal(t, int64(fanout+1), counter.Load())
}

func TestAwaitIdleOnEmptyQueue(t *testing.T) {
	q := New(1, nil)
	defer q.Shutdown()
	require.NoError(t, q.AwaitIdle(context.Background()))
}

func TestAwaitIdleCanBeReused(t *testing.T) {
	q := New(2, nil)
	defer q.Shutdown()

	var counter atomic.Int64
	for round := 1; round <= 3; round++ {
		for i := 0; i < 5; i++ {
			require.NoError(t, q.Submit(func() error {
				counter.Add(1)
				return nil
			}))
		}
		require.NoError(t, q.AwaitIdle(context.Background()))
		assert.Equal(t, int64(round*5), counter.Load())
	}
}

func TestAwaitIdleInterrupted(t *testing.T) {
	q := New(1, nil)
	release := make(chan struct{})
	require.NoError(t, q.Submit(func() error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.AwaitIdle(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInterrupted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	q.Shutdown()
	assert.Equal(t, 0, q.Pending())
}

func TestFailingAndPanickingTasksStillComplete(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	q := New(2, m)
	defer q.Shutdown()

	require.NoError(t, q.Submit(func() error { return errors.New("bad document") }))
	require.NoError(t, q.Submit(func() error { panic("boom") }))
	require.NoError(t, q.Submit(func() error { return nil }))
	require.NoError(t, q.AwaitIdle(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksCompletedTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksCompletedTotal.WithLabelValues("panic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksCompletedTotal.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TasksSubmittedTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TasksPending))
}

func TestSubmitAfterShutdown(t *testing.T) {
	q := New(2, nil)
	q.Shutdown()
	q.Shutdown()
	err := q.Submit(func() error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrShutdown)
}

func TestShutdownDrainsQueuedTasks(t *testing.T) {
	q := New(1, nil)
	var counter atomic.Int64
	gate := make(chan struct{})
	require.NoError(t, q.Submit(func() error {
		<-gate
		counter.Add(1)
		return nil
	}))
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Submit(func() error {
			counter.Add(1)
			return nil
		}))
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(gate)
	}()
	q.Shutdown()
	assert.Equal(t, int64(5), counter.Load())
	require.NoError(t, q.AwaitIdle(context.Background()))
}

func TestChildSubmitAfterShutdownIsRejected(t *testing.T) {
	q := New(1, nil)
	started := make(chan struct{})
	proceed := make(chan struct{})
	var childErr atomic.Value
	require.NoError(t, q.Submit(func() error {
		close(started)
		<-proceed
		err := q.Submit(func() error { return nil })
		childErr.Store(err)
		return err
	}))
	<-started
	go func() {
		// Shutdown blocks joining the worker, so release the task once the
		// shutdown flag is visible.
		assert.Eventually(t, func() bool {
			q.mu.Lock()
			defer q.mu.Unlock()
			return q.shutdown
		}, time.Second, time.Millisecond)
		close(proceed)
	}()
	q.Shutdown()
	assert.ErrorIs(t, childErr.Load().(error), apperrors.ErrShutdown)
	assert.Equal(t, 0, q.Pending())
}

func TestDefaultWorkers(t *testing.T) {
	q := New(0, nil)
	defer q.Shutdown()
	assert.Equal(t, DefaultWorkers, q.Workers())
}

func BenchmarkSubmitAwait(b *testing.B) {
	q := New(8, nil)
	defer q.Shutdown()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.Submit(func() error { return nil })
	}
	_ = q.AwaitIdle(context.Background())
}
