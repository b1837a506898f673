// Package workqueue runs tasks on a fixed pool of worker goroutines that pull
// from one unbounded FIFO queue. AwaitIdle is a fork-join barrier: it returns
// only once every submitted task, including tasks submitted by running
// tasks, has finished.
package workqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/wordindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/metrics"
)

// DefaultWorkers is used when New is given a non-positive worker count.
const DefaultWorkers = 5

// Task is a unit of work. A returned error is logged by the worker; it never
// stops the queue.
type Task func() error

type Queue struct {
	mu       sync.Mutex
	ready    *sync.Cond
	tasks    []Task
	pending  int
	idle     chan struct{}
	shutdown bool
	workers  int
	wg       sync.WaitGroup
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New starts workers goroutines. m may be nil.
func New(workers int, m *metrics.Metrics) *Queue {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if m == nil {
		m = metrics.Discard()
	}
	q := &Queue{
		idle:    closedChan(),
		workers: workers,
		metrics: m,
		logger:  slog.Default().With("component", "workqueue"),
	}
	q.ready = sync.NewCond(&q.mu)
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker(i)
	}
	q.logger.Debug("work queue started", "workers", workers)
	return q
}

// Submit enqueues task. The pending counter is raised before any worker can
// see the task, so a parent task that submits children is never observed as
// the last pending work.
func (q *Queue) Submit(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.shutdown {
		return apperrors.ErrShutdown
	}
	if q.pending == 0 {
		q.idle = make(chan struct{})
	}
	q.pending++
	q.tasks = append(q.tasks, task)
	q.metrics.TasksSubmittedTotal.Inc()
	q.metrics.TasksPending.Set(float64(q.pending))
	q.ready.Signal()
	return nil
}

// AwaitIdle blocks until the pending counter reaches zero. If ctx ends first
// the returned error wraps both ErrInterrupted and ctx.Err().
func (q *Queue) AwaitIdle(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", apperrors.ErrInterrupted, ctx.Err())
	}
}

// Shutdown stops accepting tasks, lets the workers drain what is already
// queued and waits for them to exit. It is safe to call more than once.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if q.shutdown {
		q.mu.Unlock()
		q.wg.Wait()
		return
	}
	q.shutdown = true
	q.ready.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Debug("work queue stopped")
}

// Pending returns the number of submitted tasks that have not finished.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

func (q *Queue) Workers() int {
	return q.workers
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.shutdown {
			q.ready.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			q.logger.Debug("worker exiting", "worker", id)
			return
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		q.run(id, task)
		q.finish()
	}
}

func (q *Queue) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", "worker", id, "panic", r)
			q.metrics.TasksCompletedTotal.WithLabelValues("panic").Inc()
		}
	}()
	if err := task(); err != nil {
		q.logger.Warn("task failed", "worker", id, "error", err)
		q.metrics.TasksCompletedTotal.WithLabelValues("error").Inc()
		return
	}
	q.metrics.TasksCompletedTotal.WithLabelValues("ok").Inc()
}

func (q *Queue) finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	q.metrics.TasksPending.Set(float64(q.pending))
	if q.pending == 0 {
		close(q.idle)
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
