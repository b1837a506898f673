package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/logger"
)

// BatchWriter is the sink a Collector flushes to. *kafka.Producer
// implements it.
type BatchWriter interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector accumulates events and flushes them either when the buffer
// reaches batchSize or after flushInterval, whichever comes first.
type Collector struct {
	sink          BatchWriter
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	// kick asks the loop for an early flush; one pending request is enough.
	kick chan struct{}
	done chan struct{}
	now  func() time.Time
}

func NewCollector(sink BatchWriter, batchSize int, flushInterval time.Duration) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		sink:          sink,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "event-collector"),
		kick:          make(chan struct{}, 1),
		done:          make(chan struct{}),
		now:           time.Now,
	}
}

// Start launches the background flush loop, which runs until ctx is
// cancelled and then flushes once more. Every flush runs on this loop, so at
// most one batch is in flight.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-c.kick:
				c.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("event collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Publish buffers ev, stamping the time and the run id carried by ctx when
// the event has none. A full buffer asks the flush loop to flush early.
func (c *Collector) Publish(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = c.now()
	}
	if ev.RunID == "" {
		ev.RunID = logger.RunID(ctx)
	}
	key := ev.RunID
	if ev.Location != "" {
		key = ev.Location
	}

	c.mu.Lock()
	c.buffer = append(c.buffer, kafka.Event{Key: key, Value: ev})
	shouldFlush := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if shouldFlush {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
}

// Close waits for the flush loop started by Start to finish, including a
// flush still in progress.
func (c *Collector) Close() {
	<-c.done
}

func (c *Collector) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.sink.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("event flush failed",
			"batch_size", len(batch),
			"error", err,
		)
		// keep at most three batches of backlog
		c.mu.Lock()
		c.buffer = append(batch, c.buffer...)
		if limit := c.batchSize * 3; len(c.buffer) > limit {
			dropped := len(c.buffer) - limit
			c.buffer = c.buffer[:limit]
			c.logger.Warn("event buffer overflow, events dropped", "dropped", dropped)
		}
		c.mu.Unlock()
		return
	}

	c.logger.Debug("events flushed", "events", len(batch))
}
