// Package crawler indexes web pages starting from a seed location. Each
// page is fetched once by its own work-queue task, which schedules the
// unvisited links it finds and then merges the page's words into the shared
// index.
package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/events"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/stemmer"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/workqueue"
)

// DefaultMaxRedirects is the redirect budget used when Options leaves it
// unset.
const DefaultMaxRedirects = 3

// Fetcher retrieves the HTML content of a location.
type Fetcher interface {
	Fetch(ctx context.Context, location string, maxRedirects int) (string, error)
}

// PageParser turns fetched HTML into canonical links and plain text.
type PageParser interface {
	Normalize(location string) (string, error)
	ExtractLinks(location, content string) []string
	Text(content string) string
}

type Options struct {
	MaxRedirects  int
	StemCacheSize int
	Metrics       *metrics.Metrics
	Events        events.Publisher
}

type Crawler struct {
	index        index.Writer
	queue        *workqueue.Queue
	fetcher      Fetcher
	parser       PageParser
	maxRedirects int
	stemCache    int
	metrics      *metrics.Metrics
	events       events.Publisher
	logger       *slog.Logger
}

func New(idx index.Writer, q *workqueue.Queue, f Fetcher, p PageParser, opts Options) *Crawler {
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}
	return &Crawler{
		index:        idx,
		queue:        q,
		fetcher:      f,
		parser:       p,
		maxRedirects: opts.MaxRedirects,
		stemCache:    opts.StemCacheSize,
		metrics:      opts.Metrics,
		events:       events.OrNop(opts.Events),
		logger:       logger.WithComponent("crawler"),
	}
}

// Crawl indexes up to limit pages reachable from seed and blocks until every
// scheduled page is done. A seed that cannot be normalized fails with
// ErrMalformedSeed before anything is scheduled. Failures of individual
// pages are logged and skipped.
func (c *Crawler) Crawl(ctx context.Context, seed string, limit int) (*VisitedSet, error) {
	start, err := c.parser.Normalize(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrMalformedSeed, err)
	}

	visited := NewVisitedSet(limit)
	visited.TryVisit(start)
	if err := c.queue.Submit(c.follow(ctx, start, visited)); err != nil {
		return visited, err
	}
	c.logger.Info("crawl started", "seed", start, "limit", visited.Limit())

	if err := c.queue.AwaitIdle(ctx); err != nil {
		return visited, err
	}
	c.updateGauges()
	c.logger.Info("crawl finished", "seed", start, "visited", visited.Len())
	return visited, nil
}

// CrawlPage fetches and indexes seed alone on the calling goroutine. Unlike
// Crawl, a fetch failure is returned to the caller.
func (c *Crawler) CrawlPage(ctx context.Context, seed string) error {
	location, err := c.parser.Normalize(seed)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrMalformedSeed, err)
	}
	content, err := c.fetcher.Fetch(ctx, location, c.maxRedirects)
	if err != nil {
		c.recordFailure(ctx, location, err)
		return err
	}
	c.indexPage(ctx, location, content)
	c.updateGauges()
	return nil
}

// follow returns the task for one visited location. Locations reach it
// already normalized.
func (c *Crawler) follow(ctx context.Context, location string, visited *VisitedSet) workqueue.Task {
	return func() error {
		content, err := c.fetcher.Fetch(ctx, location, c.maxRedirects)
		if err != nil {
			c.recordFailure(ctx, location, err)
			return nil
		}

		for _, link := range c.parser.ExtractLinks(location, content) {
			if !visited.TryVisit(link) {
				continue
			}
			if err := c.queue.Submit(c.follow(ctx, link, visited)); err != nil {
				c.logger.Warn("link not scheduled", "location", link, "error", err)
				break
			}
		}

		c.indexPage(ctx, location, content)
		return nil
	}
}

// indexPage stems the text of content into a private index with positions
// from 1 and merges it into the shared index in one call.
func (c *Crawler) indexPage(ctx context.Context, location, content string) {
	st := stemmer.New(c.stemCache)
	local := index.New()
	position := 1
	st.AddStems(c.parser.Text(content), func(stem string) {
		local.Add(stem, location, position)
		position++
	})
	c.index.AddAll(local)

	c.metrics.PagesCrawledTotal.WithLabelValues("indexed").Inc()
	c.events.Publish(ctx, events.Event{Type: events.PageIndexed, Location: location, Words: position - 1})
	c.logger.Debug("page indexed", "location", location, "words", position-1)
}

func (c *Crawler) recordFailure(ctx context.Context, location string, err error) {
	logger.FromContext(ctx).Warn("page not indexed", "component", "crawler", "location", location, "error", err)
	c.metrics.PagesCrawledTotal.WithLabelValues("failed").Inc()
	c.events.Publish(ctx, events.Event{Type: events.PageFailed, Location: location, Error: err.Error()})
}

func (c *Crawler) updateGauges() {
	if v, ok := c.index.(index.Viewer); ok {
		c.metrics.IndexWords.Set(float64(v.NumWords()))
		c.metrics.IndexLocations.Set(float64(v.NumCounts()))
	}
}
