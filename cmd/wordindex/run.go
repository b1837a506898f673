package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/builder"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/events"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/export"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/htmlfetch"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/query"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/query/rediscache"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/server"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/wordindex/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/tracing"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/workqueue"
)

// defaultThreads replaces a non-positive --threads value.
const defaultThreads = 5

type options struct {
	configPath string
	text       string
	html       string
	crawl      int
	query      string
	partial    bool
	threads    int
	server     int
	counts     string
	index      string
	results    string

	threadsSet bool
	serverSet  bool
	countsSet  bool
	indexSet   bool
	resultsSet bool
	// bare holds the optional-value flags given without a value.
	bare map[string]bool
}

// multiThreaded reports whether the run needs the concurrent engine.
func (o options) multiThreaded() bool {
	return o.threadsSet || o.html != "" || o.serverSet
}

// evaluator is the part of both query evaluators the driver uses.
type evaluator interface {
	query.Provider
	EvaluateFile(ctx context.Context, path string, partial bool) error
}

// outputPath returns the path to write: the configured default when the
// flag was given without a value, the flag's value otherwise.
func outputPath(flagValue string, bare bool, configured string) string {
	if bare || flagValue == "" {
		return configured
	}
	return flagValue
}

// run executes one indexing run. Every requested step is attempted even
// when an earlier one fails; the failures are returned together.
func run(ctx context.Context, opts options, stdout io.Writer) error {
	start := time.Now()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, nil)

	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.FromContext(ctx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		srv, err := metrics.Listen(cfg.Metrics.Port, reg)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Close(closeCtx)
		}()
	}

	pub, closeEvents := startEvents(ctx, cfg.Kafka)
	defer closeEvents()
	pub.Publish(ctx, events.Event{Type: events.RunStarted})

	ctx, root := tracing.Start(ctx, "run", runID)
	var result *multierror.Error
	step := func(name string, fn func(ctx context.Context) error) {
		stepCtx, span := tracing.Start(ctx, name, "")
		err := fn(stepCtx)
		span.End(err)
		if err != nil {
			log.Error("step failed", "step", name, "error", err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
		}
	}

	qopts := query.Options{StemCacheSize: cfg.Engine.StemCacheSize, Metrics: m, Events: pub}
	b := builder.New(cfg.Engine.StemCacheSize, m, pub)

	var (
		idx   index.Index
		eval  evaluator
		queue *workqueue.Queue
	)
	if opts.multiThreaded() {
		threads := cfg.Engine.Threads
		if opts.threadsSet {
			threads = opts.threads
		}
		if threads < 1 {
			threads = defaultThreads
		}
		ts := index.NewThreadSafe()
		queue = workqueue.New(threads, m)
		defer queue.Shutdown()
		idx = ts
		eval = query.NewConcurrentEvaluator(ts, queue, qopts)
		log.Info("multi-threaded run", "threads", threads)

		if opts.html != "" {
			c := crawler.New(ts, queue, htmlfetch.NewHTTPFetcher(cfg.Crawl, m), htmlfetch.NewParser(), crawler.Options{
				MaxRedirects:  cfg.Crawl.MaxRedirects,
				StemCacheSize: cfg.Engine.StemCacheSize,
				Metrics:       m,
				Events:        pub,
			})
			step("crawl", func(ctx context.Context) error {
				visited, err := c.Crawl(ctx, opts.html, opts.crawl)
				if visited != nil {
					tracing.FromContext(ctx).SetAttr("pages", visited.Len())
				}
				return err
			})
		}
	} else {
		plain := index.New()
		idx = plain
		eval = query.NewEvaluator(plain, qopts)
	}

	if opts.text != "" {
		step("build", func(ctx context.Context) error {
			if queue != nil {
				return b.BuildConcurrent(ctx, opts.text, idx, queue)
			}
			return b.Build(ctx, opts.text, idx)
		})
	}

	if opts.query != "" {
		step("query", func(ctx context.Context) error {
			return eval.EvaluateFile(ctx, opts.query, opts.partial)
		})
	}

	if queue != nil {
		queue.Shutdown()
	}

	if opts.countsSet {
		step("counts", func(context.Context) error {
			return export.WriteCounts(outputPath(opts.counts, opts.bare["counts"], cfg.Output.Counts), idx.Counts())
		})
	}
	if opts.indexSet {
		step("index", func(context.Context) error {
			return export.WriteIndex(outputPath(opts.index, opts.bare["index"], cfg.Output.Index), idx.Snapshot())
		})
	}
	if opts.resultsSet {
		step("results", func(context.Context) error {
			return export.WriteResults(outputPath(opts.results, opts.bare["results"], cfg.Output.Results), query.Snapshot(eval))
		})
	}
	if cfg.Postgres.Enabled {
		step("postgres", func(ctx context.Context) error {
			return exportToPostgres(ctx, cfg.Postgres, runID, idx.Counts(), query.Snapshot(eval))
		})
	}

	pub.Publish(ctx, events.Event{Type: events.RunFinished, Words: idx.NumWords()})
	root.SetAttr("words", idx.NumWords())
	root.SetAttr("locations", idx.NumCounts())
	root.SetAttr("queries", query.NumQueries(eval))
	root.End(result.ErrorOrNil())
	root.Log(log)
	fmt.Fprintf(stdout, "Elapsed: %f seconds\n", time.Since(start).Seconds())

	if opts.serverSet {
		srvCfg := cfg.Server
		if opts.server > 0 {
			srvCfg.Port = opts.server
		}
		step("server", func(ctx context.Context) error {
			return serve(ctx, srvCfg, cfg, idx, m, pub)
		})
	}

	return result.ErrorOrNil()
}

// startEvents returns the run's event publisher. Without Kafka it is a
// no-op; the returned close function drains the collector and the producer.
func startEvents(ctx context.Context, cfg config.KafkaConfig) (events.Publisher, func()) {
	if !cfg.Enabled {
		return events.Nop{}, func() {}
	}
	producer := kafka.NewProducer(cfg)
	collector := events.NewCollector(producer, cfg.BufferSize, 0)
	collectorCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	collector.Start(collectorCtx)
	return collector, func() {
		cancel()
		collector.Close()
		if err := producer.Close(); err != nil {
			slog.Warn("closing kafka producer", "error", err)
		}
	}
}

func exportToPostgres(ctx context.Context, cfg config.PostgresConfig, runID string, counts map[string]int, results map[string][]index.SearchResult) error {
	client, err := postgres.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.ExecAll(ctx, export.Schema...); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return export.NewPostgresExporter(client).Export(ctx, runID, counts, results)
}

// serve blocks serving searches over idx until ctx is cancelled.
func serve(ctx context.Context, srvCfg config.ServerConfig, cfg *config.Config, idx index.Index, m *metrics.Metrics, pub events.Publisher) error {
	checker := health.NewChecker()
	checker.RegisterOptional("index", func(context.Context) error {
		if idx.NumCounts() == 0 {
			return errors.New("index is empty")
		}
		return nil
	})

	var cache *rediscache.Cache
	if cfg.Redis.Enabled {
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result cache disabled", "error", err)
		} else {
			defer client.Close()
			cache = rediscache.New(client, cfg.Redis.CacheTTL, m)
			if err := cache.Invalidate(ctx); err != nil {
				slog.Warn("stale results may be served", "error", err)
			}
			checker.RegisterOptional("redis", client.Ping)
		}
	}

	srv := server.New(idx, server.Options{
		Cache:          cache,
		Health:         checker,
		Metrics:        m,
		Events:         pub,
		MaxResults:     srvCfg.MaxResults,
		StemCacheSize:  cfg.Engine.StemCacheSize,
		RequestTimeout: srvCfg.RequestTimeout,
	})
	return server.Run(ctx, srvCfg, srv.Handler())
}
