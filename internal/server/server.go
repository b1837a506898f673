// Package server exposes a built index over HTTP: ranked search, index
// statistics and health probes.
//
// Routes:
//
//	GET /api/v1/search?q=&exact=&reverse=&limit=
//	GET /api/v1/index/stats
//	GET /health/live
//	GET /health/ready
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/events"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/query"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/query/rediscache"
	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/stemmer"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/middleware"
)

// Index is what the server needs from the shared index. It must be safe for
// concurrent use.
type Index interface {
	index.Searcher
	NumWords() int
	NumCounts() int
}

type Options struct {
	// Cache is optional; nil searches the index on every request.
	Cache          *rediscache.Cache
	Health         *health.Checker
	Metrics        *metrics.Metrics
	Events         events.Publisher
	MaxResults     int
	StemCacheSize  int
	RequestTimeout time.Duration
}

type Server struct {
	index          Index
	stemmer        *stemmer.Stemmer
	cache          *rediscache.Cache
	health         *health.Checker
	metrics        *metrics.Metrics
	events         events.Publisher
	maxResults     int
	requestTimeout time.Duration
	logger         *slog.Logger
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Query    string               `json:"query"`
	Key      string               `json:"key"`
	Partial  bool                 `json:"partial"`
	Total    int                  `json:"total"`
	Results  []index.SearchResult `json:"results"`
	CacheHit bool                 `json:"cache_hit"`
	TookMs   int64                `json:"took_ms"`
}

type StatsResponse struct {
	Words     int `json:"words"`
	Locations int `json:"locations"`
}

func New(idx Index, opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}
	if opts.Health == nil {
		opts.Health = health.NewChecker()
	}
	if opts.MaxResults < 1 {
		opts.MaxResults = config.Default().Server.MaxResults
	}
	return &Server{
		index:          idx,
		stemmer:        stemmer.New(opts.StemCacheSize),
		cache:          opts.Cache,
		health:         opts.Health,
		metrics:        opts.Metrics,
		events:         events.OrNop(opts.Events),
		maxResults:     opts.MaxResults,
		requestTimeout: opts.RequestTimeout,
		logger:         logger.WithComponent("server"),
	}
}

// Handler returns the routed handler wrapped in the middleware chain:
// RequestID → CORS → Timeout → Metrics → mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", s.Search)
	mux.HandleFunc("GET /api/v1/index/stats", s.Stats)
	mux.HandleFunc("GET /health/live", s.health.LiveHandler())
	mux.HandleFunc("GET /health/ready", s.health.ReadyHandler())

	// Metrics sits next to the mux so it can read the matched pattern.
	var chain http.Handler = mux
	chain = middleware.Metrics(s.metrics)(chain)
	chain = middleware.Timeout(s.requestTimeout)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)
	return chain
}

// Search runs a ranked search. Partial search is the default; exact=true
// switches to exact matching and reverse=true returns the lowest ranked
// results first.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	params := r.URL.Query()

	q := params.Get("q")
	if q == "" {
		s.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	exact, err := boolParam(params.Get("exact"))
	if err != nil {
		s.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "exact must be a boolean"))
		return
	}
	reverse, err := boolParam(params.Get("reverse"))
	if err != nil {
		s.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "reverse must be a boolean"))
		return
	}
	limit := s.maxResults
	if raw := params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(n, s.maxResults)
	}
	partial := !exact

	key, stems := query.Canonical(s.stemmer, q)
	resp := SearchResponse{Query: q, Key: key, Partial: partial, Results: []index.SearchResult{}}
	if key != "" {
		resp.Results, resp.CacheHit = s.search(ctx, key, stems, partial)
	}

	resp.Total = len(resp.Results)
	if reverse {
		slices.Reverse(resp.Results)
	}
	if len(resp.Results) > limit {
		resp.Results = resp.Results[:limit]
	}
	resp.TookMs = time.Since(start).Milliseconds()

	logger.FromContext(ctx).Info("search completed",
		"component", "server",
		"key", key,
		"partial", partial,
		"total", resp.Total,
		"returned", len(resp.Results),
		"cache_hit", resp.CacheHit,
		"latency_ms", resp.TookMs,
	)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) search(ctx context.Context, key string, stems []string, partial bool) ([]index.SearchResult, bool) {
	compute := func() []index.SearchResult {
		mode := "exact"
		if partial {
			mode = "partial"
		}
		t := time.Now()
		results := s.index.Search(stems, partial)
		s.metrics.SearchLatency.WithLabelValues(mode).Observe(time.Since(t).Seconds())
		s.events.Publish(ctx, events.Event{Type: events.QueryEvaluated, Query: key, Results: len(results)})
		return results
	}
	if s.cache == nil {
		return compute(), false
	}
	return s.cache.GetOrCompute(ctx, key, partial, compute)
}

func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StatsResponse{
		Words:     s.index.NumWords(),
		Locations: s.index.NumCounts(),
	})
}

// Run serves h on cfg.Port until ctx is cancelled, then shuts down
// gracefully within cfg.ShutdownTimeout.
func Run(ctx context.Context, cfg config.ServerConfig, h http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("search server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving on %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	slog.Info("search server stopped")
	return nil
}

func boolParam(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	s.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": message})
}
