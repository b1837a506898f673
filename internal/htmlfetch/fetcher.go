// Package htmlfetch fetches HTML pages over HTTP and turns them into links
// and plain text for the crawler.
package htmlfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/resilience"
)

// MaxBodySize caps how much of a page is read.
const MaxBodySize = 8 << 20

// HTTPFetcher issues GET requests with manual redirect handling. Network
// errors are retried with backoff behind a per-host circuit breaker and the
// number of requests in flight is bounded.
type HTTPFetcher struct {
	client    *http.Client
	sem       *semaphore.Weighted
	breakers  *resilience.HostBreakers
	backoff   resilience.Backoff
	timeout   time.Duration
	userAgent string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewHTTPFetcher builds a fetcher from the crawl settings. m may be nil.
func NewHTTPFetcher(cfg config.CrawlConfig, m *metrics.Metrics) *HTTPFetcher {
	if m == nil {
		m = metrics.Discard()
	}
	limit := cfg.MaxConcurrentFetches
	if limit < 1 {
		limit = 1
	}
	return &HTTPFetcher{
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		sem: semaphore.NewWeighted(limit),
		breakers: resilience.NewHostBreakers(resilience.BreakerConfig{
			Threshold: cfg.BreakerThreshold,
			Cooldown:  cfg.BreakerResetTimeout,
			Counts: func(err error) bool {
				return err != nil && !errors.Is(err, context.Canceled)
			},
		}),
		backoff: resilience.Backoff{
			Attempts: cfg.RetryAttempts + 1,
			Base:     cfg.RetryBaseDelay,
		},
		timeout:   cfg.FetchTimeout,
		userAgent: cfg.UserAgent,
		metrics:   m,
		logger:    slog.Default().With("component", "fetcher"),
	}
}

type response struct {
	status      int
	contentType string
	location    string
	body        string
}

// Fetch returns the body of location when it answers 200 with a text/html
// content type, following at most maxRedirects redirects. Every other
// outcome is an error wrapping ErrFetch or ErrNotHTML.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string, maxRedirects int) (string, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: %s: %w", apperrors.ErrFetch, location, err)
	}
	defer f.sem.Release(1)

	start := time.Now()
	defer func() { f.metrics.FetchLatency.Observe(time.Since(start).Seconds()) }()

	current := location
	for redirects := 0; ; redirects++ {
		u, err := url.Parse(current)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", apperrors.ErrFetch, current, err)
		}
		resp, err := f.get(ctx, u)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", apperrors.ErrFetch, current, err)
		}

		switch {
		case isRedirect(resp.status) && resp.location != "":
			if redirects >= maxRedirects {
				return "", fmt.Errorf("%w: %s: too many redirects (limit %d)", apperrors.ErrFetch, location, maxRedirects)
			}
			next, err := u.Parse(resp.location)
			if err != nil {
				return "", fmt.Errorf("%w: %s: bad redirect %q: %w", apperrors.ErrFetch, current, resp.location, err)
			}
			f.logger.Debug("following redirect", "from", current, "to", next.String())
			current = next.String()
		case resp.status != http.StatusOK:
			return "", fmt.Errorf("%w: %s: status %d", apperrors.ErrFetch, current, resp.status)
		case !isHTML(resp.contentType):
			return "", fmt.Errorf("%w: %s: content type %q", apperrors.ErrNotHTML, current, resp.contentType)
		default:
			return resp.body, nil
		}
	}
}

// get performs one request through the host's breaker, retrying network
// failures. Any HTTP response, whatever its status, counts as success.
func (f *HTTPFetcher) get(ctx context.Context, u *url.URL) (response, error) {
	var resp response
	err := f.breakers.Do(u.Host, func() error {
		return f.backoff.Do(ctx, "fetch "+u.Host, func(int) error {
			// a timed-out attempt may still finish in the background, so it
			// writes only its own result
			var attempt response
			err := resilience.Attempt(ctx, f.timeout, func(ctx context.Context) error {
				r, err := f.do(ctx, u)
				if err != nil {
					if errors.Is(ctx.Err(), context.Canceled) {
						return resilience.Permanent(err)
					}
					return err
				}
				attempt = r
				return nil
			})
			if err == nil {
				resp = attempt
			}
			return err
		})
	})
	return resp, err
}

func (f *HTTPFetcher) do(ctx context.Context, u *url.URL) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return response{}, resilience.Permanent(err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	res, err := f.client.Do(req)
	if err != nil {
		return response{}, err
	}
	defer res.Body.Close()

	r := response{
		status:      res.StatusCode,
		contentType: res.Header.Get("Content-Type"),
		location:    res.Header.Get("Location"),
	}
	if r.status == http.StatusOK && isHTML(r.contentType) {
		body, err := io.ReadAll(io.LimitReader(res.Body, MaxBodySize))
		if err != nil {
			return response{}, fmt.Errorf("reading body: %w", err)
		}
		r.body = string(body)
	}
	return r, nil
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

func isHTML(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/html")
}
