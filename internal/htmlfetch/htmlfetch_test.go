package htmlfetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordindex/pkg/errors"
)

func testCrawlConfig() config.CrawlConfig {
	cfg := config.Default().Crawl
	cfg.RetryBaseDelay = time.Millisecond
	cfg.FetchTimeout = 2 * time.Second
	return cfg
}

func newSite(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>hello</body></html>")
	})
	mux.HandleFunc("/hop1", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/hop2", http.StatusFound)
	})
	mux.HandleFunc("/hop2", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "not html")
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchHTML(t *testing.T) {
	srv := newSite(t)
	f := NewHTTPFetcher(testCrawlConfig(), nil)
	body, err := f.Fetch(context.Background(), srv.URL+"/page", 0)
	require.NoError(t, err)
	assert.Contains(t, body, "hello")
}

func TestFetchFollowsRedirectsWithinLimit(t *testing.T) {
	srv := newSite(t)
	f := NewHTTPFetcher(testCrawlConfig(), nil)

	body, err := f.Fetch(context.Background(), srv.URL+"/hop1", 2)
	require.NoError(t, err)
	assert.Contains(t, body, "hello")

	_, err = f.Fetch(context.Background(), srv.URL+"/hop1", 1)
	assert.ErrorIs(t, err, apperrors.ErrFetch)
	assert.ErrorContains(t, err, "too many redirects")
}

func TestFetchRejectsNonHTMLAndErrors(t *testing.T) {
	srv := newSite(t)
	f := NewHTTPFetcher(testCrawlConfig(), nil)

	_, err := f.Fetch(context.Background(), srv.URL+"/plain", 0)
	assert.ErrorIs(t, err, apperrors.ErrNotHTML)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing", 0)
	assert.ErrorIs(t, err, apperrors.ErrFetch)
	assert.ErrorContains(t, err, "status 404")
}

func TestFetchRetriesNetworkErrorsThenOpensBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	cfg := testCrawlConfig()
	cfg.RetryAttempts = 2
	cfg.BreakerThreshold = 1
	cfg.BreakerResetTimeout = time.Hour
	f := NewHTTPFetcher(cfg, nil)

	_, err := f.Fetch(context.Background(), srv.URL+"/", 0)
	assert.ErrorIs(t, err, apperrors.ErrFetch)
	first := hits.Load()
	assert.GreaterOrEqual(t, first, int32(3), "one try plus two retries")

	_, err = f.Fetch(context.Background(), srv.URL+"/", 0)
	assert.ErrorContains(t, err, "circuit breaker is open")
	assert.Equal(t, first, hits.Load())
}

func TestFetchCancelledContext(t *testing.T) {
	srv := newSite(t)
	f := NewHTTPFetcher(testCrawlConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, srv.URL+"/page", 0)
	assert.ErrorIs(t, err, apperrors.ErrFetch)
}

func TestNormalize(t *testing.T) {
	p := NewParser()
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "HTTP://Example.COM", want: "http://example.com/"},
		{in: "https://example.com/a/B?q=1#frag", want: "https://example.com/a/B?q=1"},
		{in: "  https://example.com/x  ", want: "https://example.com/x"},
		{in: "ftp://example.com/", wantErr: true},
		{in: "/relative/path", wantErr: true},
		{in: "mailto:someone@example.com", wantErr: true},
		{in: "http://%zz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := p.Normalize(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractLinks(t *testing.T) {
	page := `<html>
<head><link href="/style.css"><a href="/in-head">x</a></head>
<body>
  <a href="b.html">B</a>
  <a href="/c#section">C</a>
  <A HREF="HTTPS://Other.ORG">other</A>
  <a href="b.html#again">B again</a>
  <script>document.write('<a href="/scripted">s</a>')</script>
  <noscript><a href="/noscript">n</a></noscript>
  <svg><a href="/svg"></a></svg>
  <a href="mailto:x@y.z">mail</a>
  <a name="anchor-only">no href</a>
  <a href="/d">D</a>
</body></html>`

	links := NewParser().ExtractLinks("http://example.com/dir/a.html", page)
	assert.Equal(t, []string{
		"http://example.com/dir/b.html",
		"http://example.com/c",
		"https://other.org/",
		"http://example.com/d",
	}, links)
}

func TestExtractLinksBadBase(t *testing.T) {
	assert.Empty(t, NewParser().ExtractLinks("http://%zz", `<a href="/x">x</a>`))
}

func TestText(t *testing.T) {
	page := `<html><head><title>Title words</title><style>p{}</style></head>
<body><p>Hello<b>World</b></p><script>var hidden = 1;</script>
<noscript>nojs</noscript><p>caf&eacute; &amp; tea</p></body></html>`

	text := NewParser().Text(page)
	fields := strings.Fields(text)
	assert.Equal(t, []string{"Hello", "World", "café", "&", "tea"}, fields)
}
