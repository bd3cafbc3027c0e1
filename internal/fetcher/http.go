// Package fetcher downloads listing pages politely: one adaptive rate limit
// per host, retries on transient failures, and block-page detection.
package fetcher

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/rent-cli/internal/resilience"
)

// DefaultUserAgent identifies the scraper to rental sites.
const DefaultUserAgent = "Mozilla/5.0 (compatible; rent-cli/1.0; +https://github.com/sells-group/rent-cli)"

// Fetcher retrieves a single page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// Page is a fetched HTML document.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	MinDelay     time.Duration // lower bound between requests to one host
	MaxDelay     time.Duration // upper bound; a random pause in [MinDelay, MaxDelay] follows each request
	MaxBodyBytes int64
	Client       *http.Client
}

// AdaptiveLimiter wraps a rate.Limiter that slows down on 429 responses
// and recovers gradually on success, never exceeding its initial rate.
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive limiter starting at initialRate.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		initialRate: initialRate,
		minRate:     initialRate / 8,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 10%, up to the initial rate.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = min(a.currentRate*1.1, a.initialRate)
	a.limiter.SetLimit(a.currentRate)
}

// OnRateLimit halves the rate, down to an eighth of the initial rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = max(a.currentRate*0.5, a.minRate)
	a.limiter.SetLimit(a.currentRate)
	zap.L().Warn("fetcher: reducing request rate after 429",
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher implements Fetcher with net/http.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
	retry  resilience.RetryConfig

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				MaxConnsPerHost:     4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	retry := resilience.DefaultRetryConfig().WithAttempts(opts.MaxRetries)
	retry.OnRetry = resilience.RetryLogger("fetcher", "fetch")
	return &HTTPFetcher{
		client:   client,
		opts:     opts,
		retry:    retry,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// limiterFor returns the host's limiter, creating one from MinDelay.
func (f *HTTPFetcher) limiterFor(rawURL string) *AdaptiveLimiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	r := rate.Inf
	if f.opts.MinDelay > 0 {
		r = rate.Every(f.opts.MinDelay)
	}
	lim := NewAdaptiveLimiter(r, 1)
	f.limiters[host] = lim
	return lim
}

// Fetch downloads rawURL, retrying transient failures. Non-2xx responses
// become *resilience.StatusError; challenge pages become ErrBlocked.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	lim := f.limiterFor(rawURL)

	page, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (*Page, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}
		page, err := f.fetchOnce(ctx, rawURL)

		var se *resilience.StatusError
		if eris.As(err, &se) && se.StatusCode == http.StatusTooManyRequests {
			lim.OnRateLimit()
		} else if err == nil {
			lim.OnSuccess()
		}
		f.pause(ctx)
		return page, err
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetch %s", rawURL)
	}
	if IsBlocked(page.Body) {
		return nil, eris.Wrapf(ErrBlocked, "fetch %s", rawURL)
	}
	return page, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,nl;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &resilience.StatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read body"))
	}

	return &Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// pause sleeps a random duration in [MinDelay, MaxDelay].
func (f *HTTPFetcher) pause(ctx context.Context) {
	spread := f.opts.MaxDelay - f.opts.MinDelay
	if spread <= 0 {
		return
	}
	resilience.Sleep(ctx, time.Duration(rand.Int64N(int64(spread))))
}
