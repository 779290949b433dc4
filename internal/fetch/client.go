// Package fetch provides the rate-limited HTTP retrieval layer: a shared
// request clock gate and a retrying client with full-jitter backoff,
// Retry-After handling, and rotating request identity.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Options configures a Client. Zero-valued fields fall back to the
// defaults below.
type Options struct {
	UserAgents []string
	Headers    map[string]string
	// Proxies is an optional pool of proxy URLs; one is drawn uniformly
	// per attempt when non-empty.
	Proxies []string

	Timeout    time.Duration
	MaxRetries int

	// Transient-error backoff: sleep min(MaxBackoff, BaseBackoff*2^attempt)
	// scaled by a uniform random factor in [0,1).
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// Pre-request jitter drawn uniformly from [PreJitterMin, PreJitterMax)
	// to desynchronize concurrent callers.
	PreJitterMin time.Duration
	PreJitterMax time.Duration

	// 429 handling: when the server sends no usable Retry-After, a wait is
	// drawn from [RetryAfterMin, RetryAfterMax); either way the wait is
	// capped at RetryAfterCap and the actual sleep is uniform in [0, wait).
	RetryAfterMin time.Duration
	RetryAfterMax time.Duration
	RetryAfterCap time.Duration
}

func (o *Options) applyDefaults() {
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 5
	}
	if o.BaseBackoff == 0 {
		o.BaseBackoff = 2 * time.Second
	}
	if o.MaxBackoff == 0 {
		o.MaxBackoff = 60 * time.Second
	}
	if o.PreJitterMin == 0 && o.PreJitterMax == 0 {
		o.PreJitterMin = 500 * time.Millisecond
		o.PreJitterMax = 2 * time.Second
	}
	if o.RetryAfterMin == 0 {
		o.RetryAfterMin = 60 * time.Second
	}
	if o.RetryAfterMax == 0 {
		o.RetryAfterMax = 180 * time.Second
	}
	if o.RetryAfterCap == 0 {
		o.RetryAfterCap = 300 * time.Second
	}
}

// result is the outcome of a single request attempt.
type result struct {
	body       string
	status     int
	retryAfter string
}

// Client retrieves URLs with retries, rotating identity, and global pacing.
// Safe for concurrent use.
type Client struct {
	opts    Options
	limiter *Limiter
	// clients holds one http.Client per configured proxy, or a single
	// direct client when no proxy pool is configured.
	clients []*http.Client
	logger  *slog.Logger
}

// NewClient creates a fetch client gated by the given limiter.
func NewClient(opts Options, limiter *Limiter, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts.applyDefaults()

	var clients []*http.Client
	if len(opts.Proxies) == 0 {
		clients = []*http.Client{{Timeout: opts.Timeout}}
	} else {
		for _, p := range opts.Proxies {
			proxyURL, err := url.Parse(p)
			if err != nil {
				return nil, fmt.Errorf("parse proxy %q: %w", p, err)
			}
			clients = append(clients, &http.Client{
				Timeout:   opts.Timeout,
				Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
			})
		}
	}

	return &Client{
		opts:    opts,
		limiter: limiter,
		clients: clients,
		logger:  logger,
	}, nil
}

// Fetch retrieves the URL body, making up to MaxRetries attempts. Every
// attempt waits for the shared limiter, sleeps a small random jitter, and
// sends a fresh randomized identity. 429 responses honor Retry-After (or a
// wide random fallback window) with a full-jitter sleep; transient errors
// and non-2xx statuses back off exponentially with full jitter. The error
// from the last attempt is returned once retries are exhausted.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
		if err := sleepCtx(ctx, c.preJitter()); err != nil {
			return "", err
		}

		res, err := c.attempt(ctx, rawURL)
		switch {
		case err != nil:
			lastErr = err

		case res.status == http.StatusTooManyRequests:
			wait := randDuration(c.retryAfterFrom(res.retryAfter))
			c.logger.Warn("429 Too Many Requests",
				"url", rawURL, "attempt", attempt+1, "wait", wait.Round(time.Millisecond))
			lastErr = fmt.Errorf("status 429 for %s", rawURL)
			if err := sleepCtx(ctx, wait); err != nil {
				return "", err
			}
			continue

		case res.status >= 200 && res.status < 300:
			c.logger.Debug("Fetched", "url", rawURL, "attempt", attempt+1)
			return res.body, nil

		default:
			lastErr = fmt.Errorf("status %d for %s", res.status, rawURL)
		}

		if attempt < c.opts.MaxRetries-1 {
			delay := c.backoff(attempt)
			c.logger.Warn("Request failed, retrying",
				"url", rawURL, "attempt", attempt+1, "retries", c.opts.MaxRetries,
				"error", lastErr, "delay", delay.Round(time.Millisecond))
			if err := sleepCtx(ctx, delay); err != nil {
				return "", err
			}
		}
	}

	c.logger.Error("All attempts failed", "url", rawURL, "retries", c.opts.MaxRetries, "error", lastErr)
	return "", fmt.Errorf("all %d attempts failed for %s: %w", c.opts.MaxRetries, rawURL, lastErr)
}

// attempt performs one request. A non-nil error means the request never
// produced a response (connect failure, timeout, body read error).
func (c *Client) attempt(ctx context.Context, rawURL string) (result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return result{}, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.opts.Headers {
		req.Header.Set(k, v)
	}
	if len(c.opts.UserAgents) > 0 {
		req.Header.Set("User-Agent", c.opts.UserAgents[rand.Intn(len(c.opts.UserAgents))])
	}

	client := c.clients[rand.Intn(len(c.clients))]
	resp, err := client.Do(req)
	if err != nil {
		return result{}, fmt.Errorf("http request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result{}, fmt.Errorf("read response body: %w", err)
	}
	return result{
		body:       string(body),
		status:     resp.StatusCode,
		retryAfter: resp.Header.Get("Retry-After"),
	}, nil
}

// retryAfterFrom resolves the server-supplied Retry-After seconds value,
// falling back to a draw from the random default window, capped at
// RetryAfterCap. The caller applies full jitter on top.
func (c *Client) retryAfterFrom(header string) time.Duration {
	wait := time.Duration(0)
	if header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
			wait = time.Duration(secs) * time.Second
		}
	}
	if wait == 0 {
		wait = c.opts.RetryAfterMin + randDuration(c.opts.RetryAfterMax-c.opts.RetryAfterMin)
	}
	if wait > c.opts.RetryAfterCap {
		wait = c.opts.RetryAfterCap
	}
	return wait
}

func (c *Client) backoff(attempt int) time.Duration {
	backoff := c.opts.BaseBackoff << uint(attempt)
	if backoff > c.opts.MaxBackoff || backoff <= 0 {
		backoff = c.opts.MaxBackoff
	}
	return randDuration(backoff)
}

func (c *Client) preJitter() time.Duration {
	return c.opts.PreJitterMin + randDuration(c.opts.PreJitterMax-c.opts.PreJitterMin)
}

// randDuration draws uniformly from [0, d).
func randDuration(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
