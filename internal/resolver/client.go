// Package resolver calls the spatial and asset services over HTTP.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/circuitbreaker"
	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultAttempts = 3
)

// statusError is a non-2xx response.
type statusError struct {
	URL        string
	StatusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// retryable reports whether a failed call may succeed when repeated.
func retryable(err error) bool {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrMalformed) || errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// Client issues JSON GET requests against one base URL, guarded by a
// circuit breaker keyed on the host.
type Client struct {
	base     *url.URL
	http     *http.Client
	breaker  *circuitbreaker.Breaker
	attempts uint
	delay    time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

func WithAttempts(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithRetryDelay sets the base backoff between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.delay = d }
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		base:     base,
		http:     &http.Client{Timeout: DefaultTimeout},
		attempts: DefaultAttempts,
		delay:    200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// getJSON decodes the response of GET base+path?query into out.
// A 404 yields notFound.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, notFound error, out any) error {
	u := c.base.JoinPath(path)
	u.RawQuery = query.Encode()
	target := u.String()
	host := c.base.Host

	if c.breaker != nil {
		if err := c.breaker.Allow(host); err != nil {
			return err
		}
	}

	var last error
	_ = retry.Do(
		func() error {
			last = c.get(ctx, target, notFound, out)
			return last
		},
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(5*time.Second),
		retry.MaxJitter(c.delay),
		retry.Context(ctx),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("resolver: retrying url=%s attempt=%d err=%v", target, n+1, err)
		}),
	)
	if last == nil && ctx.Err() != nil {
		last = ctx.Err()
	}

	if c.breaker != nil {
		if errors.Is(last, domain.ErrNotFound) {
			c.breaker.Record(host, nil)
		} else {
			c.breaker.Record(host, last)
		}
	}
	return last
}

func (c *Client) get(ctx context.Context, target string, notFound error, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return notFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &statusError{URL: target, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.Malformed("response", "decode %s: %v", target, err)
	}
	return nil
}
