// Package rest provides a resilient HTTP GET client for REST polling connectors
package rest

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	perr "testharvest/internal/platform/errors"
	"testharvest/internal/platform/logger"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUA        = "testharvest"
	defaultMaxRetry  = 3
	defaultRetryBase = 500 * time.Millisecond
	defaultRateLimit = 10.0
	defaultRateBurst = 5

	// max bytes of an error body kept for diagnostics
	errBodyMax = 2048
)

// Options configures the Client
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// Retry config for transient and rate limited responses.
	// MaxRetries is the total attempt budget per request
	MaxRetries int
	RetryBase  time.Duration

	// Client-side pacing of outgoing requests
	RateLimit float64
	RateBurst int

	// Transport overrides the default http transport (tests)
	Transport http.RoundTripper
}

// Client is a minimal retrying GET client with client-side rate limiting
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	log     logger.Logger
	now     func() time.Time
	sleep   func(time.Duration)
}

// New creates a new Client with sane defaults
func New(o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.RateLimit <= 0 {
		o.RateLimit = defaultRateLimit
	}
	if o.RateBurst <= 0 {
		o.RateBurst = defaultRateBurst
	}
	return &Client{
		http:    &http.Client{Timeout: o.Timeout, Transport: o.Transport},
		opts:    o,
		limiter: rate.NewLimiter(rate.Limit(o.RateLimit), o.RateBurst),
		log:     *logger.Named("rest"),
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string { return c.opts.BaseURL }

// URL composes the absolute URL for path and query without issuing a request.
// The composition is deterministic so it doubles as a request signature input
func (c *Client) URL(path string, query url.Values) string {
	u := strings.TrimSuffix(c.opts.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// GetBytes issues a GET and returns the response body.
// Transient failures (network errors, 429, 502, 503, 504) are retried with
// exponential backoff until the attempt budget runs out
func (c *Client) GetBytes(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "rest rate limiter wait failed")
	}

	fullURL := c.URL(path, query)
	var last error
	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, perr.Wrapf(ctx.Err(), perr.ErrorCodeUnavailable, "rest request canceled")
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "rest new request failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			last = perr.Wrapf(err, perr.ErrorCodeUnavailable, "rest do failed")
			if attempt == c.opts.MaxRetries {
				break
			}
			back := c.backoff(attempt)
			c.log.Warn().Str("url", fullURL).Dur("retry_in", back).Int("attempt", attempt).
				Msg("rest transport error retrying")
			c.sleep(back)
			continue
		}

		c.log.Debug().
			Str("url", fullURL).
			Int("status", resp.StatusCode).
			Int("attempt", attempt).
			Dur("latency", lat).
			Msg("rest http response")

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			body, rerr := io.ReadAll(resp.Body)
			cerr := resp.Body.Close()
			if rerr != nil {
				return nil, perr.Wrapf(rerr, perr.ErrorCodeUnavailable, "rest read body failed")
			}
			if cerr != nil {
				return nil, perr.Wrapf(cerr, perr.ErrorCodeUnavailable, "rest close body failed")
			}
			return body, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			_ = drainAndClose(resp.Body)
			last = perr.Newf(perr.ErrorCodeTooManyRequests, "rest rate limited by %s", fullURL)
			if attempt == c.opts.MaxRetries {
				break
			}
			back := c.backoff(attempt)
			c.log.Warn().Str("url", fullURL).Dur("retry_in", back).Int("attempt", attempt).
				Msg("rest rate limited backing off")
			c.sleep(back)
			continue

		case resp.StatusCode == http.StatusBadGateway,
			resp.StatusCode == http.StatusServiceUnavailable,
			resp.StatusCode == http.StatusGatewayTimeout:
			_ = drainAndClose(resp.Body)
			last = perr.Newf(perr.ErrorCodeUnavailable, "rest transient status %d from %s", resp.StatusCode, fullURL)
			if attempt == c.opts.MaxRetries {
				break
			}
			back := c.backoff(attempt)
			c.log.Warn().Str("url", fullURL).Int("status", resp.StatusCode).Dur("retry_in", back).
				Int("attempt", attempt).Msg("rest transient error retrying")
			c.sleep(back)
			continue

		case resp.StatusCode == http.StatusNotFound:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyMax))
			_ = resp.Body.Close()
			return nil, perr.Newf(perr.ErrorCodeNotFound, "rest status 404 from %s body %s", fullURL, string(body))

		default:
			// terminal status; keep a small tail for diagnostics
			body, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyMax))
			_ = resp.Body.Close()
			return nil, perr.Newf(perr.ErrorCodeUnknown,
				"rest unexpected status %d from %s body %s", resp.StatusCode, fullURL, string(body))
		}
		break
	}
	return nil, last
}

// backoff grows exponentially from RetryBase, capped at 30s
func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase
	ms := int64(d / time.Millisecond)
	ms = ms << uint(attempt-1)
	max := int64(30 * time.Second / time.Millisecond)
	if ms > max {
		ms = max
	}
	return time.Duration(ms) * time.Millisecond
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, errBodyMax))
	return rc.Close()
}
