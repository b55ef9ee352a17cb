// Package httpretry is the outbound transport handed to platform adapters:
// an HTTP client that retries throttled and transient failures with capped
// exponential backoff and full jitter.
package httpretry

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/rezozero/subscribeme/internal/pkg/logger"
	"github.com/rezozero/subscribeme/pkg/subscriber"
)

var _ subscriber.HTTPDoer = (*RetryClient)(nil)

// Options tunes a RetryClient. Zero values select the defaults.
type Options struct {
	MaxRetries int           // retries after the first attempt (default 3)
	BaseDelay  time.Duration // first backoff ceiling (default 1s)
	MaxDelay   time.Duration // backoff cap (default 30s)
	Timeout    time.Duration // per-attempt timeout of the default client (default 30s)
}

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// RetryClient wraps a subscriber.HTTPDoer with retry logic.
type RetryClient struct {
	client     subscriber.HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration

	// sleep waits for d or until ctx is done.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryClient wraps client, or a default http.Client when client is nil.
// A negative MaxRetries disables retries.
func NewRetryClient(client subscriber.HTTPDoer, opts Options) *RetryClient {
	opts = opts.withDefaults()
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &RetryClient{
		client:     client,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		maxDelay:   opts.MaxDelay,
		sleep:      sleepContext,
	}
}

// Do executes the request, retrying 429 and 5xx gateway statuses and network
// errors. Client errors and context cancellation are returned at once. The
// last attempt's response is returned as-is so callers can read its body.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var lastErr error
	var wait time.Duration

	for attempt := 0; attempt <= rc.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, firstErr(lastErr, ctx.Err())
		}

		if attempt > 0 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: resetting request body: %w", err)
				}
				req.Body = body
			}

			delay := rc.calculateDelay(attempt)
			if wait > delay {
				delay = wait
			}
			logger.Warn("retrying platform request",
				"attempt", attempt, "max_retries", rc.maxRetries,
				"method", req.Method, "host", req.URL.Host, "path", req.URL.Path,
				"delay_ms", delay.Milliseconds(), "error", lastErr)

			if err := rc.sleep(ctx, delay); err != nil {
				return nil, firstErr(lastErr, err)
			}
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, err
			}
			wait = 0
			continue
		}

		if !isRetryableStatus(resp.StatusCode) || attempt == rc.maxRetries {
			return resp, nil
		}

		wait = retryAfter(resp.Header.Get("Retry-After"), rc.maxDelay)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: server returned retryable status %d", resp.StatusCode)
	}

	return nil, lastErr
}

// calculateDelay returns random(0, min(maxDelay, baseDelay * 2^(attempt-1))),
// never below 100ms.
func (rc *RetryClient) calculateDelay(attempt int) time.Duration {
	expDelay := float64(rc.baseDelay) * math.Pow(2, float64(attempt-1))
	if expDelay > float64(rc.maxDelay) {
		expDelay = float64(rc.maxDelay)
	}

	jittered := time.Duration(rand.Float64() * expDelay)
	if jittered < 100*time.Millisecond {
		jittered = 100 * time.Millisecond
	}
	return jittered
}

// retryAfter reads a Retry-After header given in seconds, capped at max.
func retryAfter(header string, max time.Duration) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > max {
		return max
	}
	return d
}

// isRetryableStatus: 429, 500, 502, 503, 504.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
