package httpretry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newTestClient(maxRetries int) *RetryClient {
	rc := NewRetryClient(nil, Options{MaxRetries: maxRetries})
	rc.sleep = noSleep
	return rc
}

func TestRetryClient_RetriesTransientStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"email":"a@example.com"}`, string(body))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":1}`)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodPost, server.URL, strings.NewReader(`{"email":"a@example.com"}`))
	require.NoError(t, err)

	resp, err := newTestClient(3).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"message":"Contact already exist"}`)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL, nil)
	resp, err := newTestClient(3).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "Contact already exist")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetryClient_ReturnsLastResponse(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := newTestClient(2).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

type failingDoer struct{ calls int }

func (f *failingDoer) Do(*http.Request) (*http.Response, error) {
	f.calls++
	return nil, errors.New("connection reset by peer")
}

func TestRetryClient_NetworkErrors(t *testing.T) {
	doer := &failingDoer{}
	rc := NewRetryClient(doer, Options{MaxRetries: 2})
	rc.sleep = noSleep

	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/ping", nil)
	_, err := rc.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 3, doer.calls)
}

func TestRetryClient_NegativeRetriesDisablesRetry(t *testing.T) {
	doer := &failingDoer{}
	rc := NewRetryClient(doer, Options{MaxRetries: -1})

	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/ping", nil)
	_, err := rc.Do(req)
	require.Error(t, err)
	assert.Equal(t, 1, doer.calls)
}

func TestRetryClient_StopsOnCanceledContext(t *testing.T) {
	doer := &failingDoer{}
	rc := NewRetryClient(doer, Options{MaxRetries: 5})

	ctx, cancel := context.WithCancel(context.Background())
	rc.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.example.com/ping", nil)
	_, err := rc.Do(req)
	require.Error(t, err)
	assert.Equal(t, 1, doer.calls)
}

func TestCalculateDelay(t *testing.T) {
	rc := NewRetryClient(nil, Options{BaseDelay: time.Second, MaxDelay: 4 * time.Second})
	for attempt := 1; attempt <= 6; attempt++ {
		d := rc.calculateDelay(attempt)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 4*time.Second)
	}
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryAfter("", time.Minute))
	assert.Equal(t, time.Duration(0), retryAfter("soon", time.Minute))
	assert.Equal(t, 5*time.Second, retryAfter("5", time.Minute))
	assert.Equal(t, 10*time.Second, retryAfter("120", 10*time.Second))
}

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, isRetryableStatus(code), code)
	}
	for _, code := range []int{200, 201, 204, 400, 401, 403, 404, 501} {
		assert.False(t, isRetryableStatus(code), code)
	}
}
