package subscriber

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingDoer captures every request and answers with a canned response.
type recordingDoer struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte

	status int
	body   string
	err    error

	// asURLError wraps err the way *http.Client does, quoting the full URL.
	asURLError bool
}

func respondWith(status int, body string) *recordingDoer {
	return &recordingDoer{status: status, body: body}
}

func failWith(err error) *recordingDoer {
	return &recordingDoer{err: err}
}

func (d *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.bodies = append(d.bodies, body)
	d.mu.Unlock()

	if d.err != nil {
		if d.asURLError {
			return nil, &url.Error{Op: req.Method, URL: req.URL.String(), Err: d.err}
		}
		return nil, d.err
	}
	return &http.Response{
		StatusCode: d.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(d.body)),
		Request:    req,
	}, nil
}

func (d *recordingDoer) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

func (d *recordingDoer) last(t *testing.T) (*http.Request, []byte) {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.requests, "no request was sent")
	i := len(d.requests) - 1
	return d.requests[i], d.bodies[i]
}

func (d *recordingDoer) lastJSON(t *testing.T) map[string]any {
	t.Helper()
	_, body := d.last(t)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func (d *recordingDoer) lastForm(t *testing.T) url.Values {
	t.Helper()
	_, body := d.last(t)
	values, err := url.ParseQuery(string(body))
	require.NoError(t, err)
	return values
}

var errConnRefused = errors.New("dial tcp: connection refused")
