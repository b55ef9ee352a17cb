package subscriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rezozero/subscribeme/internal/pkg/logger"
)

// UserAgent is sent with every request.
const UserAgent = "rezozero/subscribeme"

// HTTPDoer is the transport collaborator. *http.Client satisfies it, as does
// any retrying or instrumented wrapper.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// client holds what every adapter shares: the transport and credentials.
type client struct {
	httpClient    HTTPDoer
	apiKey        string
	apiSecret     string
	contactListID string
}

func newClient(httpClient HTTPDoer) client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return client{httpClient: httpClient}
}

// APIKey returns the configured API key.
func (c *client) APIKey() string { return c.apiKey }

// APISecret returns the configured API secret.
func (c *client) APISecret() string { return c.apiSecret }

// ContactListID returns the configured list id (may be comma-separated).
func (c *client) ContactListID() string { return c.contactListID }

func (c *client) requireKey() error {
	if c.apiKey == "" {
		return ErrMissingCredentials
	}
	return nil
}

func (c *client) requireKeyAndSecret() error {
	if c.apiKey == "" || c.apiSecret == "" {
		return ErrMissingCredentials
	}
	return nil
}

func (c *client) requireListID() (string, error) {
	id := strings.TrimSpace(c.contactListID)
	if id == "" {
		return "", ErrMissingListID
	}
	return id, nil
}

// response is a fully read platform answer.
type response struct {
	status int
	body   []byte
}

func (r *response) success() bool { return r.status >= 200 && r.status < 300 }

// decode returns the body as a JSON object, or nil when it is empty or not
// an object. Numbers are kept as json.Number.
func (r *response) decode() map[string]any {
	if len(bytes.TrimSpace(r.body)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(r.body))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil
	}
	return out
}

// apiError builds an APIResponseError, extracting the message from the
// given body key.
func (r *response) apiError(messageKey string) *APIResponseError {
	body := r.decode()
	return &APIResponseError{
		StatusCode: r.status,
		Message:    stringValue(body, messageKey),
		Body:       body,
	}
}

func (c *client) newJSONRequest(ctx context.Context, method, rawURL string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *client) newFormRequest(ctx context.Context, method, rawURL string, form string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, strings.NewReader(form))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func (c *client) setBasicAuth(req *http.Request) {
	req.SetBasicAuth(c.apiKey, c.apiSecret)
}

// do performs the single exchange of an operation. A transport failure is
// returned as *TransportError; any status is returned as a response.
func (c *client) do(platform string, req *http.Request) (*response, error) {
	req.Header.Set("User-Agent", UserAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = scrubURL(err, req.URL)
		logger.Debug("platform request failed",
			"platform", platform, "method", req.Method, "host", req.URL.Host, "path", req.URL.Path, "error", err)
		return nil, &TransportError{Method: req.Method, URL: redactURL(req.URL), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: redactURL(req.URL), Err: fmt.Errorf("reading response: %w", err)}
	}

	logger.Debug("platform request",
		"platform", platform, "method", req.Method, "host", req.URL.Host, "path", req.URL.Path,
		"status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	return &response{status: resp.StatusCode, body: body}, nil
}

// redactURL drops the query string, which may carry addresses.
func redactURL(u *url.URL) string {
	clean := *u
	clean.RawQuery = ""
	clean.User = nil
	return clean.String()
}

// scrubbedError carries a transport error whose text no longer holds the
// request query. The original stays in the chain for errors.As.
type scrubbedError struct {
	msg string
	err error
}

func (e *scrubbedError) Error() string { return e.msg }

func (e *scrubbedError) Unwrap() error { return e.err }

// scrubURL removes the query string of u from err's text. Transports such
// as *http.Client quote the full URL in their errors.
func scrubURL(err error, u *url.URL) error {
	if u.RawQuery == "" {
		return err
	}
	msg := strings.ReplaceAll(err.Error(), u.String(), redactURL(u))
	msg = strings.ReplaceAll(msg, "?"+u.RawQuery, "")
	if msg == err.Error() {
		return err
	}
	return &scrubbedError{msg: msg, err: err}
}

func stringValue(body map[string]any, key string) string {
	if body == nil {
		return ""
	}
	s, _ := body[key].(string)
	return s
}

// intValue converts a decoded JSON value to an integer id.
func intValue(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		return int64(n), n == float64(int64(n))
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// parseTemplateID converts a template id for platforms that number them.
func parseTemplateID(templateID string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(templateID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: template id %q is not numeric", ErrInvalidArgument, templateID)
	}
	return id, nil
}

func checkTransactionalArgs(recipients []EmailAddress, templateID string) error {
	if len(recipients) == 0 {
		return ErrEmptyRecipients
	}
	if strings.TrimSpace(templateID) == "" || templateID == "0" {
		return ErrEmptyTemplateID
	}
	for _, r := range recipients {
		if r.Email() == "" {
			return ErrInvalidEmail
		}
	}
	return nil
}
