package subscriber

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	PlatformBrevo = "brevo"
	// PlatformSendinBlue is Brevo's former name, kept for existing callers.
	PlatformSendinBlue = "sendinblue"
)

const (
	brevoContactsURL = "https://api.brevo.com/v3/contacts"
	brevoSendURL     = "https://api.brevo.com/v3/smtp/email"

	brevoDuplicateMessage = "Contact already exist"
)

// Brevo talks to the Brevo (formerly SendinBlue) v3 API using the api-key
// header. The contact list id may hold several comma-separated ids.
type Brevo struct {
	client
	platform string
}

func NewBrevo(httpClient HTTPDoer) *Brevo {
	return &Brevo{client: newClient(httpClient), platform: PlatformBrevo}
}

// NewSendinBlue returns a Brevo adapter reporting the legacy platform name.
//
// Deprecated: use NewBrevo.
func NewSendinBlue(httpClient HTTPDoer) *Brevo {
	return &Brevo{client: newClient(httpClient), platform: PlatformSendinBlue}
}

func (b *Brevo) Platform() string { return b.platform }

func (b *Brevo) SetAPIKey(key string) Subscriber { b.apiKey = key; return b }

func (b *Brevo) SetAPISecret(secret string) Subscriber { b.apiSecret = secret; return b }

func (b *Brevo) SetContactListID(id string) Subscriber { b.contactListID = id; return b }

// ListIDs parses the comma-separated contact list id.
func (b *Brevo) ListIDs() ([]int64, error) {
	raw, err := b.requireListID()
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: contact list id %q is not numeric", ErrConfiguration, part)
		}
		ids = append(ids, id)
	}
	if len(ids) < 1 {
		return nil, fmt.Errorf("%w: you must add at least one contact list ID before subscribing user", ErrConfiguration)
	}
	return ids, nil
}

// Subscribe creates the contact, or updates it when it already exists.
func (b *Brevo) Subscribe(ctx context.Context, email string, options map[string]any, consents ...*UserConsent) (Result, error) {
	if err := b.requireKey(); err != nil {
		return Result{}, err
	}
	listIDs, err := b.ListIDs()
	if err != nil {
		return Result{}, err
	}
	if err := ValidateEmail(email); err != nil {
		return Result{}, err
	}

	body := map[string]any{
		"updateEnabled": true,
		"email":         email,
		"listIds":       listIDs,
		"attributes":    foldConsent(options, consents),
	}
	return b.createContact(ctx, brevoContactsURL, body)
}

func (b *Brevo) createContact(ctx context.Context, endpoint string, body map[string]any) (Result, error) {
	req, err := b.newJSONRequest(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("api-key", b.apiKey)

	res, err := b.do(b.platform, req)
	if err != nil {
		return Result{}, subscribeFailure(b.platform, err)
	}

	if !res.success() {
		apiErr := res.apiError("message")
		if res.status == http.StatusBadRequest && apiErr.Message == brevoDuplicateMessage {
			return confirmed(), nil
		}
		return Result{}, subscribeFailure(b.platform, apiErr)
	}

	// 201 carries the new id; 204 (update, double opt-in) carries nothing.
	if id, ok := intValue(res.decode()["id"]); ok {
		return withContactID(id), nil
	}
	return confirmed(), nil
}

func (b *Brevo) Unsubscribe(context.Context, string) (bool, error) {
	return false, ErrUnsupportedUnsubscribe
}

// SendTransactionalEmail sends a Brevo template. templateID must be numeric;
// variables are passed as template params.
func (b *Brevo) SendTransactionalEmail(ctx context.Context, recipients []EmailAddress, templateID string, variables map[string]any) (string, error) {
	if err := checkTransactionalArgs(recipients, templateID); err != nil {
		return "", err
	}
	id, err := parseTemplateID(templateID)
	if err != nil {
		return "", err
	}
	if err := b.requireKey(); err != nil {
		return "", err
	}

	to := make([]map[string]any, 0, len(recipients))
	for _, r := range recipients {
		entry := map[string]any{"email": r.Email()}
		if r.Name() != "" {
			entry["name"] = r.Name()
		}
		to = append(to, entry)
	}
	if variables == nil {
		variables = map[string]any{}
	}

	body := map[string]any{
		"to":         to,
		"params":     variables,
		"templateId": id,
	}

	req, err := b.newJSONRequest(ctx, http.MethodPost, brevoSendURL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("api-key", b.apiKey)

	res, err := b.do(b.platform, req)
	if err != nil {
		return "", sendFailure(b.platform, err)
	}
	if !res.success() {
		return "", sendFailure(b.platform, res.apiError("message"))
	}
	return string(res.body), nil
}
