package subscriber

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const PlatformMailchimp = "mailchimp"

const (
	mailchimpDefaultDC = "us16"
	mandrillSendURL    = "https://mandrillapp.com/api/1.0/messages/send-template"
)

// Mailchimp subscribes through the Marketing API (basic auth key:secret)
// and sends transactional email through Mandrill (key in body).
type Mailchimp struct {
	client
	dc     string
	status string
}

// NewMailchimp returns a Mailchimp adapter on data center us16 that
// subscribes contacts directly.
func NewMailchimp(httpClient HTTPDoer) *Mailchimp {
	return &Mailchimp{client: newClient(httpClient), dc: mailchimpDefaultDC, status: "subscribed"}
}

func (m *Mailchimp) Platform() string { return PlatformMailchimp }

func (m *Mailchimp) SetAPIKey(key string) Subscriber { m.apiKey = key; return m }

func (m *Mailchimp) SetAPISecret(secret string) Subscriber { m.apiSecret = secret; return m }

func (m *Mailchimp) SetContactListID(id string) Subscriber { m.contactListID = id; return m }

// SetDC selects the account data center, e.g. "us6". Empty restores us16.
func (m *Mailchimp) SetDC(dc string) *Mailchimp {
	if dc == "" {
		dc = mailchimpDefaultDC
	}
	m.dc = dc
	return m
}

func (m *Mailchimp) DC() string { return m.dc }

// SetSubscribed makes new contacts active immediately.
func (m *Mailchimp) SetSubscribed() *Mailchimp { m.status = "subscribed"; return m }

// SetPending makes Mailchimp send its own confirmation email first.
func (m *Mailchimp) SetPending() *Mailchimp { m.status = "pending"; return m }

func (m *Mailchimp) membersURL(listID string) string {
	return fmt.Sprintf("https://%s.api.mailchimp.com/3.0/lists/%s/members", m.dc, url.PathEscape(listID))
}

// Subscribe adds a list member. "Member Exists" is reported as success.
func (m *Mailchimp) Subscribe(ctx context.Context, email string, options map[string]any, consents ...*UserConsent) (Result, error) {
	if err := m.requireKeyAndSecret(); err != nil {
		return Result{}, err
	}
	listID, err := m.requireListID()
	if err != nil {
		return Result{}, err
	}
	if err := ValidateEmail(email); err != nil {
		return Result{}, err
	}

	body := map[string]any{
		"status":        m.status,
		"email_address": email,
	}
	if len(options) > 0 {
		body["merge_fields"] = options
	}
	if consent := firstConsent(consents); consent != nil {
		if consent.IPAddress != "" {
			body["ip_signup"] = consent.IPAddress
		}
		if consent.ConsentFieldName != "" {
			body["marketing_permissions"] = []map[string]any{{
				"marketing_permission_id": consent.ConsentFieldName,
				"enabled":                 consent.ConsentGiven,
			}}
		}
	}

	req, err := m.newJSONRequest(ctx, http.MethodPost, m.membersURL(listID), body)
	if err != nil {
		return Result{}, err
	}
	m.setBasicAuth(req)

	res, err := m.do(PlatformMailchimp, req)
	if err != nil {
		return Result{}, subscribeFailure(PlatformMailchimp, err)
	}

	decoded := res.decode()
	if stringValue(decoded, "title") == "Member Exists" {
		return confirmed(), nil
	}
	if !res.success() {
		return Result{}, subscribeFailure(PlatformMailchimp, m.apiError(res))
	}
	if id, ok := decoded["id"]; ok && id != nil {
		// Member ids are subscriber hashes; only numeric ids are exposed.
		if n, ok := intValue(id); ok {
			return withContactID(n), nil
		}
		return confirmed(), nil
	}
	return Result{}, nil
}

// Unsubscribe flags the list member as unsubscribed. A member unknown to
// the list is already in the desired state.
func (m *Mailchimp) Unsubscribe(ctx context.Context, email string) (bool, error) {
	if err := m.requireKeyAndSecret(); err != nil {
		return false, err
	}
	listID, err := m.requireListID()
	if err != nil {
		return false, err
	}
	if err := ValidateEmail(email); err != nil {
		return false, err
	}

	hash := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	endpoint := m.membersURL(listID) + "/" + hex.EncodeToString(hash[:])

	req, err := m.newJSONRequest(ctx, http.MethodPatch, endpoint, map[string]any{"status": "unsubscribed"})
	if err != nil {
		return false, err
	}
	m.setBasicAuth(req)

	res, err := m.do(PlatformMailchimp, req)
	if err != nil {
		return false, subscribeFailure(PlatformMailchimp, err)
	}
	if res.success() || res.status == http.StatusNotFound {
		return true, nil
	}
	return false, subscribeFailure(PlatformMailchimp, m.apiError(res))
}

// SendTransactionalEmail sends a Mandrill template. templateID is the
// template name; variables become global merge vars.
func (m *Mailchimp) SendTransactionalEmail(ctx context.Context, recipients []EmailAddress, templateID string, variables map[string]any) (string, error) {
	if err := checkTransactionalArgs(recipients, templateID); err != nil {
		return "", err
	}
	if err := m.requireKey(); err != nil {
		return "", err
	}

	to := make([]map[string]any, 0, len(recipients))
	for _, r := range recipients {
		to = append(to, map[string]any{
			"email": r.Email(),
			"name":  r.nameOrNil(),
			"type":  "to",
		})
	}

	mergeVars := make([]map[string]any, 0, len(variables))
	for _, name := range sortedKeys(variables) {
		mergeVars = append(mergeVars, map[string]any{"name": name, "content": variables[name]})
	}

	body := map[string]any{
		"template_name":    templateID,
		"template_content": []any{},
		"message": map[string]any{
			"to":                to,
			"global_merge_vars": mergeVars,
		},
		"key": m.apiKey,
	}

	req, err := m.newJSONRequest(ctx, http.MethodPost, mandrillSendURL, body)
	if err != nil {
		return "", err
	}
	res, err := m.do(PlatformMailchimp, req)
	if err != nil {
		return "", sendFailure(PlatformMailchimp, err)
	}
	if !res.success() {
		return "", sendFailure(PlatformMailchimp, res.apiError("message"))
	}
	return string(res.body), nil
}

// apiError reads Marketing API problem documents: detail, then title.
func (m *Mailchimp) apiError(res *response) *APIResponseError {
	apiErr := res.apiError("detail")
	if apiErr.Message == "" {
		apiErr.Message = stringValue(apiErr.Body, "title")
	}
	return apiErr
}
