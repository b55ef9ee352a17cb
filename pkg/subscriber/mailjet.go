package subscriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

const PlatformMailjet = "mailjet"

const mailjetSendURL = "https://api.mailjet.com/v3.1/send"

// Mailjet manages list contacts through the v3 REST API and sends templates
// through Send API v3.1. Both use basic auth key:secret.
type Mailjet struct {
	client
}

func NewMailjet(httpClient HTTPDoer) *Mailjet {
	return &Mailjet{client: newClient(httpClient)}
}

func (m *Mailjet) Platform() string { return PlatformMailjet }

func (m *Mailjet) SetAPIKey(key string) Subscriber { m.apiKey = key; return m }

func (m *Mailjet) SetAPISecret(secret string) Subscriber { m.apiSecret = secret; return m }

func (m *Mailjet) SetContactListID(id string) Subscriber { m.contactListID = id; return m }

func (m *Mailjet) manageContactURL(listID string) string {
	return fmt.Sprintf("https://api.mailjet.com/v3/REST/contactslist/%s/managecontact", url.PathEscape(listID))
}

// Subscribe adds the contact without forcing a re-subscription. The "Name"
// option is the contact name; every other option is a contact property.
func (m *Mailjet) Subscribe(ctx context.Context, email string, options map[string]any, consents ...*UserConsent) (Result, error) {
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

	properties := foldConsent(options, consents)
	name, hasName := properties["Name"]
	if hasName {
		delete(properties, "Name")
	}

	body := map[string]any{
		"Action":     "addnoforce",
		"Email":      email,
		"Name":       name,
		"Properties": properties,
	}
	return m.manageContact(ctx, listID, body)
}

// Unsubscribe marks the contact as unsubscribed from the list.
func (m *Mailjet) Unsubscribe(ctx context.Context, email string) (bool, error) {
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

	result, err := m.manageContact(ctx, listID, map[string]any{
		"Action": "unsub",
		"Email":  email,
	})
	if err != nil {
		var apiErr *APIResponseError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return true, nil
		}
		return false, err
	}
	return result.Subscribed, nil
}

func (m *Mailjet) manageContact(ctx context.Context, listID string, body map[string]any) (Result, error) {
	req, err := m.newJSONRequest(ctx, http.MethodPost, m.manageContactURL(listID), body)
	if err != nil {
		return Result{}, err
	}
	m.setBasicAuth(req)

	res, err := m.do(PlatformMailjet, req)
	if err != nil {
		return Result{}, subscribeFailure(PlatformMailjet, err)
	}
	if !res.success() {
		apiErr := res.apiError("ErrorMessage")
		if apiErr.Message == "" {
			apiErr.Message = stringValue(apiErr.Body, "StatusText")
		}
		return Result{}, subscribeFailure(PlatformMailjet, apiErr)
	}

	decoded := res.decode()
	total, _ := intValue(decoded["Total"])
	if total < 1 {
		return Result{}, nil
	}
	data, _ := decoded["Data"].([]any)
	if len(data) == 0 {
		return confirmed(), nil
	}
	first, _ := data[0].(map[string]any)
	if id, ok := intValue(first["ContactID"]); ok {
		return withContactID(id), nil
	}
	return confirmed(), nil
}

// SendTransactionalEmail sends a Mailjet template with templating language
// enabled. templateID must be numeric.
func (m *Mailjet) SendTransactionalEmail(ctx context.Context, recipients []EmailAddress, templateID string, variables map[string]any) (string, error) {
	if err := checkTransactionalArgs(recipients, templateID); err != nil {
		return "", err
	}
	id, err := parseTemplateID(templateID)
	if err != nil {
		return "", err
	}
	if err := m.requireKeyAndSecret(); err != nil {
		return "", err
	}

	to := make([]map[string]any, 0, len(recipients))
	for _, r := range recipients {
		to = append(to, map[string]any{"email": r.Email(), "name": r.nameOrNil()})
	}
	if variables == nil {
		variables = map[string]any{}
	}

	body := map[string]any{
		"Messages": []map[string]any{{
			"To":               to,
			"Variables":        variables,
			"TemplateID":       id,
			"TemplateLanguage": true,
		}},
	}

	req, err := m.newJSONRequest(ctx, http.MethodPost, mailjetSendURL, body)
	if err != nil {
		return "", err
	}
	m.setBasicAuth(req)

	res, err := m.do(PlatformMailjet, req)
	if err != nil {
		return "", sendFailure(PlatformMailjet, err)
	}
	if !res.success() {
		return "", sendFailure(PlatformMailjet, res.apiError("ErrorMessage"))
	}
	return string(res.body), nil
}
