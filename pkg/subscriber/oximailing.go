package subscriber

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const PlatformOxiMailing = "oximailing"

// OxiMailing import modes for contacts already on the list.
const (
	OxiMailingModeIgnored = "ignored"
	OxiMailingModeUpdated = "updated"
)

// OxiMailing uses basic auth key:secret and form-encoded contact batches.
// The "mode" option selects how an existing contact is treated and defaults
// to OxiMailingModeIgnored.
type OxiMailing struct {
	client
}

func NewOxiMailing(httpClient HTTPDoer) *OxiMailing {
	return &OxiMailing{client: newClient(httpClient)}
}

func (o *OxiMailing) Platform() string { return PlatformOxiMailing }

func (o *OxiMailing) SetAPIKey(key string) Subscriber { o.apiKey = key; return o }

func (o *OxiMailing) SetAPISecret(secret string) Subscriber { o.apiSecret = secret; return o }

func (o *OxiMailing) SetContactListID(id string) Subscriber { o.contactListID = id; return o }

func (o *OxiMailing) contactsURL(listID string) string {
	return fmt.Sprintf("https://api.oximailing.com/lists/%s/contacts", url.PathEscape(listID))
}

// Subscribe adds one contact. The answer counts added, ignored and updated
// contacts; any of them equal to 1 means the address is on the list.
func (o *OxiMailing) Subscribe(ctx context.Context, email string, options map[string]any, _ ...*UserConsent) (Result, error) {
	if err := o.requireKeyAndSecret(); err != nil {
		return Result{}, err
	}
	listID, err := o.requireListID()
	if err != nil {
		return Result{}, err
	}
	if err := ValidateEmail(email); err != nil {
		return Result{}, err
	}

	mode := OxiMailingModeIgnored
	if m, ok := options["mode"].(string); ok && m != "" {
		mode = m
	}
	form := newFormParams()
	form.set("mode", mode)
	form.setValue("contacts", []string{email})

	req, err := o.newFormRequest(ctx, http.MethodPost, o.contactsURL(listID), form.encode())
	if err != nil {
		return Result{}, err
	}
	o.setBasicAuth(req)

	res, err := o.do(PlatformOxiMailing, req)
	if err != nil {
		return Result{}, subscribeFailure(PlatformOxiMailing, err)
	}
	if !res.success() {
		return Result{}, subscribeFailure(PlatformOxiMailing, res.apiError("message"))
	}
	if countsOne(res.decode(), "added", "ignored", "updated") {
		return confirmed(), nil
	}
	return Result{}, nil
}

// Unsubscribe deletes the contact from the list. A contact the list does
// not know is reported as not_found and counts as removed.
func (o *OxiMailing) Unsubscribe(ctx context.Context, email string) (bool, error) {
	if err := o.requireKeyAndSecret(); err != nil {
		return false, err
	}
	listID, err := o.requireListID()
	if err != nil {
		return false, err
	}
	if err := ValidateEmail(email); err != nil {
		return false, err
	}

	form := newFormParams()
	form.setValue("contacts", []string{email})

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, o.contactsURL(listID)+"?"+form.encode(), nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	o.setBasicAuth(req)

	res, err := o.do(PlatformOxiMailing, req)
	if err != nil {
		return false, subscribeFailure(PlatformOxiMailing, err)
	}
	if !res.success() {
		return false, subscribeFailure(PlatformOxiMailing, res.apiError("message"))
	}
	return countsOne(res.decode(), "deleted", "not_found"), nil
}

func (o *OxiMailing) SendTransactionalEmail(context.Context, []EmailAddress, string, map[string]any) (string, error) {
	return "", ErrUnsupportedTransactional
}

func countsOne(body map[string]any, keys ...string) bool {
	for _, k := range keys {
		if n, ok := intValue(body[k]); ok && n == 1 {
			return true
		}
	}
	return false
}
