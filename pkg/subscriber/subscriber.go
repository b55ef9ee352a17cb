// Package subscriber is a uniform client for email-marketing platforms.
//
// Each platform (Mailchimp, Mailjet, Brevo/SendinBlue, Ymlp, OxiMailing) has
// its own adapter translating the Subscriber contract into one HTTP exchange
// and normalizing the answer: a duplicate contact is a success, a missing
// contact on removal is a success, everything else that is not 2xx is a
// *SubscribeError or *SendError.
//
// Credentials, list ids and per-call arguments are checked before any request
// is built, so configuration mistakes never reach the network. Retries,
// timeouts and connection reuse belong to the injected HTTPDoer.
package subscriber

import "context"

// Subscriber is the operation set every platform adapter implements.
// Setters return the adapter so configuration can be chained; an empty
// value clears the setting. Configure an adapter before sharing it between
// goroutines.
type Subscriber interface {
	// Platform returns the stable platform identifier, e.g. "mailchimp".
	Platform() string

	SetAPIKey(key string) Subscriber
	SetAPISecret(secret string) Subscriber
	SetContactListID(id string) Subscriber

	// Subscribe adds or updates a contact. options are merged as contact
	// attributes using the platform's own key casing; only the first consent
	// is honored.
	Subscribe(ctx context.Context, email string, options map[string]any, consents ...*UserConsent) (Result, error)

	// Unsubscribe removes a contact. Adapters whose platform has no removal
	// endpoint return ErrUnsupportedUnsubscribe without any I/O.
	Unsubscribe(ctx context.Context, email string) (bool, error)

	// SendTransactionalEmail triggers a template send and returns the raw
	// response body. Adapters whose platform has no transactional API return
	// ErrUnsupportedTransactional without any I/O.
	SendTransactionalEmail(ctx context.Context, recipients []EmailAddress, templateID string, variables map[string]any) (string, error)
}

// Result is the normalized outcome of Subscribe.
//
// A positive ContactID means the platform returned the contact id. Subscribed
// without a ContactID means the platform confirmed the contact (including an
// "already subscribed" answer) without exposing an id. The zero Result means
// the platform answered successfully but gave no usable confirmation.
type Result struct {
	ContactID  int64 `json:"contact_id,omitempty"`
	Subscribed bool  `json:"subscribed"`
}

// HasContactID reports whether the platform returned a contact id.
func (r Result) HasContactID() bool { return r.ContactID > 0 }

func confirmed() Result { return Result{Subscribed: true} }

func withContactID(id int64) Result {
	if id <= 0 {
		return confirmed()
	}
	return Result{ContactID: id, Subscribed: true}
}
