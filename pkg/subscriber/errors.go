package subscriber

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by an adapter either wraps one of these
// sentinels or is a *SubscribeError / *SendError.
var (
	ErrConfiguration         = errors.New("configuration error")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrUnsupportedCapability = errors.New("unsupported capability")
)

// Configuration failures, raised before any request is built.
var (
	ErrMissingCredentials  = fmt.Errorf("%w: check API credentials", ErrConfiguration)
	ErrMissingListID       = fmt.Errorf("%w: you must add a contact list ID before subscribing user", ErrConfiguration)
	ErrDoubleOptInTemplate = fmt.Errorf("%w: you must set DOI templateId before subscribing user", ErrConfiguration)
	ErrDoubleOptInRedirect = fmt.Errorf("%w: you must set DOI redirectionUrl before subscribing user", ErrConfiguration)
)

// Argument failures, raised before any request is built.
var (
	ErrInvalidEmail    = fmt.Errorf("%w: email is not valid", ErrInvalidArgument)
	ErrEmptyRecipients = fmt.Errorf("%w: emails information missing", ErrInvalidArgument)
	ErrEmptyTemplateID = fmt.Errorf("%w: template id missing", ErrInvalidArgument)
	ErrUnknownPlatform = fmt.Errorf("%w: no subscriber found", ErrInvalidArgument)
)

// Capability failures.
var (
	ErrUnsupportedUnsubscribe    = fmt.Errorf("%w: the platform does not have an unsubscribe endpoint", ErrUnsupportedCapability)
	ErrUnsupportedTransactional = fmt.Errorf("%w: the platform does not support transactional email", ErrUnsupportedCapability)
)

// TransportError reports that the HTTP collaborator did not produce a
// response: the platform was never reached.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIResponseError reports that the platform answered with a non-success
// status. Message is extracted from the decoded body when the platform
// provides one.
type APIResponseError struct {
	StatusCode int
	Message    string
	Body       map[string]any
}

func (e *APIResponseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api response error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api response error (status %d)", e.StatusCode)
}

// SubscribeError is returned by Subscribe and Unsubscribe when the exchange
// failed. Err is a *TransportError or an *APIResponseError when the cause is
// known.
type SubscribeError struct {
	Platform string
	Reason   string
	Err      error
}

func (e *SubscribeError) Error() string {
	if e.Reason != "" {
		return "cannot subscribe email to platform: " + e.Reason
	}
	return "cannot subscribe email to platform"
}

func (e *SubscribeError) Unwrap() error { return e.Err }

// SendError is returned by SendTransactionalEmail when the exchange failed.
type SendError struct {
	Platform string
	Reason   string
	Err      error
}

func (e *SendError) Error() string {
	if e.Reason != "" {
		return "cannot send transactional email to platform: " + e.Reason
	}
	return "cannot send transactional email to platform"
}

func (e *SendError) Unwrap() error { return e.Err }

func subscribeFailure(platform string, err error) error {
	return &SubscribeError{Platform: platform, Reason: failureReason(err), Err: err}
}

func sendFailure(platform string, err error) error {
	return &SendError{Platform: platform, Reason: failureReason(err), Err: err}
}

// failureReason is the platform's message when it answered, or the
// transport cause when it did not.
func failureReason(err error) string {
	var apiErr *APIResponseError
	var tErr *TransportError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.As(err, &tErr):
		return tErr.Err.Error()
	case err != nil:
		return err.Error()
	}
	return ""
}
