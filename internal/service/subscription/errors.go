package subscription

import "errors"

// Sentinel errors for the subscription service layer.
var (
	// ErrContactBusy means another call holds the contact's lock.
	ErrContactBusy = errors.New("another operation on this contact is in progress")
)
