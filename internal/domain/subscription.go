package domain

import "time"

// EventKind is the adapter operation an event records.
type EventKind string

const (
	EventSubscribe     EventKind = "subscribe"
	EventUnsubscribe   EventKind = "unsubscribe"
	EventTransactional EventKind = "transactional"
)

// Valid reports whether k is a known kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventSubscribe, EventUnsubscribe, EventTransactional:
		return true
	}
	return false
}

// EventOutcome is the normalized result of the operation.
type EventOutcome string

const (
	// OutcomeCreated: the platform returned a contact id.
	OutcomeCreated EventOutcome = "created"
	// OutcomeExists: confirmed without an id, including "already subscribed".
	OutcomeExists EventOutcome = "exists"
	// OutcomeUnconfirmed: a 2xx answer with no usable signal.
	OutcomeUnconfirmed EventOutcome = "unconfirmed"
	OutcomeRemoved     EventOutcome = "removed"
	OutcomeNotRemoved  EventOutcome = "not_removed"
	OutcomeSent        EventOutcome = "sent"
	OutcomeFailed      EventOutcome = "failed"
)

// SubscriptionEvent is one audited call to a platform adapter.
type SubscriptionEvent struct {
	ID             string       `json:"id" db:"id"`
	Platform       string       `json:"platform" db:"platform"`
	Kind           EventKind    `json:"kind" db:"kind"`
	Email          string       `json:"email,omitempty" db:"email"`
	MD5Hash        string       `json:"md5_hash,omitempty" db:"md5_hash"`
	Outcome        EventOutcome `json:"outcome" db:"outcome"`
	ContactID      int64        `json:"contact_id,omitempty" db:"contact_id"`
	TemplateID     string       `json:"template_id,omitempty" db:"template_id"`
	RecipientCount int          `json:"recipient_count,omitempty" db:"recipient_count"`
	Error          string       `json:"error,omitempty" db:"error"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}
