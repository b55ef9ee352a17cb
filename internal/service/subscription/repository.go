package subscription

import (
	"context"

	"github.com/rezozero/subscribeme/internal/domain"
)

// Repository defines the data access contract for the audit trail.
type Repository interface {
	// Record stores one event. It assigns ID and CreatedAt when empty.
	Record(ctx context.Context, e *domain.SubscriptionEvent) error

	// List returns events matching the filter, newest first.
	List(ctx context.Context, filter EventFilter) ([]domain.SubscriptionEvent, error)
}

// EventFilter controls filtering and pagination of the audit trail.
type EventFilter struct {
	Platform string
	Kind     domain.EventKind
	Email    string
	Limit    int
	Offset   int
}

const (
	DefaultEventLimit = 50
	MaxEventLimit     = 500
)

// Normalize applies the default and maximum page size.
func (f EventFilter) Normalize() EventFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultEventLimit
	}
	if f.Limit > MaxEventLimit {
		f.Limit = MaxEventLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
