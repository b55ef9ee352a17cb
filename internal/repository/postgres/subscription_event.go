package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rezozero/subscribeme/internal/domain"
	"github.com/rezozero/subscribeme/internal/service/subscription"
)

// SubscriptionEventRepo implements subscription.Repository against PostgreSQL.
type SubscriptionEventRepo struct{ db *sql.DB }

// NewSubscriptionEventRepo creates a Postgres-backed event repository.
func NewSubscriptionEventRepo(db *sql.DB) *SubscriptionEventRepo {
	return &SubscriptionEventRepo{db: db}
}

func (r *SubscriptionEventRepo) Record(ctx context.Context, e *domain.SubscriptionEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscription_events
			(id, platform, kind, email, md5_hash, outcome, contact_id, template_id, recipient_count, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.Platform, string(e.Kind), nullString(e.Email), nullString(e.MD5Hash), string(e.Outcome),
		nullInt64(e.ContactID), nullString(e.TemplateID), e.RecipientCount, nullString(e.Error), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("record subscription event: %w", err)
	}
	return nil
}

func (r *SubscriptionEventRepo) List(ctx context.Context, f subscription.EventFilter) ([]domain.SubscriptionEvent, error) {
	var (
		where []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if f.Platform != "" {
		add("platform", f.Platform)
	}
	if f.Kind != "" {
		add("kind", string(f.Kind))
	}
	if f.Email != "" {
		add("email", f.Email)
	}

	query := `
		SELECT id, platform, kind, email, md5_hash, outcome, contact_id, template_id, recipient_count, error, created_at
		FROM subscription_events`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf("\n\t\tORDER BY created_at DESC\n\t\tLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscription events: %w", err)
	}
	defer rows.Close()

	out := []domain.SubscriptionEvent{}
	for rows.Next() {
		var (
			e                                   domain.SubscriptionEvent
			email, hash, templateID, errMessage sql.NullString
			contactID                           sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Platform, &e.Kind, &email, &hash, &e.Outcome,
			&contactID, &templateID, &e.RecipientCount, &errMessage, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription event: %w", err)
		}
		e.Email = email.String
		e.MD5Hash = hash.String
		e.ContactID = contactID.Int64
		e.TemplateID = templateID.String
		e.Error = errMessage.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscription events: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n > 0}
}
