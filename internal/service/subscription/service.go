package subscription

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rezozero/subscribeme/internal/domain"
	"github.com/rezozero/subscribeme/internal/pkg/distlock"
	"github.com/rezozero/subscribeme/internal/pkg/logger"
	"github.com/rezozero/subscribeme/pkg/subscriber"
)

// LockFunc returns a fresh lock for key.
type LockFunc func(key string) distlock.DistLock

// Service runs adapter operations for the gateway. It is safe for
// concurrent use once constructed.
type Service struct {
	adapters map[string]subscriber.Subscriber
	repo     Repository
	newLock  LockFunc
	now      func() time.Time
}

// NewService creates a service over the configured adapters. repo may be
// nil to disable the audit trail; newLock may be nil to disable locking.
func NewService(adapters map[string]subscriber.Subscriber, repo Repository, newLock LockFunc) *Service {
	if newLock == nil {
		newLock = func(string) distlock.DistLock { return distlock.NewLock(nil, nil, "", 0) }
	}
	return &Service{
		adapters: adapters,
		repo:     repo,
		newLock:  newLock,
		now:      time.Now,
	}
}

// Platforms returns the configured platform names, sorted.
func (s *Service) Platforms() []string {
	names := make([]string, 0, len(s.adapters))
	for name := range s.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Service) adapter(platform string) (subscriber.Subscriber, string, error) {
	name := strings.ToLower(strings.TrimSpace(platform))
	a, ok := s.adapters[name]
	if !ok {
		return nil, name, fmt.Errorf("%w for %q", subscriber.ErrUnknownPlatform, platform)
	}
	return a, name, nil
}

// Subscribe adds email to the platform's configured list. consent may be nil.
func (s *Service) Subscribe(ctx context.Context, platform, email string, options map[string]any, consent *subscriber.UserConsent) (subscriber.Result, error) {
	a, name, err := s.adapter(platform)
	if err != nil {
		return subscriber.Result{}, err
	}
	email = strings.TrimSpace(email)
	if err := subscriber.ValidateEmail(email); err != nil {
		return subscriber.Result{}, err
	}

	release, err := s.lockContact(ctx, name, email)
	if err != nil {
		return subscriber.Result{}, err
	}
	defer release()

	var consents []*subscriber.UserConsent
	if consent != nil {
		consents = append(consents, consent)
	}

	start := s.now()
	result, err := a.Subscribe(ctx, email, options, consents...)

	event := s.newEvent(name, domain.EventSubscribe, email)
	event.ContactID = result.ContactID
	event.Outcome = subscribeOutcome(result, err)
	if err != nil {
		event.Error = err.Error()
		logger.Warn("subscribe failed", "platform", name, "email", email, "error", err)
	} else {
		logger.Info("subscribed", "platform", name, "email", email,
			"outcome", string(event.Outcome), "contact_id", result.ContactID,
			"duration_ms", s.now().Sub(start).Milliseconds())
	}
	s.record(ctx, event)

	return result, err
}

// Unsubscribe removes email from the platform's configured list.
func (s *Service) Unsubscribe(ctx context.Context, platform, email string) (bool, error) {
	a, name, err := s.adapter(platform)
	if err != nil {
		return false, err
	}
	email = strings.TrimSpace(email)
	if err := subscriber.ValidateEmail(email); err != nil {
		return false, err
	}

	release, err := s.lockContact(ctx, name, email)
	if err != nil {
		return false, err
	}
	defer release()

	removed, err := a.Unsubscribe(ctx, email)

	// Unsupported platforms fail before any I/O; there is nothing to audit.
	if errors.Is(err, subscriber.ErrUnsupportedCapability) {
		return false, err
	}

	event := s.newEvent(name, domain.EventUnsubscribe, email)
	switch {
	case err != nil:
		event.Outcome = domain.OutcomeFailed
		event.Error = err.Error()
		logger.Warn("unsubscribe failed", "platform", name, "email", email, "error", err)
	case removed:
		event.Outcome = domain.OutcomeRemoved
		logger.Info("unsubscribed", "platform", name, "email", email)
	default:
		event.Outcome = domain.OutcomeNotRemoved
		logger.Info("unsubscribe not confirmed", "platform", name, "email", email)
	}
	s.record(ctx, event)

	return removed, err
}

// SendTransactional sends templateID to recipients and returns the
// platform's raw response body.
func (s *Service) SendTransactional(ctx context.Context, platform string, recipients []subscriber.EmailAddress, templateID string, variables map[string]any) (string, error) {
	a, name, err := s.adapter(platform)
	if err != nil {
		return "", err
	}

	body, err := a.SendTransactionalEmail(ctx, recipients, templateID, variables)
	if errors.Is(err, subscriber.ErrUnsupportedCapability) || errors.Is(err, subscriber.ErrInvalidArgument) {
		return "", err
	}

	emails := make([]string, 0, len(recipients))
	for _, r := range recipients {
		emails = append(emails, r.Email())
	}

	event := s.newEvent(name, domain.EventTransactional, "")
	event.TemplateID = templateID
	event.RecipientCount = len(recipients)
	if err != nil {
		event.Outcome = domain.OutcomeFailed
		event.Error = err.Error()
		logger.Warn("transactional send failed", "platform", name,
			"template_id", templateID, "recipients", strings.Join(emails, ","), "error", err)
	} else {
		event.Outcome = domain.OutcomeSent
		logger.Info("transactional email sent", "platform", name,
			"template_id", templateID, "recipients", strings.Join(emails, ","))
	}
	s.record(ctx, event)

	return body, err
}

// Events returns the audit trail matching filter. Without a repository the
// trail is always empty.
func (s *Service) Events(ctx context.Context, filter EventFilter) ([]domain.SubscriptionEvent, error) {
	if s.repo == nil {
		return []domain.SubscriptionEvent{}, nil
	}
	filter = filter.Normalize()
	filter.Platform = strings.ToLower(strings.TrimSpace(filter.Platform))
	filter.Email = strings.ToLower(strings.TrimSpace(filter.Email))
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown event kind %q", subscriber.ErrInvalidArgument, filter.Kind)
	}
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	if events == nil {
		events = []domain.SubscriptionEvent{}
	}
	return events, nil
}

// lockContact takes the per-contact lock and returns its release func.
func (s *Service) lockContact(ctx context.Context, platform, email string) (func(), error) {
	key := "subscribe:" + platform + ":" + strings.ToLower(email)
	lock := s.newLock(key)

	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring contact lock: %w", err)
	}
	if !ok {
		logger.Info("contact busy", "platform", platform, "email", email)
		return nil, ErrContactBusy
	}
	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("releasing contact lock failed", "platform", platform, "email", email, "error", err)
		}
	}, nil
}

func (s *Service) newEvent(platform string, kind domain.EventKind, email string) *domain.SubscriptionEvent {
	e := &domain.SubscriptionEvent{
		Platform:  platform,
		Kind:      kind,
		CreatedAt: s.now().UTC(),
	}
	if email != "" {
		e.Email = strings.ToLower(email)
		hash := md5.Sum([]byte(e.Email))
		e.MD5Hash = hex.EncodeToString(hash[:])
	}
	return e
}

func (s *Service) record(ctx context.Context, e *domain.SubscriptionEvent) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Record(context.WithoutCancel(ctx), e); err != nil {
		logger.Error("recording subscription event failed",
			"platform", e.Platform, "kind", string(e.Kind), "error", err)
	}
}

func subscribeOutcome(r subscriber.Result, err error) domain.EventOutcome {
	switch {
	case err != nil:
		return domain.OutcomeFailed
	case r.HasContactID():
		return domain.OutcomeCreated
	case r.Subscribed:
		return domain.OutcomeExists
	default:
		return domain.OutcomeUnconfirmed
	}
}
