package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rezozero/subscribeme/internal/domain"
	"github.com/rezozero/subscribeme/internal/pkg/httputil"
	"github.com/rezozero/subscribeme/internal/service/subscription"
	"github.com/rezozero/subscribeme/pkg/subscriber"
)

// SubscriptionService is the gateway service the handlers drive.
type SubscriptionService interface {
	Platforms() []string
	Subscribe(ctx context.Context, platform, email string, options map[string]any, consent *subscriber.UserConsent) (subscriber.Result, error)
	Unsubscribe(ctx context.Context, platform, email string) (bool, error)
	SendTransactional(ctx context.Context, platform string, recipients []subscriber.EmailAddress, templateID string, variables map[string]any) (string, error)
	Events(ctx context.Context, filter subscription.EventFilter) ([]domain.SubscriptionEvent, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	svc SubscriptionService
}

// NewHandlers creates a new Handlers instance
func NewHandlers(svc SubscriptionService) *Handlers {
	return &Handlers{svc: svc}
}

type consentRequest struct {
	Given     bool       `json:"given"`
	IPAddress string     `json:"ip_address" validate:"omitempty,ip"`
	Date      *time.Time `json:"date"`
	Referrer  string     `json:"referrer" validate:"omitempty,url"`
	Usage     string     `json:"usage"`
}

type subscribeRequest struct {
	Email   string          `json:"email" validate:"required,email"`
	Options map[string]any  `json:"options"`
	Consent *consentRequest `json:"consent"`
}

type subscribeResponse struct {
	Platform   string `json:"platform"`
	Email      string `json:"email"`
	Subscribed bool   `json:"subscribed"`
	ContactID  int64  `json:"contact_id,omitempty"`
}

type recipientRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name"`
}

type transactionalRequest struct {
	Recipients []recipientRequest `json:"recipients" validate:"required,min=1,dive"`
	TemplateID string             `json:"template_id" validate:"required"`
	Variables  map[string]any     `json:"variables"`
}

// ListPlatforms returns the configured platforms.
//
//	GET /api/platforms
func (h *Handlers) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{"platforms": h.svc.Platforms()})
}

// Subscribe adds an address to the platform's list. A newly created contact
// answers 201, an existing or pending one 200.
//
//	POST /api/platforms/{platform}/subscribers
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")

	var req subscribeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	result, err := h.svc.Subscribe(r.Context(), platform, req.Email, req.Options, req.Consent.toUserConsent(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := subscribeResponse{
		Platform:   platform,
		Email:      req.Email,
		Subscribed: result.Subscribed,
		ContactID:  result.ContactID,
	}
	if result.HasContactID() {
		httputil.Created(w, resp)
		return
	}
	httputil.OK(w, resp)
}

// Unsubscribe removes an address from the platform's list.
//
//	DELETE /api/platforms/{platform}/subscribers/{email}
func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		httputil.BadRequest(w, "malformed email in path")
		return
	}

	removed, err := h.svc.Unsubscribe(r.Context(), platform, email)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"platform": platform,
		"email":    email,
		"removed":  removed,
	})
}

// SendTransactional sends a platform template to the given recipients and
// relays the platform's response.
//
//	POST /api/platforms/{platform}/transactional
func (h *Handlers) SendTransactional(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")

	var req transactionalRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	recipients := make([]subscriber.EmailAddress, 0, len(req.Recipients))
	for _, rr := range req.Recipients {
		addr, err := subscriber.NewEmailAddress(rr.Email, rr.Name)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		recipients = append(recipients, addr)
	}

	body, err := h.svc.SendTransactional(r.Context(), platform, recipients, req.TemplateID, req.Variables)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	var response any = body
	if json.Valid([]byte(body)) {
		response = json.RawMessage(body)
	}
	httputil.OK(w, map[string]any{
		"platform": platform,
		"response": response,
	})
}

// ListEvents returns the audit trail, newest first.
//
//	GET /api/events?platform=&kind=&email=&page=&limit=
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := ParsePagination(r, subscription.DefaultEventLimit, subscription.MaxEventLimit)

	events, err := h.svc.Events(r.Context(), subscription.EventFilter{
		Platform: q.Get("platform"),
		Kind:     domain.EventKind(q.Get("kind")),
		Email:    q.Get("email"),
		Limit:    p.Limit,
		Offset:   p.Offset,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, NewPage(events, p, len(events)))
}

// toUserConsent maps the request consent onto the core type. A consent given
// without an IP address records the caller's address.
func (c *consentRequest) toUserConsent(r *http.Request) *subscriber.UserConsent {
	if c == nil {
		return nil
	}
	consent := subscriber.NewUserConsent()
	consent.ConsentGiven = c.Given
	consent.IPAddress = c.IPAddress
	consent.ReferrerURL = c.Referrer
	consent.Usage = c.Usage
	if c.Date != nil {
		consent.ConsentDate = *c.Date
	} else if c.Given {
		consent.ConsentDate = time.Now()
	}
	if consent.IPAddress == "" && c.Given {
		consent.IPAddress = remoteIP(r)
	}
	return consent
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
