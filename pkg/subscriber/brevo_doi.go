package subscriber

import "context"

const brevoDoubleOptInURL = "https://api.brevo.com/v3/contacts/doubleOptinConfirmation"

// BrevoDoubleOptIn subscribes through Brevo's double opt-in flow: Brevo
// emails the confirmation template and adds the contact once the link is
// followed. Everything except Subscribe is delegated to the wrapped Brevo
// adapter.
type BrevoDoubleOptIn struct {
	*Brevo
	templateID     int64
	redirectionURL string
}

func NewBrevoDoubleOptIn(httpClient HTTPDoer) *BrevoDoubleOptIn {
	return &BrevoDoubleOptIn{Brevo: NewBrevo(httpClient)}
}

// NewSendinBlueDoubleOptIn is the legacy-named double opt-in adapter.
//
// Deprecated: use NewBrevoDoubleOptIn.
func NewSendinBlueDoubleOptIn(httpClient HTTPDoer) *BrevoDoubleOptIn {
	return &BrevoDoubleOptIn{Brevo: NewSendinBlue(httpClient)}
}

func (d *BrevoDoubleOptIn) SetAPIKey(key string) Subscriber { d.Brevo.SetAPIKey(key); return d }

func (d *BrevoDoubleOptIn) SetAPISecret(secret string) Subscriber {
	d.Brevo.SetAPISecret(secret)
	return d
}

func (d *BrevoDoubleOptIn) SetContactListID(id string) Subscriber {
	d.Brevo.SetContactListID(id)
	return d
}

// SetTemplateID selects the confirmation email template. Zero clears it.
func (d *BrevoDoubleOptIn) SetTemplateID(id int64) *BrevoDoubleOptIn {
	d.templateID = id
	return d
}

// SetRedirectionURL is where the contact lands after confirming.
func (d *BrevoDoubleOptIn) SetRedirectionURL(u string) *BrevoDoubleOptIn {
	d.redirectionURL = u
	return d
}

func (d *BrevoDoubleOptIn) TemplateID() int64 { return d.templateID }

func (d *BrevoDoubleOptIn) RedirectionURL() string { return d.redirectionURL }

// Subscribe asks Brevo to send the confirmation email. A successful answer
// carries no contact id.
func (d *BrevoDoubleOptIn) Subscribe(ctx context.Context, email string, options map[string]any, consents ...*UserConsent) (Result, error) {
	if d.templateID <= 0 {
		return Result{}, ErrDoubleOptInTemplate
	}
	if d.redirectionURL == "" {
		return Result{}, ErrDoubleOptInRedirect
	}
	if err := d.requireKey(); err != nil {
		return Result{}, err
	}
	listIDs, err := d.ListIDs()
	if err != nil {
		return Result{}, err
	}
	if err := ValidateEmail(email); err != nil {
		return Result{}, err
	}

	body := map[string]any{
		"email":          email,
		"includeListIds": listIDs,
		"attributes":     foldConsent(options, consents),
		"templateId":     d.templateID,
		"redirectionUrl": d.redirectionURL,
	}
	return d.createContact(ctx, brevoDoubleOptInURL, body)
}
