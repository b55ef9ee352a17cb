package subscriber

import "time"

// Default attribute names used when folding a consent into a contact.
const (
	DefaultConsentFieldName   = "gdpr_consent"
	DefaultDateFieldName      = "gdpr_consent_date"
	DefaultIPAddressFieldName = "gdpr_consent_ip"
	DefaultReferrerFieldName  = "gdpr_consent_referrer"
	DefaultUsageFieldName     = "gdpr_consent_usage"
)

// ConsentDateLayout is the format consent dates are sent in.
const ConsentDateLayout = "2006-01-02 15:04:05"

// UserConsent is a GDPR consent record. The *FieldName values name the
// contact attribute each value is written to; an empty field name suppresses
// that attribute.
type UserConsent struct {
	ConsentGiven bool
	IPAddress    string
	ConsentDate  time.Time
	ReferrerURL  string
	Usage        string

	ConsentFieldName   string
	DateFieldName      string
	IPAddressFieldName string
	ReferrerFieldName  string
	UsageFieldName     string
}

// NewUserConsent returns a consent with the conventional field names.
func NewUserConsent() *UserConsent {
	return &UserConsent{
		ConsentFieldName:   DefaultConsentFieldName,
		DateFieldName:      DefaultDateFieldName,
		IPAddressFieldName: DefaultIPAddressFieldName,
		ReferrerFieldName:  DefaultReferrerFieldName,
		UsageFieldName:     DefaultUsageFieldName,
	}
}

type attribute struct {
	key   string
	value any
}

// attributes lists the consent values in a stable order. The date is only
// listed when one was recorded.
func (c *UserConsent) attributes() []attribute {
	if c == nil {
		return nil
	}
	var attrs []attribute
	if c.ConsentFieldName != "" {
		attrs = append(attrs, attribute{c.ConsentFieldName, c.ConsentGiven})
	}
	if c.DateFieldName != "" && !c.ConsentDate.IsZero() {
		attrs = append(attrs, attribute{c.DateFieldName, c.ConsentDate.Format(ConsentDateLayout)})
	}
	if c.IPAddressFieldName != "" {
		attrs = append(attrs, attribute{c.IPAddressFieldName, optional(c.IPAddress)})
	}
	if c.ReferrerFieldName != "" {
		attrs = append(attrs, attribute{c.ReferrerFieldName, optional(c.ReferrerURL)})
	}
	if c.UsageFieldName != "" {
		attrs = append(attrs, attribute{c.UsageFieldName, optional(c.Usage)})
	}
	return attrs
}

// firstConsent returns the single consent honored per call.
func firstConsent(consents []*UserConsent) *UserConsent {
	if len(consents) == 0 {
		return nil
	}
	return consents[0]
}

// foldConsent copies options into a fresh attribute map and adds the
// first consent's attributes.
func foldConsent(options map[string]any, consents []*UserConsent) map[string]any {
	attrs := make(map[string]any, len(options)+5)
	for k, v := range options {
		attrs[k] = v
	}
	for _, a := range firstConsent(consents).attributes() {
		attrs[a.key] = a.value
	}
	return attrs
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
