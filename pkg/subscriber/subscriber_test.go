package subscriber

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// EmailAddress
// =============================================================================

func TestNewEmailAddress(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{email: "a@example.com"},
		{email: "  a.b+tag@sub.example.org  "},
		{email: "", wantErr: true},
		{email: "not-an-email", wantErr: true},
		{email: "a@", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			addr, err := NewEmailAddress(tt.email, "Name")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEmail)
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.NotContains(t, addr.Email(), " ")
			assert.Equal(t, "Name", addr.Name())
		})
	}
}

func TestEmailAddress_String(t *testing.T) {
	assert.Equal(t, "a@example.com", MustEmailAddress("a@example.com", "").String())
	assert.Equal(t, "Ada <a@example.com>", MustEmailAddress("a@example.com", "Ada").String())
}

func TestMustEmailAddress_Panics(t *testing.T) {
	assert.Panics(t, func() { MustEmailAddress("nope", "") })
}

// =============================================================================
// Result
// =============================================================================

func TestResult(t *testing.T) {
	assert.False(t, Result{}.HasContactID())
	assert.False(t, Result{}.Subscribed)
	assert.Equal(t, Result{Subscribed: true}, withContactID(0))
	assert.Equal(t, Result{ContactID: 4, Subscribed: true}, withContactID(4))
}

// =============================================================================
// Errors
// =============================================================================

func TestErrorClasses(t *testing.T) {
	tests := []struct {
		err   error
		class error
	}{
		{ErrMissingCredentials, ErrConfiguration},
		{ErrMissingListID, ErrConfiguration},
		{ErrDoubleOptInTemplate, ErrConfiguration},
		{ErrDoubleOptInRedirect, ErrConfiguration},
		{ErrInvalidEmail, ErrInvalidArgument},
		{ErrEmptyRecipients, ErrInvalidArgument},
		{ErrEmptyTemplateID, ErrInvalidArgument},
		{ErrUnknownPlatform, ErrInvalidArgument},
		{ErrUnsupportedUnsubscribe, ErrUnsupportedCapability},
		{ErrUnsupportedTransactional, ErrUnsupportedCapability},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.class)
		})
	}
}

func TestSubscribeFailure_DistinguishesCause(t *testing.T) {
	apiErr := &APIResponseError{StatusCode: http.StatusBadRequest, Message: "bad list"}
	err := subscribeFailure(PlatformBrevo, fmt.Errorf("wrapped: %w", apiErr))

	var subErr *SubscribeError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "bad list", subErr.Reason)
	assert.Equal(t, "cannot subscribe email to platform: bad list", err.Error())

	var tErr *TransportError
	assert.False(t, errors.As(err, &tErr))

	transport := subscribeFailure(PlatformBrevo, &TransportError{Method: "POST", URL: "https://x", Err: errConnRefused})
	require.ErrorAs(t, transport, &tErr)
	assert.ErrorIs(t, transport, errConnRefused)
}

func TestSendError_Message(t *testing.T) {
	assert.Equal(t, "cannot send transactional email to platform", (&SendError{}).Error())
	assert.Equal(t, "cannot send transactional email to platform: nope", (&SendError{Reason: "nope"}).Error())
}

// =============================================================================
// Form encoding
// =============================================================================

func TestFormParams_Encode(t *testing.T) {
	f := newFormParams()
	f.set("b", "2")
	f.set("a", "1")
	f.setValue("flag", false)
	f.setValue("skip", nil)
	f.setValue("list", []string{"x", "y"})
	f.setValue("nested", map[string]any{"z": 1, "k": true})
	f.set("b", "3")

	assert.Equal(t, "b=3&a=1&flag=0&list%5B0%5D=x&list%5B1%5D=y&nested%5Bk%5D=1&nested%5Bz%5D=1", f.encode())

	v, ok := f.get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	_, ok = f.get("skip")
	assert.False(t, ok)
}

// =============================================================================
// Factory
// =============================================================================

func TestFactory_CreateFor(t *testing.T) {
	f := NewFactory(respondWith(http.StatusOK, `{}`))

	tests := []struct {
		name     string
		platform string
		want     any
	}{
		{name: "mailjet", platform: "mailjet", want: &Mailjet{}},
		{name: "mailchimp upper case", platform: "MailChimp", want: &Mailchimp{}},
		{name: "brevo", platform: "brevo", want: &Brevo{}},
		{name: "sendinblue alias", platform: " SendinBlue ", want: &Brevo{}},
		{name: "brevo doi", platform: "brevo-doi", want: &BrevoDoubleOptIn{}},
		{name: "sendinblue doi", platform: "sendinblue-doi", want: &BrevoDoubleOptIn{}},
		{name: "ymlp", platform: "YMLP", want: &Ymlp{}},
		{name: "oximailing", platform: "oximailing", want: &OxiMailing{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := f.CreateFor(tt.platform)
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestFactory_AliasesKeepPlatformIdentity(t *testing.T) {
	f := NewFactory(nil)

	brevo, err := f.CreateFor("brevo")
	require.NoError(t, err)
	assert.Equal(t, PlatformBrevo, brevo.Platform())

	legacy, err := f.CreateFor("sendinblue")
	require.NoError(t, err)
	assert.Equal(t, PlatformSendinBlue, legacy.Platform())
}

func TestFactory_UnknownPlatform(t *testing.T) {
	_, err := NewFactory(nil).CreateFor("mailgun")
	assert.ErrorIs(t, err, ErrUnknownPlatform)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), `"mailgun"`)
}

func TestFactory_InjectsTransport(t *testing.T) {
	doer := respondWith(http.StatusOK, `{"Total":1,"Data":[{"ContactID":3}]}`)
	s, err := NewFactory(doer).CreateFor("mailjet")
	require.NoError(t, err)
	s.SetAPIKey("k").SetAPISecret("s").SetContactListID("1")

	_, err = s.Subscribe(t.Context(), "a@example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, doer.calls())
}

func TestRegister(t *testing.T) {
	Register("Custom-Mailjet", func(c HTTPDoer) Subscriber { return NewMailjet(c) })
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, "custom-mailjet")
		registryMu.Unlock()
	})

	assert.Contains(t, Platforms(), "custom-mailjet")
	s, err := NewFactory(nil).CreateFor("custom-mailjet")
	require.NoError(t, err)
	assert.Equal(t, PlatformMailjet, s.Platform())
}

func TestPlatforms_Sorted(t *testing.T) {
	names := Platforms()
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "brevo-doi")
	assert.Contains(t, names, "oximailing")
}
