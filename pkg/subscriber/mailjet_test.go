package subscriber

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMailjet(doer HTTPDoer) *Mailjet {
	m := NewMailjet(doer)
	m.SetAPIKey("key").SetAPISecret("secret").SetContactListID("42")
	return m
}

func TestMailjet_Subscribe_ReturnsContactID(t *testing.T) {
	doer := respondWith(http.StatusOK, `{"Total":1,"Data":[{"ContactID":7}]}`)
	m := newTestMailjet(doer)

	result, err := m.Subscribe(context.Background(), "a@example.com", map[string]any{"Name": "A"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.ContactID)
	assert.True(t, result.Subscribed)

	require.Equal(t, 1, doer.calls())
	req, body := doer.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "api.mailjet.com", req.URL.Host)
	assert.Equal(t, "/v3/REST/contactslist/42/managecontact", req.URL.Path)
	assert.Equal(t, UserAgent, req.Header.Get("User-Agent"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	user, pass, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "key", user)
	assert.Equal(t, "secret", pass)
	assert.JSONEq(t, `{"Action":"addnoforce","Email":"a@example.com","Name":"A","Properties":{}}`, string(body))
}

func TestMailjet_Subscribe_NoTotalIsUnconfirmed(t *testing.T) {
	doer := respondWith(http.StatusOK, `{"Total":0,"Data":[]}`)
	m := newTestMailjet(doer)

	result, err := m.Subscribe(context.Background(), "a@example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
}

func TestMailjet_Subscribe_FoldsConsentIntoProperties(t *testing.T) {
	doer := respondWith(http.StatusCreated, `{"Total":1,"Data":[{"ContactID":9}]}`)
	m := newTestMailjet(doer)

	consent := NewUserConsent()
	consent.ConsentGiven = true
	consent.IPAddress = "10.0.0.1"

	_, err := m.Subscribe(context.Background(), "a@example.com", map[string]any{"city": "Lyon"}, consent)
	require.NoError(t, err)

	props, ok := doer.lastJSON(t)["Properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Lyon", props["city"])
	assert.Equal(t, true, props["gdpr_consent"])
	assert.Equal(t, "10.0.0.1", props["gdpr_consent_ip"])
	assert.Contains(t, props, "gdpr_consent_referrer")
	assert.Nil(t, props["gdpr_consent_referrer"])
	assert.NotContains(t, props, "gdpr_consent_date")
}

func TestMailjet_Subscribe_APIError(t *testing.T) {
	doer := respondWith(http.StatusBadRequest, `{"ErrorMessage":"Invalid list","StatusCode":400}`)
	m := newTestMailjet(doer)

	_, err := m.Subscribe(context.Background(), "a@example.com", nil)
	require.Error(t, err)

	var subErr *SubscribeError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, PlatformMailjet, subErr.Platform)
	assert.Equal(t, "Invalid list", subErr.Reason)

	var apiErr *APIResponseError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestMailjet_Subscribe_TransportError(t *testing.T) {
	m := newTestMailjet(failWith(errConnRefused))

	_, err := m.Subscribe(context.Background(), "a@example.com", nil)

	var subErr *SubscribeError
	require.ErrorAs(t, err, &subErr)
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.True(t, errors.Is(err, errConnRefused))
}

func TestMailjet_Guards(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		secret    string
		contactID string
		wantErr   error
	}{
		{name: "missing key", secret: "s", contactID: "1", wantErr: ErrMissingCredentials},
		{name: "missing secret", key: "k", contactID: "1", wantErr: ErrMissingCredentials},
		{name: "missing list id", key: "k", secret: "s", wantErr: ErrMissingListID},
		{name: "blank list id", key: "k", secret: "s", contactID: "  ", wantErr: ErrMissingListID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doer := respondWith(http.StatusOK, `{}`)
			m := NewMailjet(doer)
			m.SetAPIKey(tt.key).SetAPISecret(tt.secret).SetContactListID(tt.contactID)

			_, err := m.Subscribe(context.Background(), "a@example.com", nil)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.Zero(t, doer.calls())
		})
	}
}

func TestMailjet_Subscribe_InvalidEmail(t *testing.T) {
	doer := respondWith(http.StatusOK, `{}`)
	_, err := newTestMailjet(doer).Subscribe(context.Background(), "not-an-email", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Zero(t, doer.calls())
}

func TestMailjet_Unsubscribe(t *testing.T) {
	doer := respondWith(http.StatusOK, `{"Total":1,"Data":[{"ContactID":7}]}`)
	ok, err := newTestMailjet(doer).Unsubscribe(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	_, body := doer.last(t)
	assert.JSONEq(t, `{"Action":"unsub","Email":"a@example.com"}`, string(body))
}

func TestMailjet_Unsubscribe_UnknownContact(t *testing.T) {
	doer := respondWith(http.StatusNotFound, `{"ErrorMessage":"Object not found"}`)
	ok, err := newTestMailjet(doer).Unsubscribe(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMailjet_SendTransactionalEmail(t *testing.T) {
	doer := respondWith(http.StatusOK, `{"Messages":[{"Status":"success"}]}`)
	m := newTestMailjet(doer)

	recipients := []EmailAddress{MustEmailAddress("a@example.com", "A"), MustEmailAddress("b@example.com", "")}
	body, err := m.SendTransactionalEmail(context.Background(), recipients, "1234", map[string]any{"firstname": "A"})
	require.NoError(t, err)
	assert.Equal(t, `{"Messages":[{"Status":"success"}]}`, body)

	req, sent := doer.last(t)
	assert.Equal(t, "/v3.1/send", req.URL.Path)
	assert.JSONEq(t, `{"Messages":[{
		"To":[{"email":"a@example.com","name":"A"},{"email":"b@example.com","name":null}],
		"Variables":{"firstname":"A"},
		"TemplateID":1234,
		"TemplateLanguage":true
	}]}`, string(sent))
}

func TestMailjet_SendTransactionalEmail_Failures(t *testing.T) {
	recipients := []EmailAddress{MustEmailAddress("a@example.com", "")}

	t.Run("empty recipients", func(t *testing.T) {
		doer := respondWith(http.StatusOK, `{}`)
		_, err := newTestMailjet(doer).SendTransactionalEmail(context.Background(), nil, "1", nil)
		assert.ErrorIs(t, err, ErrEmptyRecipients)
		assert.Zero(t, doer.calls())
	})

	t.Run("non numeric template", func(t *testing.T) {
		doer := respondWith(http.StatusOK, `{}`)
		_, err := newTestMailjet(doer).SendTransactionalEmail(context.Background(), recipients, "welcome", nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Zero(t, doer.calls())
	})

	t.Run("missing credentials", func(t *testing.T) {
		doer := respondWith(http.StatusOK, `{}`)
		_, err := NewMailjet(doer).SendTransactionalEmail(context.Background(), recipients, "1", nil)
		assert.ErrorIs(t, err, ErrMissingCredentials)
		assert.Zero(t, doer.calls())
	})

	t.Run("api error", func(t *testing.T) {
		doer := respondWith(http.StatusUnauthorized, `{"ErrorMessage":"API key authentication/authorization failure"}`)
		_, err := newTestMailjet(doer).SendTransactionalEmail(context.Background(), recipients, "1", nil)
		var sendErr *SendError
		require.ErrorAs(t, err, &sendErr)
		assert.Equal(t, "API key authentication/authorization failure", sendErr.Reason)
	})
}
