package subscriber

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestYmlp(doer HTTPDoer) *Ymlp {
	y := NewYmlp(doer)
	y.SetAPIKey("username").SetAPISecret("ymlp-key").SetContactListID("12")
	return y
}

func TestYmlp_Subscribe_RequestShape(t *testing.T) {
	doer := respondWith(http.StatusOK, `{"Code":"0","Output":"1 addresses have been added"}`)
	y := newTestYmlp(doer).SetOverruleUnsubscribedBounced(true)

	consent := NewUserConsent()
	consent.ConsentGiven = true
	consent.ConsentFieldName = "Field4"
	consent.IPAddressFieldName = ""
	consent.ReferrerFieldName = ""
	consent.UsageFieldName = ""

	result, err := y.Subscribe(context.Background(), "y@example.com", map[string]any{"Field2": "Ada", "Field1": "Lovelace"}, consent)
	require.NoError(t, err)
	assert.True(t, result.Subscribed)

	req, body := doer.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "www.ymlp.com", req.URL.Host)
	assert.Equal(t, "/api/Contacts.Add", req.URL.Path)
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
	assert.Equal(t, UserAgent, req.Header.Get("User-Agent"))
	assert.Equal(t,
		"Key=ymlp-key&Username=username&OverruleUnsubscribedBounced=1&Email=y%40example.com&GroupID=12&Output=JSON"+
			"&Field1=Lovelace&Field2=Ada&Field4=1",
		string(body))
}

func TestYmlp_Subscribe_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    Result
		wantErr string
	}{
		{name: "added", status: http.StatusOK, body: `{"Code":"0","Output":"1 addresses have been added"}`, want: Result{Subscribed: true}},
		{name: "numeric code", status: http.StatusOK, body: `{"Code":0,"Output":"ok"}`, want: Result{Subscribed: true}},
		{name: "duplicate code", status: http.StatusOK, body: `{"Code":"3","Output":"Email address already in selected groups"}`, want: Result{Subscribed: true}},
		{name: "duplicate on client error", status: http.StatusBadRequest, body: `{"Output":"Email address already in selected groups"}`, want: Result{Subscribed: true}},
		{name: "other output", status: http.StatusOK, body: `{"Code":"101","Output":"Invalid API key"}`, wantErr: "Invalid API key"},
		{name: "client error", status: http.StatusForbidden, body: `{"Output":"Access denied"}`, wantErr: "Access denied"},
		{name: "no signal", status: http.StatusOK, body: `{}`, want: Result{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doer := respondWith(tt.status, tt.body)
			result, err := newTestYmlp(doer).Subscribe(context.Background(), "y@example.com", nil)
			if tt.wantErr != "" {
				var subErr *SubscribeError
				require.ErrorAs(t, err, &subErr)
				assert.Equal(t, tt.wantErr, subErr.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestYmlp_Subscribe_GroupIDMustBeNumeric(t *testing.T) {
	doer := respondWith(http.StatusOK, `{"Code":"0"}`)
	y := newTestYmlp(doer)
	y.SetContactListID("newsletter")

	_, err := y.Subscribe(context.Background(), "y@example.com", nil)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Zero(t, doer.calls())
}

func TestYmlp_Subscribe_RequiresBothCredentials(t *testing.T) {
	doer := respondWith(http.StatusOK, `{"Code":"0"}`)
	y := NewYmlp(doer)
	y.SetAPIKey("username").SetContactListID("12")

	_, err := y.Subscribe(context.Background(), "y@example.com", nil)
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Zero(t, doer.calls())
}

func TestYmlp_UnsupportedCapabilities(t *testing.T) {
	doer := respondWith(http.StatusOK, `{}`)
	y := newTestYmlp(doer)

	_, err := y.Unsubscribe(context.Background(), "y@example.com")
	assert.ErrorIs(t, err, ErrUnsupportedUnsubscribe)

	_, err = y.SendTransactionalEmail(context.Background(), []EmailAddress{MustEmailAddress("y@example.com", "")}, "1", nil)
	assert.ErrorIs(t, err, ErrUnsupportedTransactional)
	assert.True(t, strings.Contains(err.Error(), "transactional"))

	assert.Zero(t, doer.calls())
}
