package subscriber

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const PlatformYmlp = "ymlp"

const (
	ymlpContactsAddURL = "https://www.ymlp.com/api/Contacts.Add"

	ymlpCodeAdded     = "0"
	ymlpCodeDuplicate = "3"
	ymlpAlreadyInList = "Email address already in selected groups"
)

// Ymlp authenticates in the form body: the API key is the account username
// and the API secret is the Ymlp API key. The contact list id is the
// numeric group id.
type Ymlp struct {
	client
	overruleUnsubscribedBounced bool
}

func NewYmlp(httpClient HTTPDoer) *Ymlp {
	return &Ymlp{client: newClient(httpClient)}
}

func (y *Ymlp) Platform() string { return PlatformYmlp }

func (y *Ymlp) SetAPIKey(key string) Subscriber { y.apiKey = key; return y }

func (y *Ymlp) SetAPISecret(secret string) Subscriber { y.apiSecret = secret; return y }

func (y *Ymlp) SetContactListID(id string) Subscriber { y.contactListID = id; return y }

// SetOverruleUnsubscribedBounced re-adds addresses that previously
// unsubscribed or bounced.
func (y *Ymlp) SetOverruleUnsubscribedBounced(overrule bool) *Ymlp {
	y.overruleUnsubscribedBounced = overrule
	return y
}

func (y *Ymlp) OverruleUnsubscribedBounced() bool { return y.overruleUnsubscribedBounced }

// Subscribe adds the address to the group. Extra fields must use Ymlp's
// FieldX names.
func (y *Ymlp) Subscribe(ctx context.Context, email string, options map[string]any, consents ...*UserConsent) (Result, error) {
	if err := y.requireKeyAndSecret(); err != nil {
		return Result{}, err
	}
	rawID, err := y.requireListID()
	if err != nil {
		return Result{}, err
	}
	groupID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return Result{}, fmt.Errorf("%w: group id %q is not numeric", ErrConfiguration, rawID)
	}
	if err := ValidateEmail(email); err != nil {
		return Result{}, err
	}

	form := newFormParams()
	form.set("Key", y.apiSecret)
	form.set("Username", y.apiKey)
	form.setValue("OverruleUnsubscribedBounced", y.overruleUnsubscribedBounced)
	form.set("Email", email)
	form.set("GroupID", strconv.FormatInt(groupID, 10))
	form.set("Output", "JSON")
	for _, k := range sortedKeys(options) {
		form.setValue(k, options[k])
	}
	for _, a := range firstConsent(consents).attributes() {
		form.setValue(a.key, a.value)
	}

	req, err := y.newFormRequest(ctx, http.MethodPost, ymlpContactsAddURL, form.encode())
	if err != nil {
		return Result{}, err
	}
	res, err := y.do(PlatformYmlp, req)
	if err != nil {
		return Result{}, subscribeFailure(PlatformYmlp, err)
	}

	decoded := res.decode()
	output := strings.TrimSpace(stringValue(decoded, "Output"))

	if !res.success() {
		if output == ymlpAlreadyInList {
			return confirmed(), nil
		}
		apiErr := res.apiError("Output")
		return Result{}, subscribeFailure(PlatformYmlp, apiErr)
	}

	switch ymlpCode(decoded["Code"]) {
	case ymlpCodeAdded, ymlpCodeDuplicate:
		return confirmed(), nil
	}
	if output == ymlpAlreadyInList {
		return confirmed(), nil
	}
	if output != "" {
		return Result{}, subscribeFailure(PlatformYmlp, &APIResponseError{
			StatusCode: res.status,
			Message:    output,
			Body:       decoded,
		})
	}
	return Result{}, nil
}

// ymlpCode reads Code, which Ymlp sends either as a string or a number.
func ymlpCode(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(c)
	default:
		return fmt.Sprint(c)
	}
}

func (y *Ymlp) Unsubscribe(context.Context, string) (bool, error) {
	return false, ErrUnsupportedUnsubscribe
}

func (y *Ymlp) SendTransactionalEmail(context.Context, []EmailAddress, string, map[string]any) (string, error) {
	return "", ErrUnsupportedTransactional
}
