package subscription

import (
	"fmt"

	"github.com/rezozero/subscribeme/internal/config"
	"github.com/rezozero/subscribeme/pkg/subscriber"
)

// BuildAdapters creates and configures one adapter per enabled platform.
// An unknown platform name fails here, at startup, rather than on the first
// request.
func BuildAdapters(factory *subscriber.Factory, platforms map[string]config.PlatformConfig) (map[string]subscriber.Subscriber, error) {
	adapters := make(map[string]subscriber.Subscriber, len(platforms))
	for name, pc := range platforms {
		if !pc.IsEnabled() {
			continue
		}
		s, err := factory.CreateFor(name)
		if err != nil {
			return nil, fmt.Errorf("platform %q: %w", name, err)
		}
		s.SetAPIKey(pc.APIKey).SetAPISecret(pc.APISecret).SetContactListID(pc.ContactListID)

		switch a := s.(type) {
		case *subscriber.Mailchimp:
			a.SetDC(pc.DC)
			if pc.Pending {
				a.SetPending()
			}
		case *subscriber.BrevoDoubleOptIn:
			a.SetTemplateID(pc.TemplateID).SetRedirectionURL(pc.RedirectionURL)
		case *subscriber.Ymlp:
			a.SetOverruleUnsubscribedBounced(pc.OverruleUnsubscribedBounced)
		}
		adapters[name] = s
	}
	return adapters, nil
}
