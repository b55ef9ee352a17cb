package subscriber

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Constructor builds an unconfigured adapter on the given transport.
type Constructor func(httpClient HTTPDoer) Subscriber

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{
		PlatformMailjet:    func(c HTTPDoer) Subscriber { return NewMailjet(c) },
		PlatformMailchimp:  func(c HTTPDoer) Subscriber { return NewMailchimp(c) },
		PlatformBrevo:      func(c HTTPDoer) Subscriber { return NewBrevo(c) },
		PlatformSendinBlue: func(c HTTPDoer) Subscriber { return NewSendinBlue(c) },
		"brevo-doi":        func(c HTTPDoer) Subscriber { return NewBrevoDoubleOptIn(c) },
		"sendinblue-doi":   func(c HTTPDoer) Subscriber { return NewSendinBlueDoubleOptIn(c) },
		PlatformYmlp:       func(c HTTPDoer) Subscriber { return NewYmlp(c) },
		PlatformOxiMailing: func(c HTTPDoer) Subscriber { return NewOxiMailing(c) },
	}
)

// Register makes an adapter available to every Factory under name.
// Registering an existing name replaces it.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[normalizePlatform(name)] = ctor
}

// Platforms lists every registered platform name, sorted.
func Platforms() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Factory creates adapters sharing one transport.
type Factory struct {
	httpClient HTTPDoer
}

// NewFactory returns a Factory injecting httpClient into every adapter. A
// nil client selects a default *http.Client.
func NewFactory(httpClient HTTPDoer) *Factory {
	return &Factory{httpClient: httpClient}
}

// CreateFor returns a new adapter for the case-insensitive platform name.
// Unknown names return an error wrapping ErrUnknownPlatform.
func (f *Factory) CreateFor(platform string) (Subscriber, error) {
	registryMu.RLock()
	ctor, ok := registry[normalizePlatform(platform)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for %q", ErrUnknownPlatform, platform)
	}
	return ctor(f.httpClient), nil
}

func normalizePlatform(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
