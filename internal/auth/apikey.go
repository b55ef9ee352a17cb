// Package auth guards the gateway API. Callers are back-end services, so
// each one presents a shared key rather than logging in.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rezozero/subscribeme/internal/pkg/httputil"
	"github.com/rezozero/subscribeme/internal/pkg/logger"
)

// APIKeyHeader is the alternative to an Authorization bearer token.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth authenticates requests against a fixed set of keys.
type APIKeyAuth struct {
	digests [][sha256.Size]byte
}

// NewAPIKeyAuth creates an authenticator. Blank keys are ignored; with no
// keys at all every request is rejected.
func NewAPIKeyAuth(keys []string) *APIKeyAuth {
	a := &APIKeyAuth{}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			a.digests = append(a.digests, sha256.Sum256([]byte(k)))
		}
	}
	return a
}

// KeyCount returns the number of configured keys.
func (a *APIKeyAuth) KeyCount() int { return len(a.digests) }

// IsAuthenticated reports whether the request carries a configured key.
func (a *APIKeyAuth) IsAuthenticated(r *http.Request) bool {
	key := presentedKey(r)
	if key == "" {
		return false
	}
	// Digests have equal length, so every comparison costs the same.
	got := sha256.Sum256([]byte(key))
	match := 0
	for _, want := range a.digests {
		match |= subtle.ConstantTimeCompare(got[:], want[:])
	}
	return match == 1
}

// RequireAuth rejects unauthenticated requests with 401.
func (a *APIKeyAuth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if !a.IsAuthenticated(r) {
			logger.Warn("rejected unauthenticated request", "method", r.Method, "remote_addr", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Bearer realm="subscribeme"`)
			httputil.Error(w, http.StatusUnauthorized, "unauthorized", "missing or invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func presentedKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get(APIKeyHeader))
}
