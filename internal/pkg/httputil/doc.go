// Package httputil holds the JSON response and request helpers shared by
// the gateway handlers, so every endpoint answers with the same envelope.
package httputil
