package api

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rezozero/subscribeme/internal/pkg/logger"
)

// ParseTrustedProxies turns addresses and CIDRs into networks.
func ParseTrustedProxies(list []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !strings.Contains(s, "/") {
			ip := net.ParseIP(s)
			if ip == nil {
				return nil, fmt.Errorf("trusted proxy %q: invalid address", s)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

func trusted(proxies []*net.IPNet, ip net.IP) bool {
	for _, n := range proxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP rewrites RemoteAddr from X-Forwarded-For, but only when the
// peer is a trusted proxy. The header is walked right to left and the
// first hop outside the trusted set is the client.
func clientIP(proxies []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(proxies) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			peer := net.ParseIP(remoteIP(r))
			xff := r.Header.Values("X-Forwarded-For")
			if peer == nil || !trusted(proxies, peer) || len(xff) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			hops := strings.Split(strings.Join(xff, ","), ",")
			for i := len(hops) - 1; i >= 0; i-- {
				ip := net.ParseIP(strings.TrimSpace(hops[i]))
				if ip == nil {
					break
				}
				if !trusted(proxies, ip) || i == 0 {
					r.RemoteAddr = net.JoinHostPort(ip.String(), "0")
					break
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs one line per request. The route pattern is logged
// instead of the raw path, which can carry a subscriber address.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		if route == "" {
			route = redactPath(r.URL.Path)
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger.Info("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// redactPath masks every path segment that holds an address.
func redactPath(p string) string {
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		if u, err := url.PathUnescape(seg); err == nil {
			seg = u
		}
		if strings.Contains(seg, "@") {
			segs[i] = logger.RedactEmail(seg)
		}
	}
	return strings.Join(segs, "/")
}
