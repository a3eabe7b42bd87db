package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"loanapi/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type middlewareConfig struct {
	skip       func(*http.Request) bool
	trustProxy bool
	decisions  metric.Int64Counter
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithSkipper exempts requests for which skip returns true.
func WithSkipper(skip func(*http.Request) bool) MiddlewareOption {
	return func(c *middlewareConfig) { c.skip = skip }
}

// WithTrustProxyHeaders keys clients by X-Forwarded-For / X-Real-IP instead of the
// socket address. Enable only behind a proxy that overwrites those headers.
func WithTrustProxyHeaders(trust bool) MiddlewareOption {
	return func(c *middlewareConfig) { c.trustProxy = trust }
}

// WithDecisionCounter records every admit/reject decision on counter, with an
// "allowed" attribute.
func WithDecisionCounter(counter metric.Int64Counter) MiddlewareOption {
	return func(c *middlewareConfig) { c.decisions = counter }
}

// Middleware returns HTTP middleware that enforces limiter per client address. It must
// be the first middleware in the chain so rejected requests do no further work.
func Middleware(limiter Limiter, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.skip != nil && cfg.skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := ClientIP(r, cfg.trustProxy)
			allowed, info := limiter.Allow(r.Context(), key)
			if cfg.decisions != nil {
				cfg.decisions.Add(r.Context(), 1, metric.WithAttributes(attribute.Bool("allowed", allowed)))
			}

			// Always set rate limit headers
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetAt.Unix()))

			if !allowed {
				wait := info.RetryAfterSeconds()
				per := WindowPhrase(info.Window)

				slog.Warn(fmt.Sprintf("Rate limit BLOCKED: IP %s made %d requests. Limit is %d %s. Must wait %ds.",
					key, info.Count, info.Limit, per, wait))

				w.Header().Set("Retry-After", fmt.Sprintf("%d", wait))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errorResp := models.NewErrorResponse(fmt.Sprintf(
					"Too many requests. You are limited to %d requests %s. Please wait %d seconds and try again.",
					info.Limit, per, wait))
				_ = json.NewEncoder(w).Encode(errorResp)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WindowPhrase renders a window length for client messages, e.g. "per minute".
func WindowPhrase(d time.Duration) string {
	switch d {
	case time.Second:
		return "per second"
	case time.Minute:
		return "per minute"
	case time.Hour:
		return "per hour"
	default:
		return "per " + d.String()
	}
}

// ClientIP extracts the client address from the request. Proxy headers are consulted
// only when trusted; the socket address is used otherwise.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	if r.RemoteAddr == "" {
		return UnknownClient
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	if host == "" {
		return UnknownClient
	}
	return host
}
