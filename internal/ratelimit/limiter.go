// Package ratelimit provides per-client fixed-window rate limiting for HTTP requests.
// A client gets MaxRequests requests per window; the window opens on the client's first
// request and is replaced wholesale once it has fully elapsed. The package includes an
// in-process limiter, a Redis-backed limiter for multi-instance deployments, and HTTP
// middleware that sets standard rate limit response headers.
package ratelimit

import (
	"context"
	"math"
	"time"
)

// UnknownClient is the key used when a request carries no resolvable address.
// Every such request shares a single window.
const UnknownClient = "unknown"

// Limiter defines the rate limiting contract. Implementations must be safe for
// concurrent use.
type Limiter interface {
	// Allow records a request identified by key and reports whether it is admitted,
	// along with window state for populating response headers.
	Allow(ctx context.Context, key string) (allowed bool, info Info)

	// Close stops background goroutines and releases resources.
	Close()
}

// Info contains rate limit state for populating response headers.
type Info struct {
	Limit      int           // Maximum requests per window
	Count      int           // Requests seen in the current window, including this one
	Remaining  int           // Requests left in the current window
	Window     time.Duration // Window length
	ResetAt    time.Time     // When the current window closes
	RetryAfter time.Duration // Time until the window closes (meaningful only when denied)
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds.
func (i Info) RetryAfterSeconds() int {
	return int(math.Ceil(i.RetryAfter.Seconds()))
}

func remaining(limit, count int) int {
	if count >= limit {
		return 0
	}
	return limit - count
}
