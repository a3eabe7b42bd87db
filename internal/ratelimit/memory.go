package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// window is the per-client counter for the current fixed window.
type window struct {
	count int
	start time.Time
}

// FixedWindowLimiter is an in-memory fixed-window rate limiter. Each unique key gets
// its own window. A background goroutine periodically evicts windows that have fully
// elapsed; an evicted client is indistinguishable from one whose window would reset.
type FixedWindowLimiter struct {
	limit           int
	window          time.Duration
	cleanupInterval time.Duration
	now             func() time.Time

	mu      sync.Mutex
	windows map[string]*window
	done    chan struct{}
	closed  bool
}

// Option configures a FixedWindowLimiter.
type Option func(*FixedWindowLimiter)

// WithClock replaces time.Now, letting tests move time without sleeping.
func WithClock(now func() time.Time) Option {
	return func(l *FixedWindowLimiter) { l.now = now }
}

// WithCleanupInterval sets how often stale windows are evicted.
func WithCleanupInterval(d time.Duration) Option {
	return func(l *FixedWindowLimiter) {
		if d > 0 {
			l.cleanupInterval = d
		}
	}
}

// NewFixedWindowLimiter creates a limiter admitting maxRequests per window for each key.
// It starts a background goroutine for eviction; call Close to stop it.
func NewFixedWindowLimiter(maxRequests int, windowLength time.Duration, opts ...Option) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		limit:           maxRequests,
		window:          windowLength,
		cleanupInterval: 5 * time.Minute,
		now:             time.Now,
		windows:         make(map[string]*window),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.cleanup()
	return l
}

type decision int

const (
	decisionFirst decision = iota
	decisionReset
	decisionCounted
	decisionRejected
)

// Allow checks whether a request from the given key should be admitted.
func (l *FixedWindowLimiter) Allow(_ context.Context, key string) (bool, Info) {
	if key == "" {
		key = UnknownClient
	}
	now := l.now()

	l.mu.Lock()
	w, exists := l.windows[key]
	var d decision
	switch {
	case !exists:
		w = &window{count: 1, start: now}
		l.windows[key] = w
		d = decisionFirst
	case now.Sub(w.start) >= l.window:
		w.count = 1
		w.start = now
		d = decisionReset
	default:
		w.count++
		d = decisionCounted
		if w.count > l.limit {
			d = decisionRejected
		}
	}
	info := Info{
		Limit:     l.limit,
		Count:     w.count,
		Remaining: remaining(l.limit, w.count),
		Window:    l.window,
		ResetAt:   w.start.Add(l.window),
	}
	l.mu.Unlock()

	switch d {
	case decisionFirst:
		slog.Debug("Rate limiter: first request from client", "ip", key)
	case decisionReset:
		slog.Debug("Rate limiter: window reset for client", "ip", key)
	case decisionCounted:
		slog.Debug("Rate limiter: request counted", "ip", key, "count", info.Count, "limit", info.Limit)
	case decisionRejected:
		info.RetryAfter = info.ResetAt.Sub(now)
		return false, info
	}
	return true, info
}

// Close stops the background cleanup goroutine.
func (l *FixedWindowLimiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.done)
	}
}

func (l *FixedWindowLimiter) cleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictStale()
		}
	}
}

// evictStale removes windows that have fully elapsed.
func (l *FixedWindowLimiter) evictStale() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	evicted := 0
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, key)
			evicted++
		}
	}
	return evicted
}

// size returns the number of tracked clients.
func (l *FixedWindowLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
