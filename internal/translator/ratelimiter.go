package translator

import (
	"context"
	"net/url"
	"sync"
	"time"
)

// RateLimiter spaces out requests to external services. HTTP fetches are
// limited per host so hammering one changelog server does not block
// another, and conversation-agent calls are limited globally.
type RateLimiter struct {
	mu            sync.Mutex
	httpInterval  time.Duration
	agentInterval time.Duration
	lastHTTP      map[string]time.Time
	lastAgent     time.Time
	nowFunc       func() time.Time
	sleepFunc     func(context.Context, time.Duration) error
}

// NewRateLimiter creates a limiter with the given minimum spacing between
// HTTP requests to the same host and between agent calls.
func NewRateLimiter(httpInterval, agentInterval time.Duration) *RateLimiter {
	return &RateLimiter{
		httpInterval:  httpInterval,
		agentInterval: agentInterval,
		lastHTTP:      make(map[string]time.Time),
		nowFunc:       time.Now,
		sleepFunc:     sleepContext,
	}
}

// WaitHTTP blocks until a request to rawURL's host is allowed.
func (r *RateLimiter) WaitHTTP(ctx context.Context, rawURL string) error {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	r.mu.Lock()
	wait := r.waitFor(r.lastHTTP[host], r.httpInterval)
	r.lastHTTP[host] = r.nowFunc().Add(wait)
	r.mu.Unlock()

	return r.sleepFunc(ctx, wait)
}

// WaitAgent blocks until a conversation-agent call is allowed.
func (r *RateLimiter) WaitAgent(ctx context.Context) error {
	r.mu.Lock()
	wait := r.waitFor(r.lastAgent, r.agentInterval)
	r.lastAgent = r.nowFunc().Add(wait)
	r.mu.Unlock()

	return r.sleepFunc(ctx, wait)
}

func (r *RateLimiter) waitFor(last time.Time, interval time.Duration) time.Duration {
	if last.IsZero() {
		return 0
	}
	elapsed := r.nowFunc().Sub(last)
	if elapsed >= interval {
		return 0
	}
	return interval - elapsed
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
