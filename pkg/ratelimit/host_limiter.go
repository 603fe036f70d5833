package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter spaces out requests to the same host by a fixed interval
type HostLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	limiters    map[string]*hostState
}

type hostState struct {
	limiter         *rate.Limiter
	requestCount    int64
	errorCount      int64
	lastRequestTime time.Time
}

// HostStats contains statistics for a host
type HostStats struct {
	RequestCount    int64
	ErrorCount      int64
	LastRequestTime time.Time
}

// NewHostLimiter creates a limiter that allows one request per minInterval
// for each host. A zero interval never waits.
func NewHostLimiter(minInterval time.Duration) *HostLimiter {
	return &HostLimiter{
		minInterval: minInterval,
		limiters:    make(map[string]*hostState),
	}
}

// Wait blocks until a request to rawURL's host is allowed
func (h *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	return h.WaitForHost(ctx, HostOf(rawURL))
}

// WaitForHost blocks until it's safe to make a request to host
func (h *HostLimiter) WaitForHost(ctx context.Context, host string) error {
	state := h.state(host)

	if err := state.limiter.Wait(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	state.requestCount++
	state.lastRequestTime = time.Now()
	h.mu.Unlock()
	return nil
}

// RecordError counts a failed request against the host
func (h *HostLimiter) RecordError(host string) {
	state := h.state(host)
	h.mu.Lock()
	state.errorCount++
	h.mu.Unlock()
}

// Stats returns statistics for all hosts seen so far
func (h *HostLimiter) Stats() map[string]HostStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := make(map[string]HostStats, len(h.limiters))
	for host, state := range h.limiters {
		stats[host] = HostStats{
			RequestCount:    state.requestCount,
			ErrorCount:      state.errorCount,
			LastRequestTime: state.lastRequestTime,
		}
	}
	return stats
}

func (h *HostLimiter) state(host string) *hostState {
	host = strings.ToLower(host)

	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.limiters[host]
	if !ok {
		limit := rate.Inf
		if h.minInterval > 0 {
			limit = rate.Every(h.minInterval)
		}
		state = &hostState{limiter: rate.NewLimiter(limit, 1)}
		h.limiters[host] = state
	}
	return state
}

// HostOf returns the lower-cased host of rawURL, or rawURL itself when it
// does not parse.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Hostname())
}
