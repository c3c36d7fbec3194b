// Package ratelimit bounds accepted requests per endpoint over a rolling
// 60-second window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is the rolling admission window length.
const Window = 60 * time.Second

// Limiter decides whether an endpoint may accept another request. Admitted
// requests are recorded against the window; rejected requests are not, so a
// caller hammering a closed window does not starve itself once it reopens.
type Limiter interface {
	// Allow reports whether a request for the endpoint is admitted under
	// the given per-minute ceiling. A limit <= 0 means unlimited.
	Allow(ctx context.Context, endpointID string, limit int) (bool, error)

	// Reset clears the window state for an endpoint.
	Reset(ctx context.Context, endpointID string) error
}

// MemoryLimiter is the in-process Limiter: a sliding window of admission
// timestamps per endpoint behind a single mutex. The mutex scopes only the
// counter, never the surrounding pipeline.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemory creates a new in-memory sliding window limiter.
func NewMemory() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow admits the request when fewer than limit admissions fall inside the
// rolling window, and records it.
func (l *MemoryLimiter) Allow(_ context.Context, endpointID string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-Window)

	w := l.windows[endpointID]
	// Drop admissions that rolled out of the window.
	kept := w[:0]
	for _, ts := range w {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		l.windows[endpointID] = kept
		return false, nil
	}

	l.windows[endpointID] = append(kept, now)
	return true, nil
}

// Reset clears the window state for an endpoint.
func (l *MemoryLimiter) Reset(_ context.Context, endpointID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, endpointID)
	return nil
}

// SetClock overrides the time source. Test hook.
func (l *MemoryLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
