package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx ends
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
}

// SlidingWindow implements a sliding window rate limiter
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	clock       clockwork.Clock
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return NewSlidingWindowWithClock(maxRequests, windowSize, clockwork.NewRealClock())
}

// NewSlidingWindowWithClock creates a sliding window limiter driven by clock
func NewSlidingWindowWithClock(maxRequests int, windowSize time.Duration, clock clockwork.Clock) *SlidingWindow {
	if maxRequests < 1 {
		maxRequests = 1
	}
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		clock:       clock,
	}
}

// PerMinute allows n requests in any rolling minute
func PerMinute(n int) *SlidingWindow {
	return NewSlidingWindow(n, time.Minute)
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.clock.Now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}

	return false
}

// Wait blocks until a request is allowed
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for !sw.Allow() {
		sw.mu.Lock()
		timeToWait := 100 * time.Millisecond
		if len(sw.requests) > 0 {
			timeToWait = sw.windowSize - sw.clock.Since(sw.requests[0])
		}
		sw.mu.Unlock()

		if timeToWait <= 0 {
			continue
		}
		select {
		case <-sw.clock.After(timeToWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// Usage reports how many requests the current window holds, the window
// capacity and when the oldest request leaves the window
func (sw *SlidingWindow) Usage() (used, max int, resetAt time.Time) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.clock.Now()
	sw.cleanOldRequests(now)
	resetAt = now
	if len(sw.requests) > 0 {
		resetAt = sw.requests[0].Add(sw.windowSize)
	}
	return len(sw.requests), sw.maxRequests, resetAt
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}
