package ratelimit

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Limiter is a sliding-window hit counter keyed by client.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string][]time.Time
	window  time.Duration
	maxHits int
	clock   clock.PassiveClock
}

func NewLimiter(window time.Duration, maxHits int) *Limiter {
	return NewLimiterWithClock(window, maxHits, clock.RealClock{})
}

func NewLimiterWithClock(window time.Duration, maxHits int, clk clock.PassiveClock) *Limiter {
	return &Limiter{
		limits:  make(map[string][]time.Time),
		window:  window,
		maxHits: maxHits,
		clock:   clk,
	}
}

func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	windowStart := now.Add(-l.window)

	// Clean old entries
	if hits, exists := l.limits[key]; exists {
		valid := hits[:0]
		for _, hit := range hits {
			if hit.After(windowStart) {
				valid = append(valid, hit)
			}
		}
		if len(valid) == 0 {
			delete(l.limits, key)
		} else {
			l.limits[key] = valid
		}
	}

	if len(l.limits[key]) >= l.maxHits {
		return false
	}

	l.limits[key] = append(l.limits[key], now)
	return true
}
