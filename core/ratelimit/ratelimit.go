// Package ratelimit implements a fixed-window request limiter keyed by an
// arbitrary string (typically the caller address). State is held in an
// explicit, injectable store rather than process-wide globals, and idle
// windows are evicted so the key set cannot grow without bound.
package ratelimit

import (
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window

	size    time.Duration
	max     int
	nowFunc func() time.Time // mockable
}

// New returns a limiter allowing max requests per key within each window of
// the given size.
func New(size time.Duration, max int) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		size:    size,
		max:     max,
		nowFunc: time.Now,
	}
}

// Allow reports whether a request for key fits in the current window, and
// counts it if it does. The counter resets when the window has elapsed.
func (l *Limiter) Allow(key string) bool {
	now := l.nowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) > l.size {
		l.windows[key] = &window{start: now, count: 1}
		l.evict(now)
		return true
	}
	if w.count >= l.max {
		return false
	}
	w.count++
	return true
}

// evict drops windows idle for more than two window sizes. Called with the
// lock held, piggybacking on window rollover so no background task is needed.
func (l *Limiter) evict(now time.Time) {
	ttl := 2 * l.size
	for key, w := range l.windows {
		if now.Sub(w.start) > ttl {
			delete(l.windows, key)
		}
	}
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
