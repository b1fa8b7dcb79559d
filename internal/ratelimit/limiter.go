// Package ratelimit implements a small sliding-window request limiter keyed
// by principal id. An LRU cache bounds memory: principals that stop sending
// requests age out together with their windows.
package ratelimit

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const cacheSize = 4096

// Limiter allows at most limit events per key within a sliding window.
type Limiter struct {
	mu     sync.Mutex
	cache  *lru.Cache[string, []time.Time]
	limit  int
	window time.Duration

	now func() time.Time
}

// New constructs a Limiter allowing limit events per window for each key.
func New(limit int, window time.Duration) (*Limiter, error) {
	cache, err := lru.New[string, []time.Time](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Limiter{
		cache:  cache,
		limit:  limit,
		window: window,
		now:    time.Now,
	}, nil
}

// Allow records an event for key and reports whether it fits the budget.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	events, _ := l.cache.Get(key)

	kept := events[:0]
	for _, ts := range events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.cache.Add(key, kept)
		return false
	}

	kept = append(kept, now)
	l.cache.Add(key, kept)
	return true
}
