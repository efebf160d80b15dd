package util

import (
	"sync"
	"time"
)

// SkipThrottler lets an event through at most once per period, skipping the rest.
// It is safe for concurrent use.
type SkipThrottler struct {
	d time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewSkipThrottler(d time.Duration) *SkipThrottler {
	tt := &SkipThrottler{d: d, last: time.Date(0, 0, 0, 0, 0, 0, 0, time.UTC)}
	return tt
}

func (tt *SkipThrottler) Ok() bool {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	now := time.Now()
	if now.Before(tt.last.Add(tt.d)) {
		return false
	}

	tt.last = now
	return true
}
