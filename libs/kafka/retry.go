package kafka

import (
	"sync"
	"time"
)

// retryTracker counts failed attempts per message. Entries survive a session
// rebalance within the same process, so a message that keeps failing is
// still dead-lettered after maxAttempts even if its partition moves back and
// forth. Stale entries expire after ttl.
type retryTracker struct {
	mu          sync.Mutex
	maxAttempts int
	ttl         time.Duration
	entries     map[string]*retryEntry
	now         func() time.Time
}

type retryEntry struct {
	attempts int
	lastSeen time.Time
}

func newRetryTracker(maxAttempts int, ttl time.Duration) *retryTracker {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &retryTracker{
		maxAttempts: maxAttempts,
		ttl:         ttl,
		entries:     map[string]*retryEntry{},
		now:         time.Now,
	}
}

func (t *retryTracker) Record(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.expire(now)

	e, ok := t.entries[key]
	if !ok {
		e = &retryEntry{}
		t.entries[key] = e
	}
	e.attempts++
	e.lastSeen = now
	return e.attempts
}

func (t *retryTracker) Clear(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

func (t *retryTracker) expire(now time.Time) {
	if t.ttl <= 0 {
		return
	}
	for k, e := range t.entries {
		if now.Sub(e.lastSeen) > t.ttl {
			delete(t.entries, k)
		}
	}
}
